// internal/notification/realtime/bridge.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/models"

	"github.com/redis/go-redis/v9"
)

const subscribeTimeout = 5 * time.Second

type envelope struct {
	UserID string               `json:"userId"`
	Event  models.RealtimeEvent `json:"event"`
}

// RedisBridge fans events out across instances. Every user has a channel of their own,
// and an instance is subscribed to it only while it holds a connection of that user, so
// the PUBLISH receiver count is the number of instances the user is connected to.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  logger.Logger

	mu         sync.Mutex
	sub        *redis.PubSub
	subscribed map[string]struct{}
}

func NewRedisBridge(rdb *redis.Client, channel string, hub *Hub, log logger.Logger) *RedisBridge {
	return &RedisBridge{
		rdb:        rdb,
		channel:    channel,
		hub:        hub,
		logger:     log.WithFields(map[string]interface{}{"component": "realtime_bridge", "redisChannel": channel}),
		subscribed: make(map[string]struct{}),
	}
}

func (b *RedisBridge) userChannel(userID string) string {
	return b.channel + ":" + userID
}

// BroadcastToUser returns the number of instances holding a connection of the user. Zero
// means the user is not connected anywhere.
func (b *RedisBridge) BroadcastToUser(ctx context.Context, userID string, event models.RealtimeEvent) (int, error) {
	data, err := json.Marshal(envelope{UserID: userID, Event: event})
	if err != nil {
		return 0, fmt.Errorf("encode realtime event: %w", err)
	}

	n, err := b.rdb.Publish(ctx, b.userChannel(userID), data).Result()
	if err != nil {
		return 0, fmt.Errorf("publish realtime event: %w", err)
	}
	return int(n), nil
}

// Start opens the subscriber connection and tracks hub presence from then on. Delivery
// into the hub runs until ctx is cancelled.
func (b *RedisBridge) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx)
	if err := sub.Ping(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()

	b.hub.OnPresenceChange(b.syncUser)
	for _, userID := range b.hub.Users() {
		b.syncUser(userID)
	}

	go b.run(ctx, sub)
	return nil
}

// syncUser brings the subscription of one user in line with the hub. Calls are
// serialized, so racing register and unregister calls settle on the hub's final state.
func (b *RedisBridge) syncUser(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	_, subscribed := b.subscribed[userID]
	online := b.hub.ConnectionCount(userID) > 0
	fields := map[string]interface{}{"userId": userID}

	switch {
	case online && !subscribed:
		if err := b.sub.Subscribe(ctx, b.userChannel(userID)); err != nil {
			fields["error"] = err
			b.logger.Error("subscribe user channel failed", fields)
			return
		}
		b.subscribed[userID] = struct{}{}
	case !online && subscribed:
		if err := b.sub.Unsubscribe(ctx, b.userChannel(userID)); err != nil {
			fields["error"] = err
			b.logger.Warn("unsubscribe user channel failed", fields)
		}
		delete(b.subscribed, userID)
	}
}

func (b *RedisBridge) run(ctx context.Context, sub *redis.PubSub) {
	defer func() {
		b.hub.OnPresenceChange(nil)
		b.mu.Lock()
		b.sub = nil
		b.subscribed = make(map[string]struct{})
		b.mu.Unlock()
		sub.Close()
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("discarding malformed realtime message", map[string]interface{}{"error": err})
				continue
			}
			if reached := b.hub.Deliver(env.UserID, env.Event); reached > 0 {
				b.logger.Debug("realtime event delivered", map[string]interface{}{
					"userId":      env.UserID,
					"connections": reached,
				})
			}
		}
	}
}
