// internal/notification/channels/inapp.go
package channels

import (
	"context"
	"fmt"

	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/models"
)

// Broadcaster pushes an event to every live connection of a user and reports how many
// connections (or service instances) it reached.
type Broadcaster interface {
	BroadcastToUser(ctx context.Context, userID string, event models.RealtimeEvent) (int, error)
}

type InAppDispatcher struct {
	broadcaster Broadcaster
	logger      logger.Logger
}

// NewInAppDispatcher accepts a nil broadcaster; every dispatch is then a logged no-op.
func NewInAppDispatcher(b Broadcaster, log logger.Logger) *InAppDispatcher {
	return &InAppDispatcher{
		broadcaster: b,
		logger:      log.WithFields(map[string]interface{}{"channel": string(models.ChannelInApp)}),
	}
}

func (d *InAppDispatcher) Channel() models.Channel {
	return models.ChannelInApp
}

func (d *InAppDispatcher) Dispatch(ctx context.Context, n *models.Notification) models.DeliveryResult {
	if d.broadcaster == nil {
		d.logger.Warn("realtime service unavailable, skipping in-app delivery", recipientFields(n))
		return skipped(models.ChannelInApp, "realtime service unavailable")
	}

	reached, err := d.broadcaster.BroadcastToUser(ctx, n.UserID, models.NotificationEvent(n))
	if err != nil {
		fields := recipientFields(n)
		fields["error"] = err
		d.logger.Error("in-app broadcast failed", fields)
		return failed(models.ChannelInApp, "broadcast: %v", err)
	}

	if reached == 0 {
		d.logger.Warn("user has no open realtime connection", recipientFields(n))
		return skipped(models.ChannelInApp, "no open connection")
	}

	return delivered(models.ChannelInApp, fmt.Sprintf("%d connection(s)", reached))
}
