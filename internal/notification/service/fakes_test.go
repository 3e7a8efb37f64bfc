// internal/notification/service/fakes_test.go
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "ops-notifications/internal/common/errors"
	"ops-notifications/internal/models"
)

// memStore mirrors the row-scoped semantics of the PostgreSQL store.
type memStore struct {
	mu          sync.Mutex
	seq         int
	clock       time.Time
	rows        map[string]*models.Notification
	attempts    []models.DeliveryAttempt
	templates   map[string]*models.NotificationTemplate
	users       map[string][]string
	failCreate  map[int]error
	createCalls int
	attemptErr  error
}

func newMemStore() *memStore {
	return &memStore{
		clock:      time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		rows:       map[string]*models.Notification{},
		templates:  map[string]*models.NotificationTemplate{},
		users:      map[string][]string{},
		failCreate: map[int]error{},
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) Create(_ context.Context, n models.Notification) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if err, ok := m.failCreate[m.createCalls]; ok {
		return nil, apperrors.NewPersistenceError("create", err)
	}
	m.seq++
	n.ID = fmt.Sprintf("n-%d", m.seq)
	n.Status = models.StatusUnread
	n.CreatedAt = m.tick()
	stored := n
	m.rows[n.ID] = &stored
	out := stored
	return &out, nil
}

func (m *memStore) owned(id string, scope models.Scope) (*models.Notification, bool) {
	n, ok := m.rows[id]
	if !ok || n.TenantID != scope.TenantID || n.UserID != scope.UserID {
		return nil, false
	}
	return n, true
}

func (m *memStore) Get(_ context.Context, id string, scope models.Scope) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.owned(id, scope)
	if !ok {
		return nil, apperrors.NewNotificationNotFoundError(id)
	}
	out := *n
	return &out, nil
}

func (m *memStore) MarkRead(_ context.Context, id string, scope models.Scope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.owned(id, scope)
	if !ok || n.Status != models.StatusUnread {
		return 0, nil
	}
	t := m.tick()
	n.Status, n.ReadAt = models.StatusRead, &t
	return 1, nil
}

func (m *memStore) MarkAllRead(_ context.Context, scope models.Scope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	t := m.tick()
	for _, n := range m.rows {
		if n.TenantID == scope.TenantID && n.UserID == scope.UserID && n.Status == models.StatusUnread {
			readAt := t
			n.Status, n.ReadAt = models.StatusRead, &readAt
			count++
		}
	}
	return count, nil
}

func (m *memStore) Delete(_ context.Context, id string, scope models.Scope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owned(id, scope); !ok {
		return 0, nil
	}
	delete(m.rows, id)
	return 1, nil
}

func (m *memStore) List(_ context.Context, scope models.Scope, opts models.ListOptions) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opts = opts.WithDefaults()

	out := make([]models.Notification, 0)
	for _, n := range m.rows {
		if n.TenantID != scope.TenantID || n.UserID != scope.UserID {
			continue
		}
		if opts.Status != models.StatusAll && n.Status != opts.Status {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if opts.NewestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if opts.Offset >= len(out) {
		return []models.Notification{}, nil
	}
	out = out[opts.Offset:]
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memStore) Stats(_ context.Context, scope models.Scope) (models.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s models.Stats
	for _, n := range m.rows {
		if n.TenantID == scope.TenantID && n.UserID == scope.UserID {
			s.Total++
			if n.Status == models.StatusUnread {
				s.Unread++
			}
		}
	}
	return s, nil
}

func (m *memStore) FindRecipients(_ context.Context, tenantID string, _ models.RecipientFilter) ([]string, error) {
	return m.users[tenantID], nil
}

func (m *memStore) RecordAttempt(_ context.Context, a models.DeliveryAttempt) (*models.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attemptErr != nil {
		return nil, m.attemptErr
	}
	a.ID = fmt.Sprintf("a-%d", len(m.attempts)+1)
	m.attempts = append(m.attempts, a)
	return &a, nil
}

func (m *memStore) ListAttempts(_ context.Context, notificationID string, scope models.Scope) ([]models.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DeliveryAttempt, 0)
	for _, a := range m.attempts {
		if a.NotificationID == notificationID && a.UserID == scope.UserID && a.TenantID == scope.TenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListFailedAttempts(_ context.Context, tenantID string, since time.Time, _ int) ([]models.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DeliveryAttempt, 0)
	for _, a := range m.attempts {
		if a.TenantID == tenantID && a.Status == models.DeliveryFailed && !a.AttemptedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) GetTemplate(_ context.Context, id string) (*models.NotificationTemplate, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, apperrors.NewTemplateNotFoundError(id)
	}
	return t, nil
}

func (m *memStore) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// recordingDispatcher counts calls and returns a fixed outcome.
type recordingDispatcher struct {
	channel models.Channel
	status  models.DeliveryStatus
	calls   []string
}

func (d *recordingDispatcher) Channel() models.Channel { return d.channel }

func (d *recordingDispatcher) Dispatch(_ context.Context, n *models.Notification) models.DeliveryResult {
	d.calls = append(d.calls, n.UserID)
	return models.DeliveryResult{Channel: d.channel, Status: d.status}
}

// panickingDispatcher stands in for a Mailer or PushSender that blows up.
type panickingDispatcher struct {
	channel models.Channel
}

func (d *panickingDispatcher) Channel() models.Channel { return d.channel }

func (d *panickingDispatcher) Dispatch(context.Context, *models.Notification) models.DeliveryResult {
	panic("smtp client is nil")
}
