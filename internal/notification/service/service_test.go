// internal/notification/service/service_test.go
package service

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "ops-notifications/internal/common/errors"
	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/common/metrics"
	"ops-notifications/internal/models"
	"ops-notifications/internal/notification/channels"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *memStore
	inApp *recordingDispatcher
	email *recordingDispatcher
	push  *recordingDispatcher
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(),
		inApp: &recordingDispatcher{channel: models.ChannelInApp, status: models.DeliveryDelivered},
		email: &recordingDispatcher{channel: models.ChannelEmail, status: models.DeliveryDelivered},
		push:  &recordingDispatcher{channel: models.ChannelPush, status: models.DeliveryDelivered},
	}
	f.svc = New(Dependencies{
		Store:       f.store,
		Dispatchers: []channels.Dispatcher{f.inApp, f.email, f.push},
		Logger:      logger.NewTestLogger(t),
	})
	return f
}

func hiData() models.NotificationData {
	return models.NotificationData{
		Title:    "Hi",
		Message:  "Test",
		Type:     models.TypeInfo,
		Category: "x",
		Priority: models.PriorityLow,
	}
}

func (f *fixture) totalDispatches() int {
	return len(f.inApp.calls) + len(f.email.calls) + len(f.push.calls)
}

func TestSendNotification_NoChannelsPersistsOnly(t *testing.T) {
	f := newFixture(t)
	recipients := []models.Recipient{
		{UserID: "u1", TenantID: "t1"},
		{UserID: "u2", TenantID: "t1"},
		{UserID: "u3", TenantID: "t2"},
	}

	result, err := f.svc.SendNotification(context.Background(), recipients, hiData())
	require.NoError(t, err)

	assert.Len(t, result.NotificationIDs, 3)
	assert.Equal(t, 3, f.store.rowCount())
	for _, id := range result.NotificationIDs {
		assert.Equal(t, models.StatusUnread, f.store.rows[id].Status)
	}
	assert.Zero(t, f.totalDispatches())
	assert.Empty(t, result.Deliveries)
}

func TestSendNotification_InAppOnly(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.SendNotification(context.Background(),
		[]models.Recipient{{UserID: "u1", TenantID: "t1", Channels: []models.Channel{models.ChannelInApp}}},
		hiData())
	require.NoError(t, err)

	require.Equal(t, 1, f.store.rowCount())
	row := f.store.rows[result.NotificationIDs[0]]
	assert.Equal(t, "t1", row.TenantID)
	assert.Equal(t, "u1", row.UserID)
	assert.Equal(t, models.StatusUnread, row.Status)

	assert.Equal(t, []string{"u1"}, f.inApp.calls)
	assert.Empty(t, f.email.calls)
	assert.Empty(t, f.push.calls)
}

func TestSendNotification_EmailOutageDoesNotFailSend(t *testing.T) {
	f := newFixture(t)
	f.email.status = models.DeliveryFailed
	before := testutil.ToFloat64(metrics.NotificationDeliveries.WithLabelValues("email", "failed"))

	result, err := f.svc.SendNotification(context.Background(),
		[]models.Recipient{{UserID: "u1", TenantID: "t1", Channels: []models.Channel{models.ChannelEmail}}},
		hiData())
	require.NoError(t, err)

	row := f.store.rows[result.NotificationIDs[0]]
	assert.Equal(t, models.StatusUnread, row.Status)

	require.Len(t, result.Deliveries, 1)
	assert.Equal(t, models.DeliveryFailed, result.Deliveries[0].Status)

	failed, err := f.svc.GetFailedDeliveries(context.Background(), "t1", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, result.NotificationIDs[0], failed[0].NotificationID)

	after := testutil.ToFloat64(metrics.NotificationDeliveries.WithLabelValues("email", "failed"))
	assert.Equal(t, before+1, after)
}

func TestSendNotification_ChannelsDispatchedInFixedOrder(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.SendNotification(context.Background(),
		[]models.Recipient{{UserID: "u1", TenantID: "t1", Channels: []models.Channel{models.ChannelPush, models.ChannelInApp, models.ChannelEmail}}},
		hiData())
	require.NoError(t, err)

	require.Len(t, result.Deliveries, 3)
	assert.Equal(t, models.ChannelInApp, result.Deliveries[0].Channel)
	assert.Equal(t, models.ChannelEmail, result.Deliveries[1].Channel)
	assert.Equal(t, models.ChannelPush, result.Deliveries[2].Channel)
}

func TestSendNotification_PanickingDispatcherIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.svc = New(Dependencies{
		Store:       f.store,
		Dispatchers: []channels.Dispatcher{f.inApp, &panickingDispatcher{channel: models.ChannelEmail}, f.push},
		Logger:      logger.NewTestLogger(t),
	})
	all := []models.Channel{models.ChannelInApp, models.ChannelEmail, models.ChannelPush}

	result, err := f.svc.SendNotification(context.Background(), []models.Recipient{
		{UserID: "u1", TenantID: "t1", Channels: all},
		{UserID: "u2", TenantID: "t1", Channels: all},
	}, hiData())
	require.NoError(t, err)

	assert.Len(t, result.NotificationIDs, 2)
	assert.Equal(t, []string{"u1", "u2"}, f.inApp.calls)
	assert.Equal(t, []string{"u1", "u2"}, f.push.calls)

	require.Len(t, result.Deliveries, 6)
	email := result.Deliveries[1]
	assert.Equal(t, models.ChannelEmail, email.Channel)
	assert.Equal(t, models.DeliveryFailed, email.Status)
	assert.Equal(t, "panic: smtp client is nil", email.Detail)
}

func TestSendNotification_PersistenceFailureAbortsBatch(t *testing.T) {
	f := newFixture(t)
	f.store.failCreate[2] = errors.New("connection refused")

	recipients := []models.Recipient{
		{UserID: "u1", TenantID: "t1", Channels: []models.Channel{models.ChannelInApp}},
		{UserID: "u2", TenantID: "t1", Channels: []models.Channel{models.ChannelInApp}},
		{UserID: "u3", TenantID: "t1", Channels: []models.Channel{models.ChannelInApp}},
	}

	result, err := f.svc.SendNotification(context.Background(), recipients, hiData())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed))
	assert.Equal(t, 1, f.store.rowCount())
	assert.Equal(t, 2, f.store.createCalls)
	assert.Equal(t, []string{"u1"}, f.inApp.calls)
}

func TestSendNotification_AttemptLogFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.store.attemptErr = errors.New("disk full")

	result, err := f.svc.SendNotification(context.Background(),
		[]models.Recipient{{UserID: "u1", TenantID: "t1", Channels: []models.Channel{models.ChannelInApp}}},
		hiData())
	require.NoError(t, err)
	require.Len(t, result.Deliveries, 1)
	assert.Equal(t, models.DeliveryDelivered, result.Deliveries[0].Status)
}

func TestSendNotification_UnconfiguredChannelIsSkipped(t *testing.T) {
	st := newMemStore()
	svc := New(Dependencies{Store: st, Logger: logger.NewTestLogger(t)})

	result, err := svc.SendNotification(context.Background(),
		[]models.Recipient{{UserID: "u1", TenantID: "t1", Channels: []models.Channel{models.ChannelPush}}},
		hiData())
	require.NoError(t, err)
	require.Len(t, result.Deliveries, 1)
	assert.Equal(t, models.DeliverySkipped, result.Deliveries[0].Status)
	assert.Equal(t, "channel not configured", result.Deliveries[0].Detail)
}

func TestSendNotification_Validation(t *testing.T) {
	tests := []struct {
		name       string
		recipients []models.Recipient
		data       models.NotificationData
	}{
		{
			name:       "no recipients",
			recipients: nil,
			data:       hiData(),
		},
		{
			name:       "recipient without tenant",
			recipients: []models.Recipient{{UserID: "u1"}},
			data:       hiData(),
		},
		{
			name:       "unknown channel",
			recipients: []models.Recipient{{UserID: "u1", TenantID: "t1", Channels: []models.Channel{"sms"}}},
			data:       hiData(),
		},
		{
			name:       "missing title",
			recipients: []models.Recipient{{UserID: "u1", TenantID: "t1"}},
			data:       models.NotificationData{Message: "m"},
		},
		{
			name:       "bad priority",
			recipients: []models.Recipient{{UserID: "u1", TenantID: "t1"}},
			data:       models.NotificationData{Title: "t", Message: "m", Priority: "critical"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.SendNotification(context.Background(), tt.recipients, tt.data)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
			assert.Zero(t, f.store.rowCount())
		})
	}
}

func TestSendNotification_DefaultsTypeAndPriority(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.SendNotification(context.Background(),
		[]models.Recipient{{UserID: "u1", TenantID: "t1"}},
		models.NotificationData{Title: "t", Message: "m"})
	require.NoError(t, err)

	row := f.store.rows[result.NotificationIDs[0]]
	assert.Equal(t, models.TypeInfo, row.Type)
	assert.Equal(t, models.PriorityMedium, row.Priority)
}

func TestSendNotification_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.SendNotification(ctx, []models.Recipient{{UserID: "u1", TenantID: "t1"}}, hiData())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTimeout))
	assert.Zero(t, f.store.rowCount())
}

func TestSendBulkNotification_DefaultsToInAppAndEmail(t *testing.T) {
	f := newFixture(t)
	f.store.users["t1"] = []string{"u1", "u2"}

	result, err := f.svc.SendBulkNotification(context.Background(), "t1", hiData(),
		models.RecipientFilter{Roles: []string{"buyer"}})
	require.NoError(t, err)

	assert.Len(t, result.NotificationIDs, 2)
	assert.Equal(t, []string{"u1", "u2"}, f.inApp.calls)
	assert.Equal(t, []string{"u1", "u2"}, f.email.calls)
	assert.Empty(t, f.push.calls)
}

func TestSendBulkNotification_ConfiguredChannels(t *testing.T) {
	st := newMemStore()
	st.users["t1"] = []string{"u1"}
	inApp := &recordingDispatcher{channel: models.ChannelInApp, status: models.DeliveryDelivered}
	email := &recordingDispatcher{channel: models.ChannelEmail, status: models.DeliveryDelivered}
	svc := New(Dependencies{
		Store:        st,
		Dispatchers:  []channels.Dispatcher{inApp, email},
		BulkChannels: []models.Channel{models.ChannelInApp},
		Logger:       logger.NewTestLogger(t),
	})

	_, err := svc.SendBulkNotification(context.Background(), "t1", hiData(), models.RecipientFilter{})
	require.NoError(t, err)
	assert.Len(t, inApp.calls, 1)
	assert.Empty(t, email.calls)
}

func TestSendBulkNotification_NoMatches(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.SendBulkNotification(context.Background(), "t1", hiData(), models.RecipientFilter{})
	require.NoError(t, err)
	assert.Empty(t, result.NotificationIDs)
	assert.Zero(t, f.store.rowCount())
}

func TestSendBulkNotification_RequiresTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SendBulkNotification(context.Background(), " ", hiData(), models.RecipientFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
}

func TestSendTemplateNotification(t *testing.T) {
	f := newFixture(t)
	f.store.templates["po-approved"] = &models.NotificationTemplate{
		ID:        "po-approved",
		Title:     "PO {{poNumber}} approved",
		Message:   "Approved by {{approver}} for {{amount}} ({{missing}})",
		Type:      models.TypeSuccess,
		Category:  "procurement",
		Priority:  models.PriorityHigh,
		Metadata:  map[string]interface{}{"module": "procurement", "approver": "default"},
		ActionURL: "/po/{{poNumber}}",
	}

	result, err := f.svc.SendTemplateNotification(context.Background(), "po-approved",
		[]models.Recipient{{UserID: "u1", TenantID: "t1", Channels: []models.Channel{models.ChannelInApp}}},
		map[string]interface{}{"poNumber": "PO-1001", "approver": "Dana", "amount": 1250.5})
	require.NoError(t, err)

	row := f.store.rows[result.NotificationIDs[0]]
	assert.Equal(t, "PO PO-1001 approved", row.Title)
	assert.Equal(t, "Approved by Dana for 1250.5 ({{missing}})", row.Message)
	assert.Equal(t, "/po/PO-1001", row.ActionURL)
	assert.Equal(t, models.TypeSuccess, row.Type)
	assert.Equal(t, models.PriorityHigh, row.Priority)
	assert.Equal(t, "procurement", row.Metadata["module"])
	assert.Equal(t, "Dana", row.Metadata["approver"])
	assert.Equal(t, "PO-1001", row.Metadata["poNumber"])
}

func TestSendTemplateNotification_MissingTemplate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendTemplateNotification(context.Background(), "missing-id",
		[]models.Recipient{{UserID: "u1", TenantID: "t1"}}, map[string]interface{}{})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateNotFound))
	assert.Zero(t, f.store.rowCount())
}

func TestGetUserNotifications_UnreadAscending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := []models.Recipient{{UserID: "u1", TenantID: "t1"}}

	var ids []string
	for i := 0; i < 12; i++ {
		res, err := f.svc.SendNotification(ctx, u1, hiData())
		require.NoError(t, err)
		ids = append(ids, res.NotificationIDs[0])
	}
	_, err := f.svc.SendNotification(ctx, []models.Recipient{{UserID: "u2", TenantID: "t1"}}, hiData())
	require.NoError(t, err)

	scope := models.Scope{TenantID: "t1", UserID: "u1"}
	_, err = f.svc.MarkAsRead(ctx, ids[0], scope)
	require.NoError(t, err)

	list, err := f.svc.GetUserNotifications(ctx, scope, models.ListOptions{Status: models.StatusUnread, Limit: 10})
	require.NoError(t, err)

	require.Len(t, list, 10)
	assert.Equal(t, ids[1], list[0].ID)
	for i, n := range list {
		assert.Equal(t, models.StatusUnread, n.Status)
		assert.Equal(t, "u1", n.UserID)
		if i > 0 {
			assert.True(t, list[i-1].CreatedAt.Before(n.CreatedAt))
		}
	}

	newest, err := f.svc.GetUserNotifications(ctx, scope, models.ListOptions{NewestFirst: true, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, ids[11], newest[0].ID)
}

func TestMarkAsRead_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := models.Scope{TenantID: "t1", UserID: "u1"}

	res, err := f.svc.SendNotification(ctx, []models.Recipient{{UserID: "u1", TenantID: "t1"}}, hiData())
	require.NoError(t, err)
	id := res.NotificationIDs[0]

	first, err := f.svc.MarkAsRead(ctx, id, scope)
	require.NoError(t, err)
	readAt := *f.store.rows[id].ReadAt

	second, err := f.svc.MarkAsRead(ctx, id, scope)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(0), second)
	assert.Equal(t, models.StatusRead, f.store.rows[id].Status)
	assert.Equal(t, readAt, *f.store.rows[id].ReadAt)
}

func TestScopedMutations_ForeignIDAffectsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SendNotification(ctx, []models.Recipient{{UserID: "u1", TenantID: "t1"}}, hiData())
	require.NoError(t, err)
	id := res.NotificationIDs[0]

	for _, intruder := range []models.Scope{{TenantID: "t2", UserID: "u1"}, {TenantID: "t1", UserID: "u2"}} {
		n, err := f.svc.MarkAsRead(ctx, id, intruder)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = f.svc.DeleteNotification(ctx, id, intruder)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = f.svc.GetDeliveryAttempts(ctx, id, intruder)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationNotFound))
	}
	assert.Equal(t, models.StatusUnread, f.store.rows[id].Status)
}

func TestStats_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := models.Scope{TenantID: "t1", UserID: "u1"}

	const sends, reads = 5, 2
	var ids []string
	for i := 0; i < sends; i++ {
		res, err := f.svc.SendNotification(ctx, []models.Recipient{{UserID: "u1", TenantID: "t1"}}, hiData())
		require.NoError(t, err)
		ids = append(ids, res.NotificationIDs[0])
	}
	for i := 0; i < reads; i++ {
		_, err := f.svc.MarkAsRead(ctx, ids[i], scope)
		require.NoError(t, err)
	}

	stats, err := f.svc.GetNotificationStats(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Total: sends, Unread: sends - reads}, stats)

	n, err := f.svc.MarkAllAsRead(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(sends-reads), n)

	stats, err = f.svc.GetNotificationStats(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Total: sends, Unread: 0}, stats)
}

func TestDeleteNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := models.Scope{TenantID: "t1", UserID: "u1"}

	res, err := f.svc.SendNotification(ctx, []models.Recipient{{UserID: "u1", TenantID: "t1"}}, hiData())
	require.NoError(t, err)

	n, err := f.svc.DeleteNotification(ctx, res.NotificationIDs[0], scope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, f.store.rowCount())
}

func TestGetDeliveryAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SendNotification(ctx,
		[]models.Recipient{{UserID: "u1", TenantID: "t1", Channels: []models.Channel{models.ChannelInApp, models.ChannelPush}}},
		hiData())
	require.NoError(t, err)

	attempts, err := f.svc.GetDeliveryAttempts(ctx, res.NotificationIDs[0], models.Scope{TenantID: "t1", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, models.ChannelInApp, attempts[0].Channel)
	assert.Equal(t, models.ChannelPush, attempts[1].Channel)
}
