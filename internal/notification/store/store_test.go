// internal/notification/store/store_test.go
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	apperrors "ops-notifications/internal/common/errors"
	"ops-notifications/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	scope    = models.Scope{TenantID: "t1", UserID: "u1"}

	notificationID = "6f1c2d9e-4b7a-4e2f-9c1d-2a3b4c5d6e7f"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db)
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string { return "n-1" }
	return s, mock
}

func notificationRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "user_id", "title", "message", "type", "category", "priority",
		"metadata", "action_url", "status", "created_at", "read_at",
	})
}

func TestStore_Create(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs("n-1", "t1", "u1", "Low stock", "SKU A-7 below threshold", "warning", "inventory",
			"high", `{"sku":"A-7"}`, "/inventory/A-7", "unread").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(fixedNow))

	n, err := s.Create(context.Background(), models.Notification{
		TenantID:  "t1",
		UserID:    "u1",
		Title:     "Low stock",
		Message:   "SKU A-7 below threshold",
		Type:      models.TypeWarning,
		Category:  "inventory",
		Priority:  models.PriorityHigh,
		Metadata:  map[string]interface{}{"sku": "A-7"},
		ActionURL: "/inventory/A-7",
		Status:    models.StatusRead,
	})

	require.NoError(t, err)
	assert.Equal(t, "n-1", n.ID)
	assert.Equal(t, models.StatusUnread, n.Status)
	assert.Nil(t, n.ReadAt)
	assert.Equal(t, fixedNow, n.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_NullableColumns(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs("n-1", "t1", "u1", "Hi", "Test", "info", "x", "low", nil, nil, "unread").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(fixedNow))

	_, err := s.Create(context.Background(), models.Notification{
		TenantID: "t1", UserID: "u1", Title: "Hi", Message: "Test",
		Type: models.TypeInfo, Category: "x", Priority: models.PriorityLow,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_DatabaseDown(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO notifications`).WillReturnError(errors.New("connection refused"))

	_, err := s.Create(context.Background(), models.Notification{TenantID: "t1", UserID: "u1"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed))
}

func TestStore_MarkRead_SecondCallAffectsNothing(t *testing.T) {
	s, mock := newMockStore(t)

	for _, affected := range []int64{1, 0} {
		mock.ExpectExec(`UPDATE notifications SET status = 'read', read_at = \$1 WHERE id = \$2 AND user_id = \$3 AND tenant_id = \$4 AND status = 'unread'`).
			WithArgs(fixedNow, notificationID, "u1", "t1").
			WillReturnResult(sqlmock.NewResult(0, affected))
	}

	first, err := s.MarkRead(context.Background(), notificationID, scope)
	require.NoError(t, err)
	second, err := s.MarkRead(context.Background(), notificationID, scope)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(0), second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkAllRead(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE notifications SET status = 'read'`).
		WithArgs(fixedNow, "u1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := s.MarkAllRead(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestStore_Delete_OtherTenantAffectsNothing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM notifications WHERE id = \$1 AND user_id = \$2 AND tenant_id = \$3`).
		WithArgs(notificationID, "u1", "t2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := s.Delete(context.Background(), notificationID, models.Scope{TenantID: "t2", UserID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_Get_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM notifications WHERE id = \$1`).
		WithArgs(notificationID, "u1", "t1").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), notificationID, scope)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationNotFound))
}

func TestStore_MalformedIDMatchesNothing(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	for _, id := range []string{"abc", "", "urn:uuid:zz", "6f1c2d9e-4b7a"} {
		t.Run(id, func(t *testing.T) {
			n, err := s.MarkRead(ctx, id, scope)
			require.NoError(t, err)
			assert.Zero(t, n)

			n, err = s.Delete(ctx, id, scope)
			require.NoError(t, err)
			assert.Zero(t, n)

			_, err = s.Get(ctx, id, scope)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationNotFound))

			attempts, err := s.ListAttempts(ctx, id, scope)
			require.NoError(t, err)
			assert.Empty(t, attempts)
		})
	}

	// no statement reaches the database
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkRead_CanonicalizesID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE notifications SET status = 'read'`).
		WithArgs(fixedNow, notificationID, "u1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.MarkRead(context.Background(), "6F1C2D9E-4B7A-4E2F-9C1D-2A3B4C5D6E7F", scope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List(t *testing.T) {
	readAt := fixedNow.Add(time.Minute)

	tests := []struct {
		name      string
		opts      models.ListOptions
		queryRe   string
		args      []interface{}
		rows      *sqlmock.Rows
		wantCount int
	}{
		{
			name:    "defaults",
			opts:    models.ListOptions{},
			queryRe: `WHERE tenant_id = \$1 AND user_id = \$2 ORDER BY created_at ASC, id ASC LIMIT \$3 OFFSET \$4`,
			args:    []interface{}{"t1", "u1", 50, 0},
			rows: notificationRow().
				AddRow("n-1", "t1", "u1", "A", "a", "info", "x", "low", nil, nil, "unread", fixedNow, nil).
				AddRow("n-2", "t1", "u1", "B", "b", "info", "x", "low", []byte(`{"k":1}`), "/b", "read", fixedNow, readAt),
			wantCount: 2,
		},
		{
			name:      "unread filter",
			opts:      models.ListOptions{Status: models.StatusUnread, Limit: 10},
			queryRe:   `AND status = \$3 ORDER BY created_at ASC, id ASC LIMIT \$4 OFFSET \$5`,
			args:      []interface{}{"t1", "u1", "unread", 10, 0},
			rows:      notificationRow().AddRow("n-1", "t1", "u1", "A", "a", "info", "x", "low", nil, nil, "unread", fixedNow, nil),
			wantCount: 1,
		},
		{
			name:      "newest first",
			opts:      models.ListOptions{NewestFirst: true, Offset: 20, Limit: 1000},
			queryRe:   `ORDER BY created_at DESC, id DESC LIMIT \$3 OFFSET \$4`,
			args:      []interface{}{"t1", "u1", 500, 20},
			rows:      notificationRow(),
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			mock.ExpectQuery(tt.queryRe).WithArgs(toDriverArgs(tt.args)...).WillReturnRows(tt.rows)

			got, err := s.List(context.Background(), scope, tt.opts)
			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
			assert.NotNil(t, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_List_ScansNullableColumns(t *testing.T) {
	s, mock := newMockStore(t)
	readAt := fixedNow.Add(time.Hour)

	mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WillReturnRows(notificationRow().
			AddRow("n-2", "t1", "u1", "B", "b", "success", "billing", "urgent", []byte(`{"invoice":"INV-9"}`), "/inv/9", "read", fixedNow, readAt))

	got, err := s.List(context.Background(), scope, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	n := got[0]
	assert.Equal(t, models.TypeSuccess, n.Type)
	assert.Equal(t, models.PriorityUrgent, n.Priority)
	assert.Equal(t, models.StatusRead, n.Status)
	assert.Equal(t, "INV-9", n.Metadata["invoice"])
	assert.Equal(t, "/inv/9", n.ActionURL)
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, readAt, *n.ReadAt)
}

func TestStore_Stats_TwoCounts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE tenant_id = \$1 AND user_id = \$2$`).
		WithArgs("t1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE tenant_id = \$1 AND user_id = \$2 AND status = 'unread'`).
		WithArgs("t1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	stats, err := s.Stats(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Total: 5, Unread: 3}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Stats_UnreadCountFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("timeout"))

	_, err := s.Stats(context.Background(), scope)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed))
}

func toDriverArgs(in []interface{}) []driver.Value {
	out := make([]driver.Value, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
