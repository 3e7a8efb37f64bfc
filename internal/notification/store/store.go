// internal/notification/store/store.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "ops-notifications/internal/common/errors"
	"ops-notifications/internal/models"

	"github.com/google/uuid"
)

const notificationColumns = `id, tenant_id, user_id, title, message, type, category, priority, metadata, action_url, status, created_at, read_at`

// Store is the PostgreSQL-backed persistence layer. All mutations are scoped by
// (tenant, user) and report the affected row count instead of a not-found error.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

func New(db *sql.DB) *Store {
	return &Store{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// Create inserts one unread row and returns it with its generated id and timestamp.
func (s *Store) Create(ctx context.Context, n models.Notification) (*models.Notification, error) {
	if n.ID == "" {
		n.ID = s.newID()
	}
	n.Status = models.StatusUnread
	n.ReadAt = nil

	metadata, err := encodeMetadata(n.Metadata)
	if err != nil {
		return nil, apperrors.NewPersistenceError("create", err)
	}

	query := `INSERT INTO notifications (id, tenant_id, user_id, title, message, type, category, priority, metadata, action_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err = s.db.QueryRowContext(ctx, query,
		n.ID, n.TenantID, n.UserID, n.Title, n.Message, string(n.Type), n.Category,
		string(n.Priority), metadata, nullString(n.ActionURL), string(n.Status),
	).Scan(&n.CreatedAt)
	if err != nil {
		return nil, apperrors.NewPersistenceError("create", err)
	}
	return &n, nil
}

// MarkRead transitions one unread row to read. A second call affects zero rows and
// leaves read_at untouched.
func (s *Store) MarkRead(ctx context.Context, id string, scope models.Scope) (int64, error) {
	id, ok := parseID(id)
	if !ok {
		return 0, nil
	}

	query := `UPDATE notifications SET status = 'read', read_at = $1
		WHERE id = $2 AND user_id = $3 AND tenant_id = $4 AND status = 'unread'`

	res, err := s.db.ExecContext(ctx, query, s.now(), id, scope.UserID, scope.TenantID)
	if err != nil {
		return 0, apperrors.NewPersistenceError("mark_read", err)
	}
	return rowsAffected(res, "mark_read")
}

func (s *Store) MarkAllRead(ctx context.Context, scope models.Scope) (int64, error) {
	query := `UPDATE notifications SET status = 'read', read_at = $1
		WHERE user_id = $2 AND tenant_id = $3 AND status = 'unread'`

	res, err := s.db.ExecContext(ctx, query, s.now(), scope.UserID, scope.TenantID)
	if err != nil {
		return 0, apperrors.NewPersistenceError("mark_all_read", err)
	}
	return rowsAffected(res, "mark_all_read")
}

// Delete hard-deletes one row. Delivery attempts go with it.
func (s *Store) Delete(ctx context.Context, id string, scope models.Scope) (int64, error) {
	id, ok := parseID(id)
	if !ok {
		return 0, nil
	}

	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2 AND tenant_id = $3`

	res, err := s.db.ExecContext(ctx, query, id, scope.UserID, scope.TenantID)
	if err != nil {
		return 0, apperrors.NewPersistenceError("delete", err)
	}
	return rowsAffected(res, "delete")
}

// Get returns a NOTIFICATION_NOT_FOUND error when the id is outside the scope.
func (s *Store) Get(ctx context.Context, id string, scope models.Scope) (*models.Notification, error) {
	key, ok := parseID(id)
	if !ok {
		return nil, apperrors.NewNotificationNotFoundError(id)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE id = $1 AND user_id = $2 AND tenant_id = $3`

	n, err := scanNotification(s.db.QueryRowContext(ctx, query, key, scope.UserID, scope.TenantID))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotificationNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("get", err)
	}
	return n, nil
}

// parseID canonicalizes a caller-supplied notification id. Ids that are not UUIDs cannot
// match any row, so callers treat them like ids outside the scope.
func parseID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// List pages through a user's notifications, oldest first unless NewestFirst is set.
func (s *Store) List(ctx context.Context, scope models.Scope, opts models.ListOptions) ([]models.Notification, error) {
	opts = opts.WithDefaults()

	var sb strings.Builder
	sb.WriteString(`SELECT ` + notificationColumns + ` FROM notifications WHERE tenant_id = $1 AND user_id = $2`)
	args := []interface{}{scope.TenantID, scope.UserID}

	if opts.Status != models.StatusAll {
		args = append(args, string(opts.Status))
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}

	if opts.NewestFirst {
		sb.WriteString(" ORDER BY created_at DESC, id DESC")
	} else {
		sb.WriteString(" ORDER BY created_at ASC, id ASC")
	}

	args = append(args, opts.Limit, opts.Offset)
	fmt.Fprintf(&sb, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list", err)
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, apperrors.NewPersistenceError("list", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError("list", err)
	}
	return notifications, nil
}

// Stats runs two separate counts; they are not taken from one snapshot.
func (s *Store) Stats(ctx context.Context, scope models.Scope) (models.Stats, error) {
	var stats models.Stats

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE tenant_id = $1 AND user_id = $2`,
		scope.TenantID, scope.UserID,
	).Scan(&stats.Total)
	if err != nil {
		return models.Stats{}, apperrors.NewPersistenceError("stats_total", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE tenant_id = $1 AND user_id = $2 AND status = 'unread'`,
		scope.TenantID, scope.UserID,
	).Scan(&stats.Unread)
	if err != nil {
		return models.Stats{}, apperrors.NewPersistenceError("stats_unread", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n         models.Notification
		metadata  []byte
		actionURL sql.NullString
		readAt    sql.NullTime
	)
	err := row.Scan(&n.ID, &n.TenantID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Category,
		&n.Priority, &metadata, &actionURL, &n.Status, &n.CreatedAt, &readAt)
	if err != nil {
		return nil, err
	}

	if n.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	n.ActionURL = actionURL.String
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return &n, nil
}

// encodeMetadata yields nil for an empty bag so the column stays NULL.
func encodeMetadata(m map[string]interface{}) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeMetadata(b []byte) (map[string]interface{}, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func rowsAffected(res sql.Result, op string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewPersistenceError(op, err)
	}
	return n, nil
}
