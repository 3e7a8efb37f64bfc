// internal/notification/store/recipients.go
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	apperrors "ops-notifications/internal/common/errors"
	"ops-notifications/internal/models"

	"github.com/lib/pq"
)

// ErrUserNotFound means the user id has no row in the tenant.
var ErrUserNotFound = stderrors.New("user not found")

// recipientQuery composes the filter into one predicate. Every present dimension is
// ANDed with the tenant scope; none can replace another.
func recipientQuery(tenantID string, filter models.RecipientFilter) (string, []interface{}) {
	clauses := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}

	add := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		args = append(args, pq.Array(values))
		clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", column, len(args)))
	}
	add("role", filter.Roles)
	add("department", filter.Departments)
	add("location", filter.Locations)

	clauses = append(clauses, "active")

	return "SELECT id FROM users WHERE " + strings.Join(clauses, " AND ") + " ORDER BY id", args
}

// FindRecipients returns the ids of active users in the tenant matching the filter.
func (s *Store) FindRecipients(ctx context.Context, tenantID string, filter models.RecipientFilter) ([]string, error) {
	query, args := recipientQuery(tenantID, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewRecipientResolutionError(tenantID, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewRecipientResolutionError(tenantID, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewRecipientResolutionError(tenantID, err)
	}
	return ids, nil
}

// GetUserContact loads the email address and device tokens the dispatchers need.
func (s *Store) GetUserContact(ctx context.Context, userID, tenantID string) (*models.UserContact, error) {
	var (
		email  sql.NullString
		tokens pq.StringArray
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email, push_tokens FROM users WHERE id = $1 AND tenant_id = $2`,
		userID, tenantID,
	).Scan(&email, &tokens)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user contact: %w", err)
	}

	contact := &models.UserContact{
		ID:       userID,
		TenantID: tenantID,
		Email:    strings.TrimSpace(email.String),
	}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			contact.PushTokens = append(contact.PushTokens, t)
		}
	}
	return contact, nil
}
