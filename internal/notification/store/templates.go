// internal/notification/store/templates.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	apperrors "ops-notifications/internal/common/errors"
	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/models"

	"github.com/redis/go-redis/v9"
)

// TemplateSource resolves a template by id.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id string) (*models.NotificationTemplate, error)
}

// GetTemplate returns a TEMPLATE_NOT_FOUND error for unknown ids.
func (s *Store) GetTemplate(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	var (
		t         models.NotificationTemplate
		metadata  []byte
		actionURL sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, message, type, category, priority, metadata, action_url
		FROM notification_templates WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Message, &t.Type, &t.Category, &t.Priority, &metadata, &actionURL)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewTemplateNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("get_template", err)
	}

	if t.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, apperrors.NewPersistenceError("get_template", err)
	}
	t.ActionURL = actionURL.String
	return &t, nil
}

// UpsertTemplate is used by operator tooling; the service itself never writes templates.
func (s *Store) UpsertTemplate(ctx context.Context, t models.NotificationTemplate) error {
	metadata, err := encodeMetadata(t.Metadata)
	if err != nil {
		return apperrors.NewPersistenceError("upsert_template", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notification_templates (id, title, message, type, category, priority, metadata, action_url, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			message = EXCLUDED.message,
			type = EXCLUDED.type,
			category = EXCLUDED.category,
			priority = EXCLUDED.priority,
			metadata = EXCLUDED.metadata,
			action_url = EXCLUDED.action_url,
			updated_at = EXCLUDED.updated_at`,
		t.ID, t.Title, t.Message, string(t.Type), t.Category, string(t.Priority), metadata,
		nullString(t.ActionURL), s.now(),
	)
	if err != nil {
		return apperrors.NewPersistenceError("upsert_template", err)
	}
	return nil
}

const templateCacheKeyPrefix = "notification:template:"

// CachedTemplates is a read-through Redis cache in front of a TemplateSource.
// Cache errors degrade to the source; misses are never cached.
type CachedTemplates struct {
	source TemplateSource
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedTemplates(source TemplateSource, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedTemplates {
	return &CachedTemplates{
		source: source,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "template_cache"}),
	}
}

func templateCacheKey(id string) string {
	return templateCacheKeyPrefix + id
}

func (c *CachedTemplates) GetTemplate(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	key := templateCacheKey(id)

	cached, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var t models.NotificationTemplate
		if jsonErr := json.Unmarshal([]byte(cached), &t); jsonErr == nil {
			return &t, nil
		}
		c.logger.Warn("discarding corrupt cached template", map[string]interface{}{"templateId": id})
	case err != redis.Nil:
		c.logger.Warn("template cache read failed", map[string]interface{}{
			"templateId": id,
			"error":      err,
		})
	}

	t, err := c.source.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(t); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("template cache write failed", map[string]interface{}{
				"templateId": id,
				"error":      err,
			})
		}
	}
	return t, nil
}

// Invalidate drops a cached template after it was changed at the source.
func (c *CachedTemplates) Invalidate(ctx context.Context, id string) error {
	return c.redis.Del(ctx, templateCacheKey(id)).Err()
}
