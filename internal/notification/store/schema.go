// internal/notification/store/schema.go
package store

// Schema is applied in order at startup. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		id          UUID PRIMARY KEY,
		tenant_id   TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		title       TEXT NOT NULL,
		message     TEXT NOT NULL,
		type        TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT '',
		priority    TEXT NOT NULL,
		metadata    JSONB,
		action_url  TEXT,
		status      TEXT NOT NULL DEFAULT 'unread',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		read_at     TIMESTAMPTZ,
		CONSTRAINT notifications_read_at_chk CHECK ((status = 'read') = (read_at IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_scope ON notifications (tenant_id, user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications (tenant_id, user_id) WHERE status = 'unread'`,
	`CREATE TABLE IF NOT EXISTS notification_templates (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		message     TEXT NOT NULL,
		type        TEXT NOT NULL DEFAULT 'info',
		category    TEXT NOT NULL DEFAULT '',
		priority    TEXT NOT NULL DEFAULT 'medium',
		metadata    JSONB,
		action_url  TEXT,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		tenant_id   TEXT NOT NULL,
		email       TEXT,
		role        TEXT,
		department  TEXT,
		location    TEXT,
		push_tokens TEXT[] NOT NULL DEFAULT '{}',
		active      BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS notification_delivery_attempts (
		id              UUID PRIMARY KEY,
		notification_id UUID NOT NULL REFERENCES notifications (id) ON DELETE CASCADE,
		tenant_id       TEXT NOT NULL,
		user_id         TEXT NOT NULL,
		channel         TEXT NOT NULL,
		status          TEXT NOT NULL,
		detail          TEXT,
		attempted_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_failed ON notification_delivery_attempts (tenant_id, attempted_at) WHERE status = 'failed'`,
}
