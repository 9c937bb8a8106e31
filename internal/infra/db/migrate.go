package db

import (
	"database/sql"
)

// schema lists the tables in creation order.
var schema = []struct {
	table string
	ddl   string
}{
	{"notifications", `
CREATE TABLE IF NOT EXISTS notifications (
    tenant_id   TEXT NOT NULL,
    id          TEXT NOT NULL,
    state       VARCHAR(16) NOT NULL,
    archived    BOOLEAN NOT NULL DEFAULT FALSE,
    document    JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (tenant_id, id, state),
    CONSTRAINT chk_notification_state CHECK (state IN ('published', 'draft'))
)`},
	{"brands", `
CREATE TABLE IF NOT EXISTS brands (
    tenant_id    TEXT NOT NULL,
    id           TEXT NOT NULL,
    revision     INTEGER NOT NULL,
    version      TEXT NOT NULL DEFAULT '',
    name         TEXT NOT NULL DEFAULT '',
    is_default   BOOLEAN NOT NULL DEFAULT FALSE,
    settings     JSONB,
    snippets     JSONB,
    published_at TIMESTAMPTZ,
    PRIMARY KEY (tenant_id, id, revision)
)`},
	{"configurations", `
CREATE TABLE IF NOT EXISTS configurations (
    tenant_id  TEXT NOT NULL,
    id         TEXT NOT NULL,
    provider   TEXT NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    settings   JSONB,
    PRIMARY KEY (tenant_id, id)
)`},
	{"event_maps", `
CREATE TABLE IF NOT EXISTS event_maps (
    tenant_id        TEXT NOT NULL,
    event_id         TEXT NOT NULL,
    notification_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (tenant_id, event_id)
)`},
	{"profiles", `
CREATE TABLE IF NOT EXISTS profiles (
    tenant_id    TEXT NOT NULL,
    recipient_id TEXT NOT NULL,
    profile      JSONB NOT NULL,
    PRIMARY KEY (tenant_id, recipient_id)
)`},
	{"preferences", `
CREATE TABLE IF NOT EXISTS preferences (
    tenant_id    TEXT NOT NULL,
    recipient_id TEXT NOT NULL,
    preferences  JSONB NOT NULL,
    PRIMARY KEY (tenant_id, recipient_id)
)`},
	{"preference_templates", `
CREATE TABLE IF NOT EXISTS preference_templates (
    tenant_id      TEXT NOT NULL,
    id             TEXT NOT NULL,
    name           TEXT NOT NULL DEFAULT '',
    default_status VARCHAR(16) NOT NULL DEFAULT 'OPTED_IN',
    PRIMARY KEY (tenant_id, id)
)`},
	{"preference_template_values", `
CREATE TABLE IF NOT EXISTS preference_template_values (
    tenant_id    TEXT NOT NULL,
    recipient_id TEXT NOT NULL,
    template_id  TEXT NOT NULL,
    value        JSONB NOT NULL,
    PRIMARY KEY (tenant_id, recipient_id, template_id)
)`},
	{"message_blobs", `
CREATE TABLE IF NOT EXISTS message_blobs (
    key        TEXT PRIMARY KEY,
    body       BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
}

var indexes = []string{
	// latest draft lookup
	`CREATE INDEX IF NOT EXISTS idx_notifications_updated_at ON notifications(tenant_id, id, state, updated_at DESC)`,
	// default brand lookup
	`CREATE INDEX IF NOT EXISTS idx_brands_default ON brands(tenant_id) WHERE is_default = TRUE`,
	// blob expiry sweeps
	`CREATE INDEX IF NOT EXISTS idx_message_blobs_updated_at ON message_blobs(updated_at)`,
}

// MigrateUp creates the schema. It is safe to run repeatedly.
func MigrateUp(db *sql.DB) error {
	for _, t := range schema {
		if _, err := db.Exec(t.ddl); err != nil {
			return err
		}
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}
	return nil
}

// MigrateDown drops every table created by MigrateUp, in reverse order.
// Use with caution: this deletes all data.
func MigrateDown(db *sql.DB) error {
	for i := len(schema) - 1; i >= 0; i-- {
		if _, err := db.Exec(`DROP TABLE IF EXISTS ` + schema[i].table + ` CASCADE`); err != nil {
			return err
		}
	}
	return nil
}
