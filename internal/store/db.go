package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{Client: db}, nil
}

// Migrate creates the schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Client.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS classes (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	owner_id    TEXT NOT NULL,
	owner_name  TEXT NOT NULL DEFAULT '',
	profile     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_classes_owner ON classes(owner_id);

CREATE TABLE IF NOT EXISTS class_members (
	class_id   TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	joined_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (class_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_class_members_user ON class_members(user_id);

CREATE TABLE IF NOT EXISTS timelines (
	id              TEXT PRIMARY KEY,
	class_id        TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
	description     TEXT NOT NULL,
	starts_at       TIMESTAMPTZ NOT NULL,
	ends_at         TIMESTAMPTZ NOT NULL,
	location_range  DOUBLE PRECISION NOT NULL,
	latitude        DOUBLE PRECISION NOT NULL,
	longitude       DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (starts_at < ends_at),
	CHECK (location_range > 0)
);
CREATE INDEX IF NOT EXISTS idx_timelines_class ON timelines(class_id, created_at);

CREATE TABLE IF NOT EXISTS attendance_records (
	id              TEXT PRIMARY KEY,
	timeline_id     TEXT NOT NULL REFERENCES timelines(id) ON DELETE CASCADE,
	user_id         TEXT NOT NULL,
	checked_in      BOOLEAN NOT NULL DEFAULT FALSE,
	checked_out     BOOLEAN NOT NULL DEFAULT FALSE,
	checked_in_at   TIMESTAMPTZ,
	checked_out_at  TIMESTAMPTZ,
	UNIQUE (timeline_id, user_id),
	CHECK (checked_in OR NOT checked_out)
);

CREATE TABLE IF NOT EXISTS audit_events (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	class_id     TEXT NOT NULL DEFAULT '',
	timeline_id  TEXT NOT NULL DEFAULT '',
	user_id      TEXT NOT NULL DEFAULT '',
	occurred_at  TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_events_time ON audit_events(occurred_at DESC);
`
