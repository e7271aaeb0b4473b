package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Options tune the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect initializes the database connection and runs migrations.
func Connect(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Migrations owns the conversation tables only. profiles and jobs belong to other
// services and are read as-is.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS threads (
            id BIGINT PRIMARY KEY,
            user_low TEXT NOT NULL,
            user_high TEXT NOT NULL,
            accepted_by TEXT[] NOT NULL DEFAULT '{}',
            archived_by TEXT[] NOT NULL DEFAULT '{}',
            muted_by TEXT[] NOT NULL DEFAULT '{}',
            contacted_by TEXT[] NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_message_at TIMESTAMPTZ,
            CONSTRAINT threads_pair_order CHECK (user_low COLLATE "C" < user_high COLLATE "C"),
            UNIQUE(user_low, user_high)
        );`,
	// Tables created before threads_pair_order compared ids under the database
	// collation, which disagrees with byte order for mixed-case ids.
	`ALTER TABLE threads DROP CONSTRAINT IF EXISTS threads_check;`,
	`DO $$
        BEGIN
            IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'threads_pair_order') THEN
                ALTER TABLE threads ADD CONSTRAINT threads_pair_order
                    CHECK (user_low COLLATE "C" < user_high COLLATE "C");
            END IF;
        END $$;`,
	`CREATE INDEX IF NOT EXISTS threads_user_low_idx ON threads (user_low);`,
	`CREATE INDEX IF NOT EXISTS threads_user_high_idx ON threads (user_high);`,
	`CREATE TABLE IF NOT EXISTS messages (
            id BIGINT PRIMARY KEY,
            thread_id BIGINT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            sender_id TEXT NOT NULL,
            sender_name TEXT NOT NULL DEFAULT '',
            content TEXT NOT NULL CHECK (length(btrim(content)) > 0),
            created_at TIMESTAMPTZ NOT NULL,
            job_details JSONB
        );`,
	`CREATE INDEX IF NOT EXISTS messages_thread_order_idx ON messages (thread_id, created_at, id);`,
	`CREATE TABLE IF NOT EXISTS notification_preferences (
            user_id TEXT NOT NULL,
            kind TEXT NOT NULL,
            enabled BOOLEAN NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(user_id, kind)
        );`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range Migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	slog.Info("database migrations applied", "count", len(Migrations))
	return nil
}
