package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema idempotently on startup. All statements
// are IF NOT EXISTS so repeated boots are safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS roles (
			id   BIGINT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`INSERT INTO roles (id, name) VALUES (1, 'Admin'), (2, 'Student')
		 ON CONFLICT (id) DO NOTHING`,

		`CREATE TABLE IF NOT EXISTS users (
			id                 BIGSERIAL PRIMARY KEY,
			username           TEXT NOT NULL UNIQUE,
			password_hash      TEXT NOT NULL,
			full_name          TEXT NOT NULL,
			email              TEXT NOT NULL,
			phone              TEXT NOT NULL DEFAULT '',
			role_id            BIGINT NOT NULL REFERENCES roles(id),
			is_active          BOOLEAN NOT NULL DEFAULT TRUE,
			profile_image_path TEXT,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_role_id ON users (role_id)`,

		`CREATE TABLE IF NOT EXISTS password_reset_requests (
			id             BIGSERIAL PRIMARY KEY,
			username       TEXT NOT NULL,
			request_type   TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'Pending',
			request_date   TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_date TIMESTAMPTZ,
			new_password   TEXT,
			admin_remarks  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reset_requests_status
			ON password_reset_requests (status, request_date DESC)`,

		`CREATE TABLE IF NOT EXISTS notices (
			id          BIGSERIAL PRIMARY KEY,
			subject     TEXT NOT NULL,
			description TEXT NOT NULL,
			entry_date  TIMESTAMPTZ NOT NULL DEFAULT now(),
			expire_date TIMESTAMPTZ,
			is_active   BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notices_active
			ON notices (is_active, entry_date DESC)`,

		`CREATE TABLE IF NOT EXISTS banners (
			id           BIGSERIAL PRIMARY KEY,
			company_name TEXT NOT NULL,
			title        TEXT NOT NULL,
			image_path   TEXT NOT NULL,
			click_url    TEXT NOT NULL DEFAULT '',
			target       TEXT NOT NULL DEFAULT '_blank',
			banner_type  TEXT NOT NULL DEFAULT 'Slider',
			priority     INT NOT NULL DEFAULT 0,
			impressions  INT NOT NULL DEFAULT 0,
			clicks       INT NOT NULL DEFAULT 0,
			start_date   TIMESTAMPTZ NOT NULL,
			end_date     TIMESTAMPTZ NOT NULL,
			is_active    BOOLEAN NOT NULL DEFAULT TRUE,
			description  TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ,
			created_by   TEXT NOT NULL,
			updated_by   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_banners_active
			ON banners (is_active, banner_type, priority)`,

		`CREATE TABLE IF NOT EXISTS jobs (
			id              UUID PRIMARY KEY,
			type            TEXT NOT NULL,
			payload         JSONB NOT NULL,
			status          TEXT NOT NULL DEFAULT 'pending',
			attempts        INT NOT NULL DEFAULT 0,
			max_attempts    INT NOT NULL DEFAULT 8,
			run_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			locked_at       TIMESTAMPTZ,
			locked_by       TEXT,
			last_error      TEXT,
			idempotency_key TEXT UNIQUE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_claim
			ON jobs (status, run_at) WHERE status IN ('pending', 'processing')`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
