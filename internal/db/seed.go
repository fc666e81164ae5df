package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helloworldit/portal/internal/config"
	"github.com/helloworldit/portal/internal/domain/user"
	"github.com/helloworldit/portal/internal/security"
)

// EnsureAdminUser creates the bootstrap admin account on first boot.
// A no-op when ADMIN_USERNAME is unset or the account already exists;
// an existing account is never overwritten.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, logger *slog.Logger) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		logger.Info("admin seed skipped: ADMIN_USERNAME/ADMIN_PASSWORD not set")
		return nil
	}

	tag, err := pool.Exec(ctx, `
		INSERT INTO users (username, password_hash, full_name, email, phone, role_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (username) DO NOTHING`,
		cfg.AdminUsername,
		security.Digest(cfg.AdminPassword),
		cfg.AdminFullName,
		cfg.AdminEmail,
		cfg.AdminPhone,
		user.RoleAdminID,
	)
	if err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	if tag.RowsAffected() > 0 {
		logger.Info("admin user seeded", "username", cfg.AdminUsername)
	} else {
		logger.Debug("admin user already present", "username", cfg.AdminUsername)
	}
	return nil
}
