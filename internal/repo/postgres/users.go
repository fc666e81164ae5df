package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helloworldit/portal/internal/domain/user"
	"github.com/helloworldit/portal/internal/observability"
)

const userColumns = `u.id, u.username, u.password_hash, u.full_name, u.email, u.phone,
	       u.role_id, r.name, u.is_active, u.profile_image_path, u.created_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Email, &u.Phone,
		&u.RoleID, &u.RoleName, &u.IsActive, &u.ProfileImagePath, &u.CreatedAt,
	)
	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, p user.CreateParams) (user.User, error) {
	var u user.User
	op := "users.create"

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO users (username, password_hash, full_name, email, phone, role_id, is_active, profile_image_path)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
			RETURNING *
		)
		SELECT `+userColumns+`
		FROM inserted u
		JOIN roles r ON r.id = u.role_id`,
			p.Username, p.PasswordHash, p.FullName, p.Email, p.Phone, p.RoleID, p.ProfileImagePath,
		))
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrUsernameTaken
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	op := "users.get_by_username"

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.username = $1`, username))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	op := "users.get_by_id"

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

// Search matches q case-insensitively against username, full name, email,
// phone and role name. Empty q returns everyone. Ordered newest first.
func (r *UsersRepo) Search(ctx context.Context, q string, limit, offset int) ([]user.User, error) {
	var users []user.User
	op := "users.search"

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE $1 = '' OR u.username ILIKE '%' || $1 || '%'
		   OR u.full_name ILIKE '%' || $1 || '%'
		   OR u.email ILIKE '%' || $1 || '%'
		   OR u.phone ILIKE '%' || $1 || '%'
		   OR r.name ILIKE '%' || $1 || '%'
		ORDER BY u.created_at DESC, u.id DESC
		LIMIT $2 OFFSET $3`, q, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		users = users[:0]
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []user.User{}
	}
	return users, nil
}

func (r *UsersRepo) CountSearch(ctx context.Context, q string) (int, error) {
	var n int
	op := "users.count_search"

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE $1 = '' OR u.username ILIKE '%' || $1 || '%'
		   OR u.full_name ILIKE '%' || $1 || '%'
		   OR u.email ILIKE '%' || $1 || '%'
		   OR u.phone ILIKE '%' || $1 || '%'
		   OR r.name ILIKE '%' || $1 || '%'`, q).Scan(&n)
	})
	return n, err
}

func (r *UsersRepo) Update(ctx context.Context, id int64, p user.UpdateParams) (user.User, error) {
	var u user.User
	op := "users.update"

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE users
			SET username = $2,
			    full_name = $3,
			    email = $4,
			    phone = $5,
			    role_id = $6,
			    is_active = $7,
			    profile_image_path = CASE
			        WHEN $9 THEN NULL
			        WHEN $8::text IS NOT NULL THEN $8
			        ELSE profile_image_path
			    END
			WHERE id = $1
			RETURNING *
		)
		SELECT `+userColumns+`
		FROM updated u
		JOIN roles r ON r.id = u.role_id`,
			id, p.Username, p.FullName, p.Email, p.Phone, p.RoleID, p.IsActive,
			p.ProfileImagePath, p.RemoveProfileImage,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrUsernameTaken
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) SetActive(ctx context.Context, id int64, active bool) error {
	var tag pgconn.CommandTag
	op := "users.set_active"

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}
