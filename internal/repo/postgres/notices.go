package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helloworldit/portal/internal/domain/notice"
	"github.com/helloworldit/portal/internal/observability"
)

const noticeColumns = `id, subject, description, entry_date, expire_date, is_active`

type NoticesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewNoticesRepo(pool *pgxpool.Pool, prom *observability.Prom) *NoticesRepo {
	return &NoticesRepo{pool: pool, prom: prom}
}

func (r *NoticesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanNotice(row pgx.Row) (notice.Notice, error) {
	var n notice.Notice
	err := row.Scan(&n.ID, &n.Subject, &n.Description, &n.EntryDate, &n.ExpireDate, &n.IsActive)
	return n, err
}

func (r *NoticesRepo) Create(ctx context.Context, p notice.CreateParams) (notice.Notice, error) {
	var n notice.Notice
	op := "notices.create"

	err := r.observe(op, func() error {
		var err error
		n, err = scanNotice(r.pool.QueryRow(ctx, `
		INSERT INTO notices (subject, description, entry_date, expire_date, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING `+noticeColumns,
			p.Subject, p.Description, p.EntryDate, p.ExpireDate))
		return err
	})

	if err != nil {
		return notice.Notice{}, err
	}
	return n, nil
}

func (r *NoticesRepo) GetByID(ctx context.Context, id int64) (notice.Notice, error) {
	var n notice.Notice
	op := "notices.get_by_id"

	err := r.observe(op, func() error {
		var err error
		n, err = scanNotice(r.pool.QueryRow(ctx,
			`SELECT `+noticeColumns+` FROM notices WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notice.Notice{}, notice.ErrNotFound
		}
		return notice.Notice{}, err
	}
	return n, nil
}

// ListAll returns every notice, newest first, for the admin screen.
func (r *NoticesRepo) ListAll(ctx context.Context) ([]notice.Notice, error) {
	return r.list(ctx, "notices.list_all", `
	SELECT `+noticeColumns+`
	FROM notices
	ORDER BY entry_date DESC, id DESC`, nil)
}

// ListVisible returns active, unexpired notices for the student view,
// newest first, capped at limit.
func (r *NoticesRepo) ListVisible(ctx context.Context, limit int) ([]notice.Notice, error) {
	return r.list(ctx, "notices.list_visible", `
	SELECT `+noticeColumns+`
	FROM notices
	WHERE is_active = TRUE
	  AND (expire_date IS NULL OR expire_date > NOW())
	ORDER BY entry_date DESC, id DESC
	LIMIT $1`, []any{limit})
}

func (r *NoticesRepo) list(ctx context.Context, op, sql string, args []any) ([]notice.Notice, error) {
	var notices []notice.Notice

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		notices = notices[:0]
		for rows.Next() {
			n, err := scanNotice(rows)
			if err != nil {
				return err
			}
			notices = append(notices, n)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	if notices == nil {
		notices = []notice.Notice{}
	}
	return notices, nil
}

func (r *NoticesRepo) Update(ctx context.Context, id int64, p notice.UpdateParams) (notice.Notice, error) {
	var n notice.Notice
	op := "notices.update"

	err := r.observe(op, func() error {
		var err error
		n, err = scanNotice(r.pool.QueryRow(ctx, `
		UPDATE notices
		SET subject = $2,
		    description = $3,
		    entry_date = $4,
		    expire_date = $5,
		    is_active = $6
		WHERE id = $1
		RETURNING `+noticeColumns,
			id, p.Subject, p.Description, p.EntryDate, p.ExpireDate, p.IsActive))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notice.Notice{}, notice.ErrNotFound
		}
		return notice.Notice{}, err
	}
	return n, nil
}

func (r *NoticesRepo) SetActive(ctx context.Context, id int64, active bool) error {
	var tag pgconn.CommandTag
	op := "notices.set_active"

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
		UPDATE notices
		SET is_active = $2
		WHERE id = $1`, id, active)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notice.ErrNotFound
	}
	return nil
}

func (r *NoticesRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag
	op := "notices.delete"

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM notices WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notice.ErrNotFound
	}
	return nil
}
