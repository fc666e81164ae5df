package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helloworldit/portal/internal/domain/banner"
	"github.com/helloworldit/portal/internal/observability"
)

const bannerColumns = `id, company_name, title, image_path, click_url, target,
	       banner_type, priority, impressions, clicks,
	       start_date, end_date, is_active, description,
	       created_at, updated_at, created_by, updated_by`

type BannersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewBannersRepo(pool *pgxpool.Pool, prom *observability.Prom) *BannersRepo {
	return &BannersRepo{pool: pool, prom: prom}
}

func (r *BannersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanBanner(row pgx.Row) (banner.Banner, error) {
	var b banner.Banner
	err := row.Scan(
		&b.ID, &b.CompanyName, &b.Title, &b.ImagePath, &b.ClickURL, &b.Target,
		&b.BannerType, &b.Priority, &b.Impressions, &b.Clicks,
		&b.StartDate, &b.EndDate, &b.IsActive, &b.Description,
		&b.CreatedAt, &b.UpdatedAt, &b.CreatedBy, &b.UpdatedBy,
	)
	return b, err
}

func (r *BannersRepo) Create(ctx context.Context, p banner.CreateParams) (banner.Banner, error) {
	var b banner.Banner
	op := "banners.create"

	err := r.observe(op, func() error {
		var err error
		b, err = scanBanner(r.pool.QueryRow(ctx, `
		INSERT INTO banners (
			company_name, title, image_path, click_url, target,
			banner_type, priority, start_date, end_date,
			is_active, description, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10, $11)
		RETURNING `+bannerColumns,
			p.CompanyName, p.Title, p.ImagePath, p.ClickURL, p.Target,
			p.BannerType, p.Priority, p.StartDate, p.EndDate,
			p.Description, p.CreatedBy))
		return err
	})

	if err != nil {
		return banner.Banner{}, err
	}
	return b, nil
}

func (r *BannersRepo) GetByID(ctx context.Context, id int64) (banner.Banner, error) {
	var b banner.Banner
	op := "banners.get_by_id"

	err := r.observe(op, func() error {
		var err error
		b, err = scanBanner(r.pool.QueryRow(ctx,
			`SELECT `+bannerColumns+` FROM banners WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return banner.Banner{}, banner.ErrNotFound
		}
		return banner.Banner{}, err
	}
	return b, nil
}

// ListAll returns every banner for the admin screen, newest schedule
// first.
func (r *BannersRepo) ListAll(ctx context.Context) ([]banner.Banner, error) {
	return r.list(ctx, "banners.list_all", `
	SELECT `+bannerColumns+`
	FROM banners
	ORDER BY start_date DESC, id DESC`, nil)
}

// ListVisible returns active banners of the given type whose schedule
// covers now, ordered by priority.
func (r *BannersRepo) ListVisible(ctx context.Context, bannerType string) ([]banner.Banner, error) {
	return r.list(ctx, "banners.list_visible", `
	SELECT `+bannerColumns+`
	FROM banners
	WHERE is_active = TRUE
	  AND start_date <= NOW()
	  AND end_date >= NOW()
	  AND ($1 = '' OR banner_type = $1)
	ORDER BY priority ASC, id ASC`, []any{bannerType})
}

func (r *BannersRepo) list(ctx context.Context, op, sql string, args []any) ([]banner.Banner, error) {
	var banners []banner.Banner

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		banners = banners[:0]
		for rows.Next() {
			b, err := scanBanner(rows)
			if err != nil {
				return err
			}
			banners = append(banners, b)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	if banners == nil {
		banners = []banner.Banner{}
	}
	return banners, nil
}

func (r *BannersRepo) Update(ctx context.Context, id int64, p banner.UpdateParams) (banner.Banner, error) {
	var b banner.Banner
	op := "banners.update"

	err := r.observe(op, func() error {
		var err error
		b, err = scanBanner(r.pool.QueryRow(ctx, `
		UPDATE banners
		SET company_name = $2,
		    title = $3,
		    click_url = $4,
		    target = $5,
		    banner_type = $6,
		    priority = $7,
		    start_date = $8,
		    end_date = $9,
		    description = $10,
		    image_path = COALESCE($11, image_path),
		    updated_by = $12,
		    updated_at = $13
		WHERE id = $1
		RETURNING `+bannerColumns,
			id, p.CompanyName, p.Title, p.ClickURL, p.Target,
			p.BannerType, p.Priority, p.StartDate, p.EndDate,
			p.Description, p.ImagePath, p.UpdatedBy, time.Now().UTC()))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return banner.Banner{}, banner.ErrNotFound
		}
		return banner.Banner{}, err
	}
	return b, nil
}

func (r *BannersRepo) SetActive(ctx context.Context, id int64, active bool, updatedBy string) error {
	var tag pgconn.CommandTag
	op := "banners.set_active"

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
		UPDATE banners
		SET is_active = $2, updated_by = $3, updated_at = NOW()
		WHERE id = $1`, id, active, updatedBy)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return banner.ErrNotFound
	}
	return nil
}

func (r *BannersRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag
	op := "banners.delete"

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM banners WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return banner.ErrNotFound
	}
	return nil
}

// RecordImpression and RecordClick bump counters without failing the
// serving path: callers ignore the error.
func (r *BannersRepo) RecordImpression(ctx context.Context, id int64) error {
	return r.observe("banners.record_impression", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE banners SET impressions = impressions + 1 WHERE id = $1`, id)
		return err
	})
}

func (r *BannersRepo) RecordClick(ctx context.Context, id int64) error {
	return r.observe("banners.record_click", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE banners SET clicks = clicks + 1 WHERE id = $1`, id)
		return err
	})
}
