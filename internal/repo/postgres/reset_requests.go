package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helloworldit/portal/internal/domain/job"
	"github.com/helloworldit/portal/internal/domain/resetreq"
	"github.com/helloworldit/portal/internal/domain/user"
	"github.com/helloworldit/portal/internal/observability"
)

const resetRequestColumns = `id, username, request_type, status,
	       request_date, completed_date, new_password, admin_remarks`

type ResetRequestsRepo struct {
	pool *pgxpool.Pool
	jobs *JobsRepo
	prom *observability.Prom
}

func NewResetRequestsRepo(pool *pgxpool.Pool, jobs *JobsRepo, prom *observability.Prom) *ResetRequestsRepo {
	return &ResetRequestsRepo{pool: pool, jobs: jobs, prom: prom}
}

func (r *ResetRequestsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanRequest(row pgx.Row) (resetreq.Request, error) {
	var req resetreq.Request
	err := row.Scan(
		&req.ID, &req.Username, &req.RequestType, &req.Status,
		&req.RequestDate, &req.CompletedDate, &req.NewPassword, &req.AdminRemarks,
	)
	return req, err
}

func (r *ResetRequestsRepo) Create(ctx context.Context, username, requestType string) (resetreq.Request, error) {
	var req resetreq.Request
	op := "reset_requests.create"

	err := r.observe(op, func() error {
		var err error
		req, err = scanRequest(r.pool.QueryRow(ctx, `
		INSERT INTO password_reset_requests (username, request_type, status)
		VALUES ($1, $2, $3)
		RETURNING `+resetRequestColumns,
			username, requestType, resetreq.StatusPending))
		return err
	})

	if err != nil {
		return resetreq.Request{}, err
	}
	return req, nil
}

// List returns requests, optionally filtered by status, newest first.
func (r *ResetRequestsRepo) List(ctx context.Context, status string) ([]resetreq.Request, error) {
	var reqs []resetreq.Request
	op := "reset_requests.list"

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, `
		SELECT `+resetRequestColumns+`
		FROM password_reset_requests
		WHERE $1 = '' OR status = $1
		ORDER BY request_date DESC, id DESC`, status)
		if err != nil {
			return err
		}
		defer rows.Close()

		reqs = reqs[:0]
		for rows.Next() {
			req, err := scanRequest(rows)
			if err != nil {
				return err
			}
			reqs = append(reqs, req)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []resetreq.Request{}
	}
	return reqs, nil
}

func (r *ResetRequestsRepo) GetByID(ctx context.Context, id int64) (resetreq.Request, error) {
	var req resetreq.Request
	op := "reset_requests.get_by_id"

	err := r.observe(op, func() error {
		var err error
		req, err = scanRequest(r.pool.QueryRow(ctx, `
		SELECT `+resetRequestColumns+`
		FROM password_reset_requests
		WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return resetreq.Request{}, resetreq.ErrNotFound
		}
		return resetreq.Request{}, err
	}
	return req, nil
}

// ResolveParams is the whole unit of work for completing a request.
type ResolveParams struct {
	RequestID    int64
	Action       string
	AdminRemarks *string

	// ResetPassword only: plaintext recorded on the request row, hash
	// written to the user account.
	NewPassword     *string
	NewPasswordHash *string

	// Outbox row committed atomically with the state change.
	Job job.CreateRequest
}

// Resolve completes a pending request in one transaction: a row lock
// plus status guard make completion first-wins, the user's password is
// rotated for ResetPassword, and the notification job lands in the
// outbox so it exists iff the resolution committed.
func (r *ResetRequestsRepo) Resolve(ctx context.Context, p ResolveParams) (resetreq.Request, error) {
	var req resetreq.Request
	op := "reset_requests.resolve"

	err := r.observe(op, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return fmt.Errorf("begin resolve tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var status string
		err = tx.QueryRow(ctx, `
		SELECT status FROM password_reset_requests
		WHERE id = $1
		FOR UPDATE`, p.RequestID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return resetreq.ErrNotFound
			}
			return err
		}
		if status != resetreq.StatusPending {
			return resetreq.ErrAlreadyCompleted
		}

		req, err = scanRequest(tx.QueryRow(ctx, `
		UPDATE password_reset_requests
		SET status = $2,
		    completed_date = $3,
		    new_password = $4,
		    admin_remarks = $5
		WHERE id = $1
		RETURNING `+resetRequestColumns,
			p.RequestID, resetreq.StatusCompleted, time.Now().UTC(),
			p.NewPassword, p.AdminRemarks))
		if err != nil {
			return err
		}

		if p.Action == resetreq.ActionResetPassword {
			tag, err := tx.Exec(ctx,
				`UPDATE users SET password_hash = $2 WHERE username = $1`,
				req.Username, p.NewPasswordHash)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return user.ErrNotFound
			}
		}

		if _, err := r.jobs.CreateTx(ctx, tx, p.Job); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return resetreq.Request{}, err
	}
	return req, nil
}
