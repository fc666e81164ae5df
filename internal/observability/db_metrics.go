package observability

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ObserveDB wraps a logical repository operation with duration and error
// metrics. Callers pass a short op name like "users.search" or "jobs.claim".
func (p *Prom) ObserveDB(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	secs := time.Since(start).Seconds()

	status := "ok"
	if err != nil {
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, classifyDBError(err)).Inc()
	}
	p.DbQueryDuration.WithLabelValues(op, status).Observe(secs)
	return err
}

func classifyDBError(err error) string {
	if errors.Is(err, pgx.ErrNoRows) {
		return "no_rows"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "23503":
			return "fk_violation"
		case "40001":
			return "serialization"
		case "55P03":
			return "lock_not_available"
		default:
			return "pg_" + pgErr.Code
		}
	}
	return "other"
}
