package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helloworldit/portal/internal/domain/job"
	"github.com/helloworldit/portal/internal/jobs"
	"github.com/helloworldit/portal/internal/notifications"
)

// ProcessOne claims and executes at most one job. The bool reports
// whether a job was processed; job-level failures are absorbed into
// retry scheduling and do not surface as errors.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	start := time.Now()
	err = w.execute(ctx, j)
	if err != nil {
		w.handleFailure(ctx, j, err)
		if w.prom != nil {
			w.prom.ObserveJob(j.Type, "retry", time.Since(start))
		}
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	if w.prom != nil {
		w.prom.ObserveJob(j.Type, "done", time.Since(start))
	}
	w.logger.Info("job done", "job_id", j.ID, "type", j.Type, "attempts", j.Attempts)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(j)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case jobs.PasswordResetEmailPayload:
		return w.notifier.SendPasswordReset(ctx, notifications.PasswordResetInput{
			Email:       p.Email,
			FullName:    p.FullName,
			Username:    p.Username,
			NewPassword: p.NewPassword,
		})
	case jobs.PasswordNotRecoverableEmailPayload:
		return w.notifier.SendPasswordNotRecoverable(ctx, notifications.PasswordNotRecoverableInput{
			Email:    p.Email,
			FullName: p.FullName,
			Username: p.Username,
		})
	default:
		return fmt.Errorf("%w: %s", jobs.ErrInvalidJobType, j.Type)
	}
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error) {
	// malformed jobs never succeed; park them immediately
	if errors.Is(execErr, jobs.ErrInvalidJobType) || errors.Is(execErr, jobs.ErrInvalidJobPayload) {
		w.logger.Error("job unprocessable", "job_id", j.ID, "type", j.Type, "err", execErr)
		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.logger.Error("mark failed errored", "job_id", j.ID, "err", err)
		}
		if w.prom != nil {
			w.prom.ObserveJob(j.Type, "failed", 0)
		}
		return
	}

	// Attempts counts completed tries; this one makes Attempts+1.
	if j.Attempts+1 >= j.MaxAttempts {
		w.logger.Error("job exhausted retries",
			"job_id", j.ID, "type", j.Type, "attempts", j.Attempts+1, "err", execErr)
		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.logger.Error("mark failed errored", "job_id", j.ID, "err", err)
		}
		if w.prom != nil {
			w.prom.ObserveJob(j.Type, "failed", 0)
		}
		return
	}

	delay := ExponentialBackoff(j.Attempts)
	runAt := time.Now().UTC().Add(delay)

	w.logger.Warn("job failed, rescheduling",
		"job_id", j.ID, "type", j.Type,
		"attempt", j.Attempts+1, "retry_in", delay.String(), "err", execErr)

	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		w.logger.Error("reschedule errored", "job_id", j.ID, "err", err)
	}
}
