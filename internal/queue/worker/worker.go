package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/helloworldit/portal/internal/domain/job"
	"github.com/helloworldit/portal/internal/notifications"
	"github.com/helloworldit/portal/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Config struct {
	WorkerID      string
	PollInterval  time.Duration
	LockTTL       time.Duration
	SweepInterval time.Duration
}

// Worker drains the mail outbox: claim, execute, ack or reschedule.
type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	prom     *observability.Prom
	logger   *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, prom *observability.Prom, logger *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		prom:     prom,
		logger:   logger,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sweeper := time.NewTicker(w.cfg.SweepInterval)
	defer sweeper.Stop()

	w.logger.Info("worker started",
		"worker_id", w.cfg.WorkerID,
		"poll_interval", w.cfg.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker received shutdown signal")
			return nil

		case <-sweeper.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.logger.Error("stale requeue failed", "err", err)
				continue
			}
			if n > 0 {
				w.logger.Warn("requeued stale jobs", "count", n)
			}

		case <-ticker.C:
			// drain the backlog before sleeping again
			for {
				processed, err := w.ProcessOne(ctx)
				if err != nil {
					w.logger.Error("process job failed", "err", err)
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}
