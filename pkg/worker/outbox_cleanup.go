package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/appointments-api/pkg/logger"
	"github.com/jwalitptl/appointments-api/pkg/metrics"
	"github.com/jwalitptl/appointments-api/pkg/repository"
)

// OutboxCleanupWorker removes processed events older than the retention period.
type OutboxCleanupWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, interval time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger.With("outbox_cleanup"),
		metrics:   metrics,
		now:       time.Now,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *OutboxCleanupWorker) RunOnce(ctx context.Context) {
	cutoff := w.now().Add(-w.retention)
	deleted, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error(err, "failed to purge processed events")
		return
	}
	if deleted > 0 {
		w.metrics.OutboxEventsPurged.Add(float64(deleted))
		w.logger.Info("purged processed events", "count", deleted)
	}
}
