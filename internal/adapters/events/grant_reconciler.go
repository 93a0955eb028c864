package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/brightcast/ppv-access-service/internal/metrics"
	"github.com/brightcast/ppv-access-service/internal/ports"
)

// GrantReconciler retries stream-provider access grants that failed inline
// during fulfillment. The ledger is authoritative; this loop drives the
// provider ACL toward it.
type GrantReconciler struct {
	logger     *slog.Logger
	queue      ports.GrantQueueRepository
	stream     ports.StreamProvider
	interval   time.Duration
	batchSize  int
	maxRetries int
}

func NewGrantReconciler(logger *slog.Logger, queue ports.GrantQueueRepository, stream ports.StreamProvider, interval time.Duration, batchSize, maxRetries int) *GrantReconciler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxRetries <= 0 {
		maxRetries = 10
	}
	return &GrantReconciler{
		logger:     logger,
		queue:      queue,
		stream:     stream,
		interval:   interval,
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

func (r *GrantReconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.processOnce(ctx); err != nil {
			r.logger.ErrorContext(ctx, "grant reconcile iteration failed",
				"module", "events.grant_reconciler",
				"layer", "adapter",
				"operation", "reconcile_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *GrantReconciler) processOnce(ctx context.Context) error {
	tasks, err := r.queue.FetchPending(ctx, r.batchSize)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if task.RetryCount >= r.maxRetries {
			// Left pending for operator attention; retrying forever would
			// mask a provider-side problem.
			r.logger.WarnContext(ctx, "grant task exceeded retry budget",
				"module", "events.grant_reconciler",
				"layer", "adapter",
				"operation", "grant_access",
				"outcome", "exhausted",
				"task_id", task.TaskID,
				"event_id", task.EventID,
				"retry_count", task.RetryCount,
			)
			continue
		}

		now := time.Now().UTC()
		if err := r.stream.GrantAccess(ctx, task.UserEmail, task.EventID); err != nil {
			metrics.GrantFailures.Inc()
			if markErr := r.queue.MarkFailed(ctx, task.TaskID, err.Error(), now); markErr != nil {
				r.logger.ErrorContext(ctx, "failed to record grant failure",
					"module", "events.grant_reconciler",
					"layer", "adapter",
					"operation", "grant_access",
					"outcome", "failure",
					"task_id", task.TaskID,
					"error", markErr,
				)
			}
			continue
		}
		if err := r.queue.MarkGranted(ctx, task.TaskID, now); err != nil {
			r.logger.ErrorContext(ctx, "failed to mark grant task granted",
				"module", "events.grant_reconciler",
				"layer", "adapter",
				"operation", "grant_access",
				"outcome", "failure",
				"task_id", task.TaskID,
				"error", err,
			)
			continue
		}
		r.logger.InfoContext(ctx, "stream access reconciled",
			"module", "events.grant_reconciler",
			"layer", "adapter",
			"operation", "grant_access",
			"outcome", "success",
			"task_id", task.TaskID,
			"event_id", task.EventID,
		)
	}
	return nil
}
