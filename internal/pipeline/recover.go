package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/async"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
)

// Lister finds contracts by status, oldest first.
type Lister interface {
	ListByStatus(ctx context.Context, statuses ...constants.Status) ([]*entity.Contract, error)
}

// RecoverIncomplete re-enqueues every pending or processing contract, for
// use at process start. Contracts the queue already tracks are skipped when
// it implements async.Tracker. It stops at the first backpressure signal and
// returns how many jobs were accepted.
func RecoverIncomplete(ctx context.Context, store Lister, q async.Queue, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	items, err := store.ListByStatus(ctx, constants.StatusPending, constants.StatusProcessing)
	if err != nil {
		return 0, err
	}

	var tracked map[uuid.UUID]struct{}
	if t, ok := q.(async.Tracker); ok {
		if tracked, err = t.Tracked(ctx); err != nil {
			logger.Warn("pipeline.recover.tracked", "error", err)
		}
	}

	n, skipped := 0, 0
	for i, c := range items {
		if _, ok := tracked[c.ID]; ok {
			skipped++
			continue
		}
		if err := q.Enqueue(ctx, async.NewJob(c.ID, "recovery")); err != nil {
			if errors.Is(err, common.ErrBackpressure) {
				logger.Warn("pipeline.recover.backpressure", "enqueued", n, "remaining", len(items)-i)
			}
			return n, err
		}
		n++
	}
	logger.Info("pipeline.recover.done", "enqueued", n, "already_queued", skipped)
	return n, nil
}
