package services

import (
	"context"
	"fmt"

	"skillport/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Trigger asks for a contest's leaderboard to be recomputed, either inline or
// deferred to a worker.
type Trigger interface {
	Trigger(ctx context.Context, contestID uuid.UUID, reason models.RecomputeReason) error
}

// SyncTrigger recomputes before returning.
type SyncTrigger struct {
	calc Recomputer
}

func NewSyncTrigger(calc Recomputer) *SyncTrigger {
	return &SyncTrigger{calc: calc}
}

func (t *SyncTrigger) Trigger(ctx context.Context, contestID uuid.UUID, _ models.RecomputeReason) error {
	_, err := t.calc.Recompute(ctx, contestID)
	return err
}

type Enqueuer interface {
	Enqueue(ctx context.Context, contestID uuid.UUID, reason models.RecomputeReason) (bool, error)
}

// QueueTrigger hands the recomputation to the worker pool. A contest already
// waiting in the queue is not queued twice.
type QueueTrigger struct {
	queue Enqueuer
	log   *logrus.Entry
}

func NewQueueTrigger(queue Enqueuer, log *logrus.Entry) *QueueTrigger {
	return &QueueTrigger{queue: queue, log: orDiscard(log)}
}

func (t *QueueTrigger) Trigger(ctx context.Context, contestID uuid.UUID, reason models.RecomputeReason) error {
	queued, err := t.queue.Enqueue(ctx, contestID, reason)
	if err != nil {
		return fmt.Errorf("failed to enqueue recompute: %w", err)
	}
	if !queued {
		t.log.WithFields(logrus.Fields{
			"contest_id": contestID.String(),
			"reason":     reason,
		}).Debug("recompute already pending")
	}
	return nil
}
