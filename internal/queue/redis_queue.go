package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"skillport/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	RecomputeJobsQueue = "leaderboard:recompute:jobs"
	PendingContestKey  = "leaderboard:recompute:pending:"
	WorkerStatusHash   = "leaderboard:workers"

	// PendingTTL bounds how long a lost marker can hold back a contest.
	PendingTTL = 2 * time.Minute

	activeWorkerWindow = 30 * time.Second
	staleWorkerWindow  = 2 * time.Minute
	releaseTimeout     = 2 * time.Second
)

// enqueueScript pushes the job and sets the pending marker in one step. The
// push runs first so a failed push leaves no marker behind.
var enqueueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('LPUSH', KEYS[2], ARGV[1])
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func pendingKey(contestID uuid.UUID) string {
	return PendingContestKey + contestID.String()
}

// RecomputeQueue defers leaderboard recomputations to the worker. A contest is
// queued at most once at a time: triggers arriving while a job for the contest
// is still waiting collapse into it.
type RecomputeQueue struct {
	client *redis.Client
	log    *logrus.Entry
	now    func() time.Time
}

func NewRecomputeQueue(client *redis.Client, log *logrus.Entry) *RecomputeQueue {
	if log == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		log = logrus.NewEntry(silent)
	}
	return &RecomputeQueue{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// Enqueue queues a recomputation of contestID. It reports false when one was
// already waiting.
func (q *RecomputeQueue) Enqueue(ctx context.Context, contestID uuid.UUID, reason models.RecomputeReason) (bool, error) {
	job := models.RecomputeJob{
		JobID:     uuid.New(),
		ContestID: contestID,
		Reason:    reason,
		CreatedAt: q.now(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("failed to marshal recompute job: %w", err)
	}

	queued, err := enqueueScript.Run(ctx, q.client,
		[]string{pendingKey(contestID), RecomputeJobsQueue},
		data, job.JobID.String(), PendingTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to queue recompute job: %w", err)
	}
	if queued == 0 {
		return false, nil
	}

	q.log.WithFields(logrus.Fields{
		"job_id":     job.JobID.String(),
		"contest_id": contestID.String(),
		"reason":     reason,
	}).Debug("queued recompute job")
	return true, nil
}

// Dequeue waits up to timeout for a job. It returns nil, nil on timeout. The
// contest's pending marker is removed before the job is returned, so a trigger
// arriving during the recomputation queues another one. If the removal fails
// the marker still expires after PendingTTL.
func (q *RecomputeQueue) Dequeue(ctx context.Context, workerID string, timeout time.Duration) (*models.RecomputeJob, error) {
	result, err := q.client.BRPop(ctx, timeout, RecomputeJobsQueue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue recompute job: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var job models.RecomputeJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recompute job: %w", err)
	}

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := q.client.Del(releaseCtx, pendingKey(job.ContestID)).Err(); err != nil {
		q.log.WithError(err).WithField("contest_id", job.ContestID.String()).
			Warn("failed to release pending contest")
	}
	q.updateWorkerStatus(ctx, &models.WorkerStatus{
		WorkerID:     workerID,
		Status:       "busy",
		LastPing:     q.now(),
		CurrentJobID: &job.JobID,
	})

	return &job, nil
}

func (q *RecomputeQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, RecomputeJobsQueue).Result()
}

func (q *RecomputeQueue) RegisterWorker(ctx context.Context, workerID string) error {
	if err := q.updateWorkerStatus(ctx, &models.WorkerStatus{
		WorkerID: workerID,
		Status:   "idle",
		LastPing: q.now(),
	}); err != nil {
		return err
	}
	q.log.WithField("worker_id", workerID).Info("registered worker")
	return nil
}

func (q *RecomputeQueue) HeartbeatWorker(ctx context.Context, workerID string) error {
	status, err := q.workerStatus(ctx, workerID)
	if err != nil {
		return err
	}
	if status == nil {
		return q.RegisterWorker(ctx, workerID)
	}

	status.LastPing = q.now()
	return q.updateWorkerStatus(ctx, status)
}

// MarkWorkerIdle records a finished job and clears the worker's current job.
func (q *RecomputeQueue) MarkWorkerIdle(ctx context.Context, workerID string, jobsProcessed int64) error {
	return q.updateWorkerStatus(ctx, &models.WorkerStatus{
		WorkerID:      workerID,
		Status:        "idle",
		LastPing:      q.now(),
		JobsProcessed: jobsProcessed,
	})
}

func (q *RecomputeQueue) GetActiveWorkers(ctx context.Context) ([]models.WorkerStatus, error) {
	workers, err := q.client.HGetAll(ctx, WorkerStatusHash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get workers: %w", err)
	}

	var active []models.WorkerStatus
	cutoff := q.now().Add(-activeWorkerWindow)
	for id, data := range workers {
		var worker models.WorkerStatus
		if err := json.Unmarshal([]byte(data), &worker); err != nil {
			q.log.WithError(err).WithField("worker_id", id).Warn("failed to unmarshal worker status")
			continue
		}
		if worker.LastPing.After(cutoff) {
			active = append(active, worker)
		}
	}
	return active, nil
}

// CleanupStaleWorkers drops workers that missed heartbeats for too long and
// returns how many were removed.
func (q *RecomputeQueue) CleanupStaleWorkers(ctx context.Context) (int, error) {
	workers, err := q.client.HGetAll(ctx, WorkerStatusHash).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get workers: %w", err)
	}

	removed := 0
	cutoff := q.now().Add(-staleWorkerWindow)
	for id, data := range workers {
		var worker models.WorkerStatus
		if err := json.Unmarshal([]byte(data), &worker); err != nil {
			q.log.WithError(err).WithField("worker_id", id).Warn("failed to unmarshal worker status")
			continue
		}
		if !worker.LastPing.Before(cutoff) {
			continue
		}
		if err := q.client.HDel(ctx, WorkerStatusHash, id).Err(); err != nil {
			q.log.WithError(err).WithField("worker_id", id).Warn("failed to remove stale worker")
			continue
		}
		removed++
		q.log.WithField("worker_id", id).Info("removed stale worker")
	}
	return removed, nil
}

func (q *RecomputeQueue) workerStatus(ctx context.Context, workerID string) (*models.WorkerStatus, error) {
	data, err := q.client.HGet(ctx, WorkerStatusHash, workerID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get worker status: %w", err)
	}

	var status models.WorkerStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worker status: %w", err)
	}
	return &status, nil
}

func (q *RecomputeQueue) updateWorkerStatus(ctx context.Context, status *models.WorkerStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal worker status: %w", err)
	}
	if err := q.client.HSet(ctx, WorkerStatusHash, status.WorkerID, data).Err(); err != nil {
		return fmt.Errorf("failed to update worker status: %w", err)
	}
	return nil
}
