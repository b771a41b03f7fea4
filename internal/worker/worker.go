package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"skillport/internal/common"
	"skillport/internal/leaderboard"
	"skillport/internal/models"
	"skillport/pkg/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type JobQueue interface {
	Dequeue(ctx context.Context, workerID string, timeout time.Duration) (*models.RecomputeJob, error)
	Len(ctx context.Context) (int64, error)
	RegisterWorker(ctx context.Context, workerID string) error
	HeartbeatWorker(ctx context.Context, workerID string) error
	MarkWorkerIdle(ctx context.Context, workerID string, jobsProcessed int64) error
}

type Recomputer interface {
	Recompute(ctx context.Context, contestID uuid.UUID) (*leaderboard.Snapshot, error)
}

// WorkerService consumes deferred recompute jobs.
type WorkerService struct {
	workerID       string
	queue          JobQueue
	calc           Recomputer
	log            *logrus.Entry
	metrics        *metrics.Manager
	heartbeat      time.Duration
	dequeueTimeout time.Duration
	errorBackoff   time.Duration

	jobsProcessed atomic.Int64
}

type Option func(*WorkerService)

func WithLogger(log *logrus.Entry) Option {
	return func(ws *WorkerService) {
		if log != nil {
			ws.log = log
		}
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(ws *WorkerService) { ws.metrics = m }
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(ws *WorkerService) {
		if d > 0 {
			ws.heartbeat = d
		}
	}
}

func WithDequeueTimeout(d time.Duration) Option {
	return func(ws *WorkerService) {
		if d > 0 {
			ws.dequeueTimeout = d
		}
	}
}

func WithWorkerID(id string) Option {
	return func(ws *WorkerService) {
		if id != "" {
			ws.workerID = id
		}
	}
}

func NewWorkerService(queue JobQueue, calc Recomputer, opts ...Option) *WorkerService {
	workerID := fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	if hostname, err := os.Hostname(); err == nil {
		workerID = fmt.Sprintf("worker-%s-%s", hostname, uuid.New().String()[:8])
	}

	silent := logrus.New()
	silent.SetOutput(io.Discard)

	ws := &WorkerService{
		workerID:       workerID,
		queue:          queue,
		calc:           calc,
		log:            logrus.NewEntry(silent),
		heartbeat:      15 * time.Second,
		dequeueTimeout: 5 * time.Second,
		errorBackoff:   time.Second,
	}
	for _, opt := range opts {
		opt(ws)
	}
	ws.log = ws.log.WithField("worker_id", ws.workerID)
	return ws
}

func (ws *WorkerService) ID() string {
	return ws.workerID
}

func (ws *WorkerService) JobsProcessed() int64 {
	return ws.jobsProcessed.Load()
}

// Start registers the worker and processes jobs until ctx is cancelled.
func (ws *WorkerService) Start(ctx context.Context) error {
	ws.log.Info("starting worker")

	if err := ws.queue.RegisterWorker(ctx, ws.workerID); err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}

	go ws.heartbeatLoop(ctx)

	return ws.processJobs(ctx)
}

func (ws *WorkerService) processJobs(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			ws.log.Info("worker shutting down")
			return nil
		}

		job, err := ws.queue.Dequeue(ctx, ws.workerID, ws.dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			ws.log.WithError(err).Warn("error dequeuing job")
			select {
			case <-ctx.Done():
			case <-time.After(ws.errorBackoff):
			}
			continue
		}

		if job == nil {
			ws.reportDepth(ctx)
			continue
		}

		ws.processJob(ctx, job)

		processed := ws.jobsProcessed.Add(1)
		if err := ws.queue.MarkWorkerIdle(ctx, ws.workerID, processed); err != nil {
			ws.log.WithError(err).Warn("failed to mark worker as idle")
		}
		ws.reportDepth(ctx)
	}
}

func (ws *WorkerService) processJob(ctx context.Context, job *models.RecomputeJob) {
	log := ws.log.WithFields(logrus.Fields{
		"job_id":     job.JobID.String(),
		"contest_id": job.ContestID.String(),
		"reason":     job.Reason,
	})
	ws.metrics.RecordJob(string(job.Reason))

	started := time.Now()
	snap, err := ws.calc.Recompute(ctx, job.ContestID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		log.Info("contest no longer exists, dropping job")
	case err != nil:
		log.WithError(err).Error("recompute job failed")
	default:
		log.WithFields(logrus.Fields{
			"participants": len(snap.Entries),
			"duration":     time.Since(started).String(),
		}).Debug("recompute job done")
	}
}

func (ws *WorkerService) reportDepth(ctx context.Context) {
	if ws.metrics == nil {
		return
	}
	n, err := ws.queue.Len(ctx)
	if err != nil {
		return
	}
	ws.metrics.SetQueueDepth(n)
}

func (ws *WorkerService) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(ws.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.queue.HeartbeatWorker(ctx, ws.workerID); err != nil {
				ws.log.WithError(err).Warn("failed to send heartbeat")
			}
		}
	}
}
