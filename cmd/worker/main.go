package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"skillport/internal/app"
	"skillport/internal/broadcast"
	"skillport/internal/config"
	"skillport/internal/coordinator"
	"skillport/internal/leaderboard"
	"skillport/internal/queue"
	"skillport/internal/services"
	"skillport/internal/worker"
	"skillport/pkg/logger"
	"skillport/pkg/metrics"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	log := logger.NewWithLevel("skillport-worker", cfg.Logging.Level)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if !cfg.Redis.Enabled {
		log.Fatal("The recompute worker needs Redis; set REDIS_ENABLED=true")
	}

	log.Info("Starting leaderboard recompute worker...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open stores")
	}
	defer stores.Close()

	redisClient, err := app.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	m := metrics.NewManager()
	recomputeQueue := queue.NewRecomputeQueue(redisClient, log.Service().WithField("component", "queue"))

	calc := leaderboard.NewCalculator(stores.Leaderboard,
		leaderboard.WithPublisher(broadcast.NewRedisPublisher(redisClient, cfg.Leaderboard.BroadcastTopN, m)),
		leaderboard.WithLogger(log.Service().WithField("component", "calculator")),
		leaderboard.WithMetrics(m),
	)

	workerService := worker.NewWorkerService(recomputeQueue, calc,
		worker.WithLogger(log.Service()),
		worker.WithMetrics(m),
		worker.WithHeartbeatInterval(cfg.Worker.HeartbeatInterval),
		worker.WithDequeueTimeout(cfg.Worker.DequeueTimeout),
	)

	// Runs on every worker: status updates are compare-and-set and queued
	// refreshes are deduplicated.
	coord := coordinator.NewContestCoordinator(stores.Contests,
		services.NewQueueTrigger(recomputeQueue, log.Service()),
		cfg.Leaderboard.RefreshInterval, cfg.Leaderboard.StatusInterval,
		coordinator.WithLogger(log.Service().WithField("component", "coordinator")),
	)
	go coord.Run(ctx)
	go cleanupStaleWorkers(ctx, recomputeQueue, log.Service())

	done := make(chan error, 1)
	go func() { done <- workerService.Start(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal, stopping worker...")
		select {
		case <-done:
		case <-time.After(cfg.Server.ShutdownTimeout):
			log.Warn("Worker did not stop in time")
		}
	case err := <-done:
		if err != nil {
			log.WithError(err).Error("Worker failed")
		}
	}

	log.WithField("jobs_processed", workerService.JobsProcessed()).Info("Worker stopped")
}

func cleanupStaleWorkers(ctx context.Context, q *queue.RecomputeQueue, log *logrus.Entry) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := q.CleanupStaleWorkers(ctx)
			if err != nil {
				log.WithError(err).Warn("Failed to clean up stale workers")
				continue
			}
			if n > 0 {
				log.WithField("removed", n).Info("Removed stale workers")
			}
		}
	}
}
