package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"skillport/internal/api"
	"skillport/internal/app"
	"skillport/internal/broadcast"
	"skillport/internal/config"
	"skillport/internal/coordinator"
	"skillport/internal/leaderboard"
	"skillport/internal/queue"
	"skillport/internal/services"
	"skillport/pkg/logger"
	"skillport/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	log := logger.NewWithLevel("skillport-server", cfg.Logging.Level)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

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
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.NewManager()

	hubOpts := []broadcast.HubOption{
		broadcast.WithTopN(cfg.Leaderboard.BroadcastTopN),
		broadcast.WithHubLogger(log.Service().WithField("component", "hub")),
		broadcast.WithHubMetrics(m),
	}
	publishers := broadcast.Fanout{}
	var redisPublisher *broadcast.RedisPublisher
	if redisClient != nil {
		redisPublisher = broadcast.NewRedisPublisher(redisClient, cfg.Leaderboard.BroadcastTopN, m)
		hubOpts = append(hubOpts, broadcast.WithLatestLoader(redisPublisher))
	}
	hub := broadcast.NewHub(hubOpts...)
	defer hub.Close()

	publishers = append(publishers, hub)
	if redisPublisher != nil {
		publishers = append(publishers, redisPublisher)

		subscriber := broadcast.NewSubscriber(redisClient, hub, log.Service().WithField("component", "subscriber"))
		go func() {
			if err := subscriber.Run(ctx, nil); err != nil {
				log.WithError(err).Error("Leaderboard subscriber stopped")
			}
		}()
	}

	calc := leaderboard.NewCalculator(stores.Leaderboard,
		leaderboard.WithPublisher(publishers),
		leaderboard.WithLogger(log.Service().WithField("component", "calculator")),
		leaderboard.WithMetrics(m),
	)

	var trigger services.Trigger
	switch cfg.Leaderboard.TriggerMode {
	case config.TriggerModeQueue:
		trigger = services.NewQueueTrigger(queue.NewRecomputeQueue(redisClient, log.Service()), log.Service())
	default:
		trigger = services.NewSyncTrigger(calc)

		// In queue mode the worker owns the periodic loops.
		coord := coordinator.NewContestCoordinator(stores.Contests, trigger,
			cfg.Leaderboard.RefreshInterval, cfg.Leaderboard.StatusInterval,
			coordinator.WithLogger(log.Service().WithField("component", "coordinator")),
		)
		go coord.Run(ctx)
	}

	router := api.NewRouter(api.Dependencies{
		ContestService: services.NewContestService(stores.Contests, stores.Participants,
			calc, trigger, log.Service().WithField("component", "contests")),
		SubmissionService: services.NewSubmissionService(stores.Contests, stores.Problems, stores.Submissions,
			trigger, cfg.Leaderboard.ScoreSource == config.ScoreSourceStored, log.Service().WithField("component", "submissions")),
		LeaderboardService: services.NewLeaderboardService(stores.Contests, stores.Participants,
			cfg.Leaderboard.DefaultPageSize, cfg.Leaderboard.MaxPageSize),
		Live:    hub,
		Logger:  log,
		Metrics: m,
		Ping:    stores.Ping,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Service().WithField("port", cfg.Server.HTTPPort).
			WithField("store", cfg.Database.Driver).
			WithField("trigger", cfg.Leaderboard.TriggerMode).
			WithField("score_source", cfg.Leaderboard.ScoreSource).
			Info("SkillPort leaderboard server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Received shutdown signal, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Graceful shutdown failed")
		os.Exit(1)
	}
	log.Info("Server stopped")
}
