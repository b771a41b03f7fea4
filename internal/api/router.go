package api

import (
	"context"
	"net/http"
	"time"

	"skillport/internal/api/handler"
	"skillport/internal/api/middleware"
	"skillport/internal/common"
	"skillport/internal/services"
	"skillport/pkg/logger"
	"skillport/pkg/metrics"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type Dependencies struct {
	ContestService     *services.ContestService
	SubmissionService  *services.SubmissionService
	LeaderboardService *services.LeaderboardService
	Live               handler.LiveServer
	Logger             *logger.Logger
	Metrics            *metrics.Manager
	// Ping reports storage health for /health. Optional.
	Ping           func(ctx context.Context) error
	RequestTimeout time.Duration
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chiMiddleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ping != nil {
			if err := deps.Ping(r.Context()); err != nil {
				common.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	leaderboardHandler := handler.NewLeaderboardHandler(deps.LeaderboardService, deps.Live)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Group(func(api chi.Router) {
			api.Use(chiMiddleware.Timeout(deps.RequestTimeout))

			handler.NewContestHandler(deps.ContestService).RegisterRoutes(api)
			handler.NewSubmissionHandler(deps.SubmissionService).RegisterRoutes(api)
			leaderboardHandler.RegisterRoutes(api)
		})

		if deps.Live != nil {
			leaderboardHandler.RegisterLiveRoutes(v1)
		}
	})

	return r
}
