package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"skillport/internal/app"
	"skillport/internal/config"
	"skillport/internal/coordinator"
	"skillport/internal/leaderboard"
	"skillport/internal/services"
	"skillport/pkg/logger"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("Usage: seed-contest <fixture.json>")
		fmt.Println("Example: seed-contest ./data/weekly-42.json")
		os.Exit(1)
	}

	cfg, err := config.Load()
	log := logger.NewWithLevel("skillport-seed", cfg.Logging.Level)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	fixture, err := loadFixture(os.Args[1])
	if err != nil {
		log.WithError(err).Fatal("Failed to load fixture")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stores, err := app.OpenStores(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open stores")
	}
	defer stores.Close()

	result, err := seed(ctx, stores, fixture, cfg.Leaderboard.ScoreSource == config.ScoreSourceStored)
	if err != nil {
		log.WithError(err).Fatal("Failed to seed contest")
	}

	// Bring the contest status in line with the clock, then rank it.
	calc := leaderboard.NewCalculator(stores.Leaderboard, leaderboard.WithLogger(log.Service()))
	coord := coordinator.NewContestCoordinator(stores.Contests, services.NewSyncTrigger(calc), 0, 0)
	if _, err := coord.SyncStatuses(ctx); err != nil {
		log.WithError(err).Warn("Failed to sync contest status")
	}
	snap, err := calc.Recompute(ctx, result.ContestID)
	if err != nil {
		log.WithError(err).Fatal("Failed to rank seeded contest")
	}

	fmt.Printf("Seeded contest %s: %d problems, %d participants, %d submissions, %d ranked\n",
		result.ContestID, result.Problems, result.Users, result.Submissions, len(snap.Entries))
}
