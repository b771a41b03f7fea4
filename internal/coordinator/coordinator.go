package coordinator

import (
	"context"
	"fmt"
	"io"
	"time"

	"skillport/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ContestStore interface {
	ListContestsByStatus(ctx context.Context, status models.ContestStatus) ([]models.Contest, error)
	ListContestsDueForTransition(ctx context.Context, now time.Time) ([]models.Contest, error)
	UpdateContestStatus(ctx context.Context, id uuid.UUID, from, to models.ContestStatus) (bool, error)
}

// Trigger requests a leaderboard recomputation.
type Trigger interface {
	Trigger(ctx context.Context, contestID uuid.UUID, reason models.RecomputeReason) error
}

// ContestCoordinator drives the time based parts of a contest's life: status
// transitions as the wall clock crosses start and end, and the periodic
// leaderboard refresh of active contests.
type ContestCoordinator struct {
	contests        ContestStore
	trigger         Trigger
	log             *logrus.Entry
	refreshInterval time.Duration
	statusInterval  time.Duration
	now             func() time.Time
}

type Option func(*ContestCoordinator)

func WithLogger(log *logrus.Entry) Option {
	return func(c *ContestCoordinator) {
		if log != nil {
			c.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *ContestCoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewContestCoordinator(contests ContestStore, trigger Trigger, refreshInterval, statusInterval time.Duration, opts ...Option) *ContestCoordinator {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	c := &ContestCoordinator{
		contests:        contests,
		trigger:         trigger,
		log:             logrus.NewEntry(silent),
		refreshInterval: refreshInterval,
		statusInterval:  statusInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run syncs statuses once, then keeps both loops going until ctx is done.
// A zero interval disables its loop.
func (c *ContestCoordinator) Run(ctx context.Context) {
	if _, err := c.SyncStatuses(ctx); err != nil {
		c.log.WithError(err).Warn("initial contest status sync failed")
	}

	var statusTick, refreshTick <-chan time.Time
	if c.statusInterval > 0 {
		t := time.NewTicker(c.statusInterval)
		defer t.Stop()
		statusTick = t.C
	}
	if c.refreshInterval > 0 {
		t := time.NewTicker(c.refreshInterval)
		defer t.Stop()
		refreshTick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-statusTick:
			if _, err := c.SyncStatuses(ctx); err != nil {
				c.log.WithError(err).Warn("contest status sync failed")
			}
		case <-refreshTick:
			if _, err := c.RefreshActive(ctx); err != nil {
				c.log.WithError(err).Warn("leaderboard refresh failed")
			}
		}
	}
}

// SyncStatuses moves every contest whose window has been crossed to the status
// the clock dictates. Contests that become active or completed get a
// recomputation, so the final ranking is written when a contest ends.
// It returns the number of contests moved.
func (c *ContestCoordinator) SyncStatuses(ctx context.Context) (int, error) {
	now := c.now()
	due, err := c.contests.ListContestsDueForTransition(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list contests due for transition: %w", err)
	}

	moved := 0
	for i := range due {
		contest := &due[i]
		target := contest.StatusAt(now)
		if target == contest.Status {
			continue
		}

		ok, err := c.contests.UpdateContestStatus(ctx, contest.ID, contest.Status, target)
		if err != nil {
			c.log.WithError(err).WithField("contest_id", contest.ID.String()).Warn("failed to update contest status")
			continue
		}
		if !ok {
			continue
		}
		moved++

		c.log.WithFields(logrus.Fields{
			"contest_id": contest.ID.String(),
			"from":       contest.Status,
			"to":         target,
		}).Info("contest status changed")

		if err := c.trigger.Trigger(ctx, contest.ID, models.RecomputeReasonStatus); err != nil {
			c.log.WithError(err).WithField("contest_id", contest.ID.String()).Warn("failed to trigger recompute after status change")
		}
	}
	return moved, nil
}

// RefreshActive triggers a recomputation of every active contest and returns
// how many were triggered.
func (c *ContestCoordinator) RefreshActive(ctx context.Context) (int, error) {
	active, err := c.contests.ListContestsByStatus(ctx, models.ContestStatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to list active contests: %w", err)
	}

	triggered := 0
	for _, contest := range active {
		if ctx.Err() != nil {
			return triggered, ctx.Err()
		}
		if err := c.trigger.Trigger(ctx, contest.ID, models.RecomputeReasonRefresh); err != nil {
			c.log.WithError(err).WithField("contest_id", contest.ID.String()).Warn("failed to trigger refresh")
			continue
		}
		triggered++
	}
	return triggered, nil
}
