package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"skillport/internal/common"
	"skillport/pkg/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store gives the calculator atomic access to one contest's participant set.
// Atomically must fail with common.ErrNotFound when the contest does not exist
// and must not persist anything written through tx when fn returns an error.
type Store interface {
	Atomically(ctx context.Context, contestID uuid.UUID, fn func(tx Tx) error) error
}

// Tx is the view of a single contest inside Store.Atomically.
type Tx interface {
	Standings(ctx context.Context) ([]Standing, error)
	SaveRanks(ctx context.Context, entries []Entry, rankedAt time.Time) error
}

// Publisher fans a committed snapshot out to viewers. Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

type Calculator struct {
	store     Store
	publisher Publisher
	locks     *contestLocks
	log       *logrus.Entry
	metrics   *metrics.Manager
	now       func() time.Time
}

type Option func(*Calculator)

func WithPublisher(p Publisher) Option {
	return func(c *Calculator) { c.publisher = p }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Calculator) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(c *Calculator) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCalculator(store Store, opts ...Option) *Calculator {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	c := &Calculator{
		store: store,
		locks: newContestLocks(),
		log:   logrus.NewEntry(silent),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recompute re-reads a contest's participants and submissions, ranks them and
// persists the ranks in one transaction. Recomputations of the same contest are
// serialized. A conflict reported by the store is retried once; transient store
// failures are returned as is. The snapshot is published only after commit and
// publish failures never fail the call.
func (c *Calculator) Recompute(ctx context.Context, contestID uuid.UUID) (*Snapshot, error) {
	started := c.now()
	log := c.log.WithField("contest_id", contestID.String())

	unlock := c.locks.lock(contestID)
	snap, err := c.recomputeOnce(ctx, contestID)
	if err != nil && common.IsConflict(err) && !errors.Is(err, common.ErrNotFound) {
		log.WithError(err).Warn("leaderboard write conflict, retrying once")
		snap, err = c.recomputeOnce(ctx, contestID)
	}
	unlock()

	if err != nil {
		outcome := metrics.OutcomeError
		if common.IsConflict(err) {
			outcome = metrics.OutcomeConflict
			if !errors.Is(err, common.ErrConflict) {
				err = fmt.Errorf("%w: %v", common.ErrConflict, err)
			}
		}
		c.metrics.RecordRecompute(outcome, 0, 0)
		return nil, fmt.Errorf("recompute leaderboard for contest %s: %w", contestID, err)
	}

	c.metrics.RecordRecompute(metrics.OutcomeOK, c.now().Sub(started), len(snap.Entries))
	log.WithField("participants", len(snap.Entries)).Debug("leaderboard recomputed")

	c.publish(ctx, snap, log)
	return snap, nil
}

func (c *Calculator) recomputeOnce(ctx context.Context, contestID uuid.UUID) (*Snapshot, error) {
	var snap *Snapshot
	err := c.store.Atomically(ctx, contestID, func(tx Tx) error {
		standings, err := tx.Standings(ctx)
		if err != nil {
			return fmt.Errorf("load standings: %w", err)
		}

		entries := Rank(standings)
		computedAt := c.now().UTC()
		if err := tx.SaveRanks(ctx, entries, computedAt); err != nil {
			return fmt.Errorf("save ranks: %w", err)
		}

		snap = &Snapshot{
			ContestID:  contestID,
			Entries:    entries,
			ComputedAt: computedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (c *Calculator) publish(ctx context.Context, snap *Snapshot, log *logrus.Entry) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, snap); err != nil {
		log.WithError(err).Warn("failed to broadcast leaderboard snapshot")
	}
}

// contestLocks hands out one mutex per contest and forgets it once no caller
// holds or waits on it.
type contestLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*contestLock
}

type contestLock struct {
	mu   sync.Mutex
	refs int
}

func newContestLocks() *contestLocks {
	return &contestLocks{locks: make(map[uuid.UUID]*contestLock)}
}

func (l *contestLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	cl, ok := l.locks[id]
	if !ok {
		cl = &contestLock{}
		l.locks[id] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *contestLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
