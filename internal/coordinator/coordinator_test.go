package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"skillport/internal/memstore"
	"skillport/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTrigger struct {
	mu    sync.Mutex
	calls map[uuid.UUID][]models.RecomputeReason
}

func (r *recordingTrigger) Trigger(_ context.Context, id uuid.UUID, reason models.RecomputeReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[uuid.UUID][]models.RecomputeReason)
	}
	r.calls[id] = append(r.calls[id], reason)
	return nil
}

func TestSyncStatuses(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memstore.New()

	starting := &models.Contest{Title: "starting", StartsAt: now.Add(-time.Minute), EndsAt: now.Add(time.Hour)}
	ending := &models.Contest{Title: "ending", Status: models.ContestStatusActive, StartsAt: now.Add(-2 * time.Hour), EndsAt: now.Add(-time.Second)}
	future := &models.Contest{Title: "future", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)}
	cancelled := &models.Contest{Title: "cancelled", Status: models.ContestStatusCancelled, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(-time.Minute)}
	for _, c := range []*models.Contest{starting, ending, future, cancelled} {
		require.NoError(t, store.CreateContest(ctx, c))
	}

	trigger := &recordingTrigger{}
	coord := NewContestCoordinator(store, trigger, time.Minute, time.Minute, WithClock(func() time.Time { return now }))

	moved, err := coord.SyncStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	got, err := store.GetContest(ctx, starting.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusActive, got.Status)

	got, err = store.GetContest(ctx, ending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusCompleted, got.Status)

	got, err = store.GetContest(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusUpcoming, got.Status)

	got, err = store.GetContest(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusCancelled, got.Status)

	assert.Equal(t, []models.RecomputeReason{models.RecomputeReasonStatus}, trigger.calls[ending.ID])
	assert.Len(t, trigger.calls, 2)

	moved, err = coord.SyncStatuses(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestRefreshActive(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := memstore.New()

	active := &models.Contest{Title: "active", Status: models.ContestStatusActive, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)}
	upcoming := &models.Contest{Title: "upcoming", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)}
	require.NoError(t, store.CreateContest(ctx, active))
	require.NoError(t, store.CreateContest(ctx, upcoming))

	trigger := &recordingTrigger{}
	n, err := NewContestCoordinator(store, trigger, time.Minute, time.Minute).RefreshActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []models.RecomputeReason{models.RecomputeReasonRefresh}, trigger.calls[active.ID])
}

func TestRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	coord := NewContestCoordinator(memstore.New(), &recordingTrigger{}, 10*time.Millisecond, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("coordinator did not stop")
	}
}
