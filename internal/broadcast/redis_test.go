package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"skillport/internal/leaderboard"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisPublisherLatest(t *testing.T) {
	ctx := context.Background()
	client := newRedis(t)
	pub := NewRedisPublisher(client, 2, nil)
	contestID := uuid.New()

	snap, err := pub.Latest(ctx, contestID)
	require.NoError(t, err)
	assert.Nil(t, snap)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, pub.Publish(ctx, snapshot(contestID, now, "a", "b", "c")))
	require.NoError(t, pub.Publish(ctx, snapshot(contestID, now.Add(-time.Minute), "stale")))

	snap, err = pub.Latest(ctx, contestID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, contestID, snap.ContestID)
	assert.True(t, snap.ComputedAt.Equal(now))
	require.Len(t, snap.Entries, 2, "trimmed to top n")
	assert.Equal(t, "a", snap.Entries[0].UserID)
}

func TestSubscriberDeliversIntoHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newRedis(t)
	hub := NewHub()
	sub := NewSubscriber(client, hub, nil)

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not confirmed")
	}

	contestID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, NewRedisPublisher(client, 10, nil).Publish(ctx, snapshot(contestID, now, "a")))

	require.Eventually(t, func() bool {
		latest := hub.Latest(contestID)
		return latest != nil && latest.ComputedAt.Equal(now)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, *leaderboard.Snapshot) error { return p.err }

func TestFanoutAttemptsEveryPublisher(t *testing.T) {
	hub := NewHub()
	contestID := uuid.New()
	boom := errors.New("redis down")

	err := Fanout{failingPublisher{err: boom}, hub}.Publish(context.Background(), snapshot(contestID, time.Now(), "a"))
	assert.ErrorIs(t, err, boom)
	assert.NotNil(t, hub.Latest(contestID), "hub still received the snapshot")

	assert.NoError(t, Fanout{hub, nil}.Publish(context.Background(), snapshot(contestID, time.Now().Add(time.Second), "b")))
}
