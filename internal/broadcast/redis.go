package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"skillport/internal/leaderboard"
	"skillport/pkg/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	LiveChannelPrefix = "leaderboard:"
	latestKeyPrefix   = "leaderboard:latest:"

	latestTTL = 24 * time.Hour
)

// storeIfNewer keeps the latest snapshot per contest. KEYS[1] is the hash,
// ARGV is computed_at in microseconds, the payload and the ttl in seconds.
// Returns 1 when the snapshot was stored, 0 when a newer one is already there.
var storeIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'computed_at')
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'computed_at', ARGV[1], 'payload', ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`)

func LiveChannel(contestID uuid.UUID) string {
	return LiveChannelPrefix + contestID.String()
}

func latestKey(contestID uuid.UUID) string {
	return latestKeyPrefix + contestID.String()
}

// RedisPublisher fans snapshots out to every server instance and keeps the
// latest one per contest for late joiners.
type RedisPublisher struct {
	client  *redis.Client
	topN    int
	metrics *metrics.Manager
}

func NewRedisPublisher(client *redis.Client, topN int, m *metrics.Manager) *RedisPublisher {
	return &RedisPublisher{client: client, topN: topN, metrics: m}
}

// Publish stores the snapshot as the contest's latest and publishes it. A
// snapshot older than the stored one is dropped without error.
func (p *RedisPublisher) Publish(ctx context.Context, snap *leaderboard.Snapshot) error {
	trimmed := *snap
	if p.topN > 0 && len(trimmed.Entries) > p.topN {
		trimmed.Entries = trimmed.Entries[:p.topN]
	}

	data, err := json.Marshal(&trimmed)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard snapshot: %w", err)
	}

	stored, err := storeIfNewer.Run(ctx, p.client,
		[]string{latestKey(snap.ContestID)},
		snap.ComputedAt.UnixMicro(), data, int(latestTTL.Seconds()),
	).Int()
	if err != nil {
		p.metrics.RecordBroadcast("redis", metrics.OutcomeError)
		return fmt.Errorf("failed to store latest snapshot: %w", err)
	}
	if stored == 0 {
		return nil
	}

	if err := p.client.Publish(ctx, LiveChannel(snap.ContestID), data).Err(); err != nil {
		p.metrics.RecordBroadcast("redis", metrics.OutcomeError)
		return fmt.Errorf("failed to publish leaderboard update: %w", err)
	}
	p.metrics.RecordBroadcast("redis", metrics.OutcomeOK)
	return nil
}

// Latest returns the stored latest snapshot of a contest, or nil when there is none.
func (p *RedisPublisher) Latest(ctx context.Context, contestID uuid.UUID) (*leaderboard.Snapshot, error) {
	data, err := p.client.HGet(ctx, latestKey(contestID), "payload").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read latest snapshot: %w", err)
	}

	var snap leaderboard.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latest snapshot: %w", err)
	}
	return &snap, nil
}

// Subscriber feeds snapshots published by any instance into the local hub.
type Subscriber struct {
	client *redis.Client
	hub    *Hub
	log    *logrus.Entry
}

func NewSubscriber(client *redis.Client, hub *Hub, log *logrus.Entry) *Subscriber {
	if log == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		log = logrus.NewEntry(silent)
	}
	return &Subscriber{client: client, hub: hub, log: log}
}

// Run subscribes to every contest's live channel and blocks until ctx is done.
// ready, when not nil, is closed once the subscription is confirmed.
func (s *Subscriber) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := s.client.PSubscribe(ctx, LiveChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to leaderboard updates: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(msg)
		}
	}
}

func (s *Subscriber) handle(msg *redis.Message) {
	var snap leaderboard.Snapshot
	if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
		s.log.WithError(err).WithField("channel", msg.Channel).Warn("failed to unmarshal leaderboard update")
		return
	}

	if snap.ContestID == uuid.Nil {
		id, err := uuid.Parse(strings.TrimPrefix(msg.Channel, LiveChannelPrefix))
		if err != nil {
			s.log.WithField("channel", msg.Channel).Warn("leaderboard update without contest id")
			return
		}
		snap.ContestID = id
	}

	if s.hub.Deliver(&snap) {
		s.log.WithField("contest_id", snap.ContestID.String()).
			WithField("computed_at", strconv.FormatInt(snap.ComputedAt.UnixMicro(), 10)).
			Debug("delivered leaderboard update")
	}
}

// Fanout publishes to several publishers, attempting all of them.
type Fanout []leaderboard.Publisher

func (f Fanout) Publish(ctx context.Context, snap *leaderboard.Snapshot) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
