package app

import (
	"context"
	"testing"
	"time"

	"skillport/internal/config"
	"skillport/internal/leaderboard"
	"skillport/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(source config.ScoreSource) *config.Config {
	return &config.Config{
		Database:    config.DatabaseConfig{Driver: config.StoreDriverMemory},
		Leaderboard: config.LeaderboardConfig{ScoreSource: source},
	}
}

func TestOpenMemoryStoresDeriveScores(t *testing.T) {
	ctx := context.Background()
	stores, err := OpenStores(memoryConfig(config.ScoreSourceSubmissions))
	require.NoError(t, err)
	defer stores.Close()
	assert.Nil(t, stores.Ping)

	contest := &models.Contest{Title: "c", Status: models.ContestStatusActive, StartsAt: time.Now().Add(-time.Hour), EndsAt: time.Now().Add(time.Hour)}
	require.NoError(t, stores.Contests.CreateContest(ctx, contest))
	problem := &models.Problem{ContestID: &contest.ID, Title: "p", Points: 100}
	require.NoError(t, stores.Problems.CreateProblem(ctx, problem))
	require.NoError(t, stores.Users.EnsureUser(ctx, "u1"))
	require.NoError(t, stores.Participants.RegisterParticipant(ctx, &models.Participant{ContestID: contest.ID, UserID: "u1"}))

	// Not awarded on write; the derived mode sums it at recompute time.
	_, err = stores.Submissions.RecordSubmission(ctx, &models.Submission{
		ContestID: &contest.ID, UserID: "u1", ProblemID: problem.ID,
		Verdict: models.VerdictAccepted, Score: 75, Language: "go",
	}, false)
	require.NoError(t, err)

	snap, err := leaderboard.NewCalculator(stores.Leaderboard).Recompute(ctx, contest.ID)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.EqualValues(t, 75, snap.Entries[0].Score)
}

func TestOpenStoresUnknownDriver(t *testing.T) {
	cfg := memoryConfig(config.ScoreSourceStored)
	cfg.Database.Driver = "sqlite"
	_, err := OpenStores(cfg)
	assert.ErrorContains(t, err, "sqlite")
}

func TestOpenRedis(t *testing.T) {
	client, err := OpenRedis(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = OpenRedis(context.Background(), config.RedisConfig{Enabled: true, Addr: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, client)
	_ = client.Close()

	addr := mr.Addr()
	mr.Close()
	_, err = OpenRedis(context.Background(), config.RedisConfig{Enabled: true, Addr: addr})
	assert.Error(t, err)
}
