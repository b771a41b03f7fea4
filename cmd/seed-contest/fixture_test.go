package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"skillport/internal/app"
	"skillport/internal/config"
	"skillport/internal/leaderboard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weeklyFixture = `{
  "title": "Weekly 42",
  "starts_at": "2026-01-10T10:00:00Z",
  "ends_at": "2026-01-10T12:00:00Z",
  "problems": [
    {"key": "A", "title": "Warmup", "difficulty": "easy", "points": 90},
    {"key": "B", "title": "Paths", "difficulty": "HARD", "points": 70}
  ],
  "participants": [
    {"user_id": "amy", "name": "Amy", "joined_at": "2026-01-10T09:00:00Z", "completed_at": "2026-01-10T11:00:00Z"},
    {"user_id": "ben", "name": "Ben", "joined_at": "2026-01-10T09:05:00Z", "completed_at": "2026-01-10T11:30:00Z"},
    {"user_id": "cat", "joined_at": "2026-01-10T09:10:00Z"}
  ],
  "submissions": [
    {"user_id": "amy", "problem": "A", "verdict": "ACCEPTED", "language": "go", "submitted_at": "2026-01-10T10:30:00Z"},
    {"user_id": "ben", "problem": "A", "verdict": "REJECTED", "language": "cpp", "submitted_at": "2026-01-10T10:20:00Z"},
    {"user_id": "ben", "problem": "A", "verdict": "ACCEPTED", "language": "cpp", "submitted_at": "2026-01-10T10:40:00Z"},
    {"user_id": "cat", "problem": "B", "verdict": "ACCEPTED", "language": "python", "submitted_at": "2026-01-10T10:50:00Z"}
  ]
}`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeedFixture(t *testing.T) {
	ctx := context.Background()
	fixture, err := loadFixture(writeFixture(t, weeklyFixture))
	require.NoError(t, err)

	stores, err := app.OpenStores(&config.Config{
		Database:    config.DatabaseConfig{Driver: config.StoreDriverMemory},
		Leaderboard: config.LeaderboardConfig{ScoreSource: config.ScoreSourceStored},
	})
	require.NoError(t, err)

	result, err := seed(ctx, stores, fixture, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Problems)
	assert.Equal(t, 3, result.Users)
	assert.Equal(t, 4, result.Submissions)

	snap, err := leaderboard.NewCalculator(stores.Leaderboard).Recompute(ctx, result.ContestID)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 3)

	var order []string
	for _, e := range snap.Entries {
		order = append(order, e.UserID)
	}
	assert.Equal(t, []string{"amy", "ben", "cat"}, order)
	assert.EqualValues(t, 90, snap.Entries[1].Score)
	assert.Equal(t, "cat", snap.Entries[2].Name)
	assert.EqualValues(t, 70, snap.Entries[2].Score)
}

func TestLoadFixtureRejectsInvalid(t *testing.T) {
	_, err := loadFixture(writeFixture(t, `{"title": "x", "starts_at": "2026-01-10T12:00:00Z", "ends_at": "2026-01-10T10:00:00Z", "problems": [{"key": "A", "title": "a"}]}`))
	assert.ErrorContains(t, err, "invalid fixture")

	_, err = loadFixture(writeFixture(t, `{"title": "x", "starts_at": "2026-01-10T10:00:00Z", "ends_at": "2026-01-10T12:00:00Z", "problems": []}`))
	assert.ErrorContains(t, err, "invalid fixture")

	_, err = loadFixture(writeFixture(t, `not json`))
	assert.ErrorContains(t, err, "failed to parse fixture")

	_, err = loadFixture(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read fixture")
}

func TestSeedUnknownProblem(t *testing.T) {
	fixture, err := loadFixture(writeFixture(t, `{
  "title": "x", "starts_at": "2026-01-10T10:00:00Z", "ends_at": "2026-01-10T12:00:00Z",
  "problems": [{"key": "A", "title": "a", "points": 10}],
  "participants": [{"user_id": "amy"}],
  "submissions": [{"user_id": "amy", "problem": "Z", "verdict": "ACCEPTED", "language": "go", "submitted_at": "2026-01-10T10:30:00Z"}]
}`))
	require.NoError(t, err)

	stores, err := app.OpenStores(&config.Config{Database: config.DatabaseConfig{Driver: config.StoreDriverMemory}})
	require.NoError(t, err)

	_, err = seed(context.Background(), stores, fixture, true)
	assert.ErrorContains(t, err, `unknown problem "Z"`)
}
