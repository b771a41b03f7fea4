package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"skillport/internal/common"
	"skillport/internal/leaderboard"
	"skillport/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *Store
	contest *models.Contest
	problem *models.Problem
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	s := New(opts...)

	contest := &models.Contest{
		Title:    "weekly",
		Status:   models.ContestStatusActive,
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateContest(ctx, contest))

	problem := &models.Problem{ContestID: &contest.ID, Title: "two sum", Points: 100}
	require.NoError(t, s.CreateProblem(ctx, problem))

	return &fixture{store: s, contest: contest, problem: problem}
}

func (f *fixture) join(t *testing.T, userID string, joinedAt time.Time) {
	t.Helper()
	require.NoError(t, f.store.UpsertUser(context.Background(), &models.User{ID: userID, Name: "name-" + userID}))
	require.NoError(t, f.store.RegisterParticipant(context.Background(), &models.Participant{
		ContestID: f.contest.ID,
		UserID:    userID,
		JoinedAt:  joinedAt,
	}))
}

func (f *fixture) accept(t *testing.T, userID string, problemID uuid.UUID, score int64) bool {
	t.Helper()
	first, err := f.store.RecordSubmission(context.Background(), &models.Submission{
		ContestID: &f.contest.ID,
		UserID:    userID,
		ProblemID: problemID,
		Verdict:   models.VerdictAccepted,
		Score:     score,
		Language:  "go",
	}, true)
	require.NoError(t, err)
	return first
}

func TestRegisterParticipant(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		f := setup(t)
		f.join(t, "u1", time.Now())

		err := f.store.RegisterParticipant(ctx, &models.Participant{ContestID: f.contest.ID, UserID: "u1"})
		assert.ErrorIs(t, err, common.ErrConflict)
	})

	t.Run("cap is enforced", func(t *testing.T) {
		f := setup(t)
		limit := 1
		capped := &models.Contest{Title: "tiny", MaxParticipants: &limit, StartsAt: time.Now(), EndsAt: time.Now().Add(time.Hour)}
		require.NoError(t, f.store.CreateContest(ctx, capped))

		require.NoError(t, f.store.RegisterParticipant(ctx, &models.Participant{ContestID: capped.ID, UserID: "a"}))
		err := f.store.RegisterParticipant(ctx, &models.Participant{ContestID: capped.ID, UserID: "b"})
		assert.ErrorIs(t, err, common.ErrConflict)
	})

	t.Run("unknown contest is not found", func(t *testing.T) {
		f := setup(t)
		err := f.store.RegisterParticipant(ctx, &models.Participant{ContestID: uuid.New(), UserID: "a"})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("completed contest refuses registration", func(t *testing.T) {
		f := setup(t)
		ok, err := f.store.UpdateContestStatus(ctx, f.contest.ID, models.ContestStatusActive, models.ContestStatusCompleted)
		require.NoError(t, err)
		require.True(t, ok)

		err = f.store.RegisterParticipant(ctx, &models.Participant{ContestID: f.contest.ID, UserID: "late"})
		assert.ErrorIs(t, err, common.ErrConflict)
	})
}

func TestRecordSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run("unregistered user is rejected", func(t *testing.T) {
		f := setup(t)
		_, err := f.store.RecordSubmission(ctx, &models.Submission{
			ContestID: &f.contest.ID,
			UserID:    "ghost",
			ProblemID: f.problem.ID,
			Verdict:   models.VerdictAccepted,
		}, true)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("only the first acceptance of a problem scores", func(t *testing.T) {
		f := setup(t)
		f.join(t, "u1", time.Now())

		assert.True(t, f.accept(t, "u1", f.problem.ID, 100))
		assert.False(t, f.accept(t, "u1", f.problem.ID, 100))

		p, err := f.store.GetParticipant(ctx, f.contest.ID, "u1")
		require.NoError(t, err)
		assert.EqualValues(t, 100, p.Score)
		assert.Equal(t, "name-u1", p.User.Name)
	})

	t.Run("pending verdict can be finalized once", func(t *testing.T) {
		f := setup(t)
		f.join(t, "u1", time.Now())

		sub := &models.Submission{ContestID: &f.contest.ID, UserID: "u1", ProblemID: f.problem.ID, Verdict: models.VerdictPending}
		_, err := f.store.RecordSubmission(ctx, sub, true)
		require.NoError(t, err)

		judged, first, err := f.store.FinalizeVerdict(ctx, sub.ID, models.VerdictAccepted, 80, true)
		require.NoError(t, err)
		assert.True(t, first)
		assert.Equal(t, models.VerdictAccepted, judged.Verdict)
		require.NotNil(t, judged.JudgedAt)

		_, _, err = f.store.FinalizeVerdict(ctx, sub.ID, models.VerdictRejected, 0, true)
		assert.ErrorIs(t, err, common.ErrConflict)

		p, err := f.store.GetParticipant(ctx, f.contest.ID, "u1")
		require.NoError(t, err)
		assert.EqualValues(t, 80, p.Score)
	})

	t.Run("concurrent submissions for different users keep both scores", func(t *testing.T) {
		f := setup(t)
		for i := 0; i < 10; i++ {
			f.join(t, fmt.Sprintf("u%d", i), time.Now())
		}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				_, err := f.store.RecordSubmission(ctx, &models.Submission{
					ContestID: &f.contest.ID,
					UserID:    user,
					ProblemID: f.problem.ID,
					Verdict:   models.VerdictAccepted,
					Score:     50,
				}, true)
				assert.NoError(t, err)
			}(fmt.Sprintf("u%d", i))
		}
		wg.Wait()

		for i := 0; i < 10; i++ {
			p, err := f.store.GetParticipant(ctx, f.contest.ID, fmt.Sprintf("u%d", i))
			require.NoError(t, err)
			assert.EqualValues(t, 50, p.Score)
		}
	})
}

func TestRecomputeAgainstMemoryStore(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("ranks are persisted and paged", func(t *testing.T) {
		f := setup(t)
		f.join(t, "a", start)
		f.join(t, "b", start.Add(time.Minute))
		f.join(t, "c", start.Add(2*time.Minute))
		f.accept(t, "b", f.problem.ID, 100)

		calc := leaderboard.NewCalculator(f.store)
		snap, err := calc.Recompute(ctx, f.contest.ID)
		require.NoError(t, err)
		require.Len(t, snap.Entries, 3)
		assert.Equal(t, "b", snap.Entries[0].UserID)
		assert.Equal(t, 1, snap.Entries[0].ProblemsSolved)
		assert.NotNil(t, snap.Entries[0].LastSubmissionTime)

		page, err := f.store.LeaderboardPage(ctx, f.contest.ID, 1, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Total)
		require.Len(t, page.Entries, 1)
		assert.Equal(t, 2, page.Entries[0].Rank)
		assert.Equal(t, "a", page.Entries[0].UserID)
		assert.Equal(t, "name-a", page.Entries[0].Name)
		require.NotNil(t, page.ComputedAt)
		assert.True(t, page.ComputedAt.Equal(snap.ComputedAt))
	})

	t.Run("participants stay unranked until the next recompute", func(t *testing.T) {
		f := setup(t)
		f.join(t, "a", start)
		_, err := leaderboard.NewCalculator(f.store).Recompute(ctx, f.contest.ID)
		require.NoError(t, err)

		f.join(t, "b", start.Add(time.Minute))
		page, err := f.store.LeaderboardPage(ctx, f.contest.ID, 0, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 1, page.Total)
	})

	t.Run("a score awarded after the last recompute stays off the page", func(t *testing.T) {
		f := setup(t)
		f.join(t, "a", start)
		f.join(t, "b", start.Add(time.Minute))
		f.accept(t, "a", f.problem.ID, 100)
		_, err := leaderboard.NewCalculator(f.store).Recompute(ctx, f.contest.ID)
		require.NoError(t, err)

		f.accept(t, "b", f.problem.ID, 300)
		p, err := f.store.GetParticipant(ctx, f.contest.ID, "b")
		require.NoError(t, err)
		assert.EqualValues(t, 300, p.Score)

		page, err := f.store.LeaderboardPage(ctx, f.contest.ID, 0, 10)
		require.NoError(t, err)
		require.Len(t, page.Entries, 2)
		assert.Equal(t, "a", page.Entries[0].UserID)
		assert.EqualValues(t, 100, page.Entries[0].Score)
		assert.Equal(t, "b", page.Entries[1].UserID)
		assert.EqualValues(t, 0, page.Entries[1].Score)

		_, err = leaderboard.NewCalculator(f.store).Recompute(ctx, f.contest.ID)
		require.NoError(t, err)
		page, err = f.store.LeaderboardPage(ctx, f.contest.ID, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, "b", page.Entries[0].UserID)
		assert.EqualValues(t, 300, page.Entries[0].Score)
	})

	t.Run("negative offset is rejected", func(t *testing.T) {
		f := setup(t)
		f.join(t, "a", start)
		_, err := leaderboard.NewCalculator(f.store).Recompute(ctx, f.contest.ID)
		require.NoError(t, err)

		_, err = f.store.LeaderboardPage(ctx, f.contest.ID, -20, 20)
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("derived scores sum the best accepted score per problem", func(t *testing.T) {
		f := setup(t, WithDerivedScores())
		second := &models.Problem{ContestID: &f.contest.ID, Title: "graphs", Points: 200}
		require.NoError(t, f.store.CreateProblem(ctx, second))
		f.join(t, "a", start)

		f.accept(t, "a", f.problem.ID, 40)
		f.accept(t, "a", f.problem.ID, 90)
		f.accept(t, "a", second.ID, 200)

		snap, err := leaderboard.NewCalculator(f.store).Recompute(ctx, f.contest.ID)
		require.NoError(t, err)
		require.Len(t, snap.Entries, 1)
		assert.EqualValues(t, 290, snap.Entries[0].Score)
		assert.Equal(t, 2, snap.Entries[0].ProblemsSolved)

		p, err := f.store.GetParticipant(ctx, f.contest.ID, "a")
		require.NoError(t, err)
		assert.EqualValues(t, 290, p.Score)
	})

	t.Run("failed transaction persists nothing", func(t *testing.T) {
		f := setup(t)
		f.join(t, "a", start)

		err := f.store.Atomically(ctx, f.contest.ID, func(tx leaderboard.Tx) error {
			standings, err := tx.Standings(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.SaveRanks(ctx, leaderboard.Rank(standings), time.Now()))
			return common.ErrConflict
		})
		require.ErrorIs(t, err, common.ErrConflict)

		page, err := f.store.LeaderboardPage(ctx, f.contest.ID, 0, 10)
		require.NoError(t, err)
		assert.Zero(t, page.Total)
	})

	t.Run("missing contest", func(t *testing.T) {
		f := setup(t)
		_, err := leaderboard.NewCalculator(f.store).Recompute(ctx, uuid.New())
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestDeleteContestCascades(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.join(t, "a", time.Now())
	f.accept(t, "a", f.problem.ID, 100)

	require.NoError(t, f.store.DeleteContest(ctx, f.contest.ID))

	_, err := f.store.GetContest(ctx, f.contest.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.store.GetProblemByID(ctx, f.problem.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	subs, err := f.store.ListSubmissions(ctx, &f.contest.ID, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, subs)

	assert.ErrorIs(t, f.store.DeleteContest(ctx, f.contest.ID), common.ErrNotFound)
}

func TestContestTransitions(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	due := &models.Contest{Title: "starting", StartsAt: now.Add(-time.Minute), EndsAt: now.Add(time.Hour)}
	later := &models.Contest{Title: "later", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)}
	require.NoError(t, s.CreateContest(ctx, due))
	require.NoError(t, s.CreateContest(ctx, later))

	contests, err := s.ListContestsDueForTransition(ctx, now)
	require.NoError(t, err)
	require.Len(t, contests, 1)
	assert.Equal(t, due.ID, contests[0].ID)

	moved, err := s.UpdateContestStatus(ctx, due.ID, models.ContestStatusUpcoming, models.ContestStatusActive)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = s.UpdateContestStatus(ctx, due.ID, models.ContestStatusUpcoming, models.ContestStatusActive)
	require.NoError(t, err)
	assert.False(t, moved)
}
