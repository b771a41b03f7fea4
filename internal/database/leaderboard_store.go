package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skillport/internal/common"
	"skillport/internal/leaderboard"
	"skillport/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaderboardStore is the postgres implementation of leaderboard.Store. Each
// Atomically call is one transaction that holds the contest row lock, which
// serializes recomputations of a contest across processes.
type LeaderboardStore struct {
	db           *GormDB
	deriveScores bool
}

// NewLeaderboardStore builds the store. With deriveScores the participant score
// is recomputed from accepted submissions (best score per problem) and written
// back; otherwise the stored score is used and never written.
func NewLeaderboardStore(db *GormDB, deriveScores bool) *LeaderboardStore {
	return &LeaderboardStore{db: db, deriveScores: deriveScores}
}

func (s *LeaderboardStore) Atomically(ctx context.Context, contestID uuid.UUID, fn func(tx leaderboard.Tx) error) error {
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		var contest models.Contest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&contest, "id = ?", contestID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("contest %s: %w", contestID, common.ErrNotFound)
			}
			return err
		}

		return fn(&leaderboardTx{
			tx:           tx,
			contestID:    contestID,
			deriveScores: s.deriveScores,
		})
	})
	return classify(err)
}

type leaderboardTx struct {
	tx           *gorm.DB
	contestID    uuid.UUID
	deriveScores bool
}

type standingRow struct {
	ParticipantID    uuid.UUID
	UserID           string
	Name             string
	Score            int64
	JoinedAt         time.Time
	CompletedAt      *time.Time
	ProblemsSolved   int
	LastSubmissionAt *time.Time
}

type derivedScoreRow struct {
	UserID string
	Score  int64
}

func (t *leaderboardTx) Standings(ctx context.Context) ([]leaderboard.Standing, error) {
	var rows []standingRow
	err := t.tx.WithContext(ctx).
		Table("participants AS p").
		Select(`p.id AS participant_id, p.user_id, COALESCE(u.name, p.user_id) AS name,
			p.score, p.joined_at, p.completed_at,
			COUNT(DISTINCT s.problem_id) FILTER (WHERE s.verdict = ?) AS problems_solved,
			MAX(s.submitted_at) AS last_submission_at`, models.VerdictAccepted).
		Joins("LEFT JOIN users u ON u.id = p.user_id").
		Joins("LEFT JOIN submissions s ON s.contest_id = p.contest_id AND s.user_id = p.user_id").
		Where("p.contest_id = ?", t.contestID).
		Group("p.id, u.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var derived map[string]int64
	if t.deriveScores {
		derived, err = t.derivedScores(ctx)
		if err != nil {
			return nil, err
		}
	}

	standings := make([]leaderboard.Standing, len(rows))
	for i, row := range rows {
		score := row.Score
		if t.deriveScores {
			score = derived[row.UserID]
		}
		standings[i] = leaderboard.Standing{
			ParticipantID:    row.ParticipantID,
			UserID:           row.UserID,
			Name:             row.Name,
			Score:            score,
			ProblemsSolved:   row.ProblemsSolved,
			LastSubmissionAt: row.LastSubmissionAt,
			JoinedAt:         row.JoinedAt,
			CompletedAt:      row.CompletedAt,
		}
	}
	return standings, nil
}

func (t *leaderboardTx) derivedScores(ctx context.Context) (map[string]int64, error) {
	var rows []derivedScoreRow
	err := t.tx.WithContext(ctx).Raw(`
		SELECT user_id, SUM(best) AS score FROM (
			SELECT user_id, problem_id, MAX(score) AS best
			FROM submissions
			WHERE contest_id = ? AND verdict = ?
			GROUP BY user_id, problem_id
		) best_per_problem
		GROUP BY user_id`, t.contestID, models.VerdictAccepted).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	scores := make(map[string]int64, len(rows))
	for _, row := range rows {
		scores[row.UserID] = row.Score
	}
	return scores, nil
}

func (t *leaderboardTx) SaveRanks(ctx context.Context, entries []leaderboard.Entry, rankedAt time.Time) error {
	for _, e := range entries {
		updates := map[string]interface{}{
			"rank":               e.Rank,
			"ranked_score":       e.Score,
			"problems_solved":    e.ProblemsSolved,
			"last_submission_at": e.LastSubmissionTime,
			"ranked_at":          rankedAt,
		}
		if t.deriveScores {
			updates["score"] = e.Score
		}

		if err := t.tx.WithContext(ctx).
			Model(&models.Participant{}).
			Where("id = ? AND contest_id = ?", e.ParticipantID, t.contestID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update participant %s: %w", e.ParticipantID, err)
		}
	}
	return nil
}
