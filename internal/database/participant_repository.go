package database

import (
	"context"
	"database/sql"
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

type ParticipantRepository struct {
	db *GormDB
}

func NewParticipantRepository(db *GormDB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// RegisterParticipant joins a user to a contest. It fails with ErrConflict when
// the user is already registered, the contest is full or no longer open. When
// participant.User carries an id the user is saved in the same transaction,
// after the contest checks.
func (r *ParticipantRepository) RegisterParticipant(ctx context.Context, participant *models.Participant) error {
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		var contest models.Contest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&contest, "id = ?", participant.ContestID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("contest %s: %w", participant.ContestID, common.ErrNotFound)
			}
			return err
		}

		if contest.Status == models.ContestStatusCompleted || contest.Status == models.ContestStatusCancelled {
			return fmt.Errorf("contest %s is %s: %w", contest.ID, contest.Status, common.ErrConflict)
		}

		if contest.MaxParticipants != nil {
			var count int64
			if err := tx.Model(&models.Participant{}).
				Where("contest_id = ?", contest.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(*contest.MaxParticipants) {
				return fmt.Errorf("contest %s is full: %w", contest.ID, common.ErrConflict)
			}
		}

		if participant.User.ID != "" {
			if err := saveUser(tx, &participant.User); err != nil {
				return err
			}
		}

		if participant.ID == uuid.Nil {
			participant.ID = uuid.New()
		}
		if participant.JoinedAt.IsZero() {
			participant.JoinedAt = time.Now()
		}
		return tx.Omit("User").Create(participant).Error
	})
	return classify(err)
}

func (r *ParticipantRepository) GetParticipant(ctx context.Context, contestID uuid.UUID, userID string) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.WithContext(ctx).
		Preload("User").
		First(&participant, "contest_id = ? AND user_id = ?", contestID, userID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("participant %s in contest %s: %w", userID, contestID, common.ErrNotFound)
		}
		return nil, classify(err)
	}

	return &participant, nil
}

// MarkCompleted records the first completion time; later calls keep it.
func (r *ParticipantRepository) MarkCompleted(ctx context.Context, contestID uuid.UUID, userID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("contest_id = ? AND user_id = ?", contestID, userID).
		Update("completed_at", gorm.Expr("COALESCE(completed_at, ?)", at))
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("participant %s in contest %s: %w", userID, contestID, common.ErrNotFound)
	}
	return nil
}

func (r *ParticipantRepository) CountParticipantsByContest(ctx context.Context, contestID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("contest_id = ?", contestID).
		Count(&count).Error

	return count, classify(err)
}

type rankedRow struct {
	ParticipantID    uuid.UUID
	UserID           string
	Name             string
	Score            int64
	Rank             int
	ProblemsSolved   int
	LastSubmissionAt *time.Time
	RankedAt         *time.Time
}

// LeaderboardPage reads the last committed ranking. Count and rows come from
// one repeatable-read snapshot so a concurrent recompute is never seen half applied.
func (r *ParticipantRepository) LeaderboardPage(ctx context.Context, contestID uuid.UUID, offset, limit int) (*leaderboard.Page, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("offset %d limit %d: %w", offset, limit, common.ErrValidation)
	}

	page := &leaderboard.Page{Entries: []leaderboard.Entry{}}

	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&models.Participant{}).
			Where("contest_id = ? AND rank IS NOT NULL", contestID).
			Count(&page.Total).Error; err != nil {
			return err
		}

		var rows []rankedRow
		err := tx.Table("participants AS p").
			Select(`p.id AS participant_id, p.user_id, COALESCE(u.name, p.user_id) AS name,
				p.ranked_score AS score, p.rank, p.problems_solved, p.last_submission_at, p.ranked_at`).
			Joins("LEFT JOIN users u ON u.id = p.user_id").
			Where("p.contest_id = ? AND p.rank IS NOT NULL", contestID).
			Order("p.rank ASC").
			Offset(offset).
			Limit(limit).
			Scan(&rows).Error
		if err != nil {
			return err
		}

		for _, row := range rows {
			page.Entries = append(page.Entries, leaderboard.Entry{
				Rank:               row.Rank,
				ParticipantID:      row.ParticipantID,
				UserID:             row.UserID,
				Name:               row.Name,
				Score:              row.Score,
				ProblemsSolved:     row.ProblemsSolved,
				LastSubmissionTime: row.LastSubmissionAt,
			})
			if row.RankedAt != nil && (page.ComputedAt == nil || row.RankedAt.After(*page.ComputedAt)) {
				page.ComputedAt = row.RankedAt
			}
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, classify(err)
	}

	return page, nil
}
