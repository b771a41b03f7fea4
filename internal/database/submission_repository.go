package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skillport/internal/common"
	"skillport/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepository struct {
	db *GormDB
}

func NewSubmissionRepository(db *GormDB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// RecordSubmission appends a submission. For contest submissions the user must
// be registered; the participant row is locked so two acceptances of the same
// problem cannot both count as the first one. When awardScore is set the first
// acceptance adds the submission's score to the participant atomically.
func (r *SubmissionRepository) RecordSubmission(ctx context.Context, submission *models.Submission, awardScore bool) (bool, error) {
	var firstAccept bool

	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		var participant *models.Participant
		if submission.ContestID != nil {
			p, err := lockParticipant(tx, *submission.ContestID, submission.UserID)
			if err != nil {
				return err
			}
			participant = p

			if submission.Verdict == models.VerdictAccepted {
				first, err := isFirstAcceptance(tx, submission, uuid.Nil)
				if err != nil {
					return err
				}
				firstAccept = first
			}
		}

		if submission.ID == uuid.Nil {
			submission.ID = uuid.New()
		}
		if submission.SubmittedAt.IsZero() {
			submission.SubmittedAt = time.Now()
		}
		if err := tx.Create(submission).Error; err != nil {
			return err
		}

		if firstAccept && awardScore && submission.Score > 0 {
			return addScore(tx, participant.ID, submission.Score)
		}
		return nil
	})
	if err != nil {
		return false, classify(err)
	}

	return firstAccept, nil
}

// FinalizeVerdict settles a pending submission. Final verdicts are immutable and
// a second call fails with ErrConflict.
func (r *SubmissionRepository) FinalizeVerdict(
	ctx context.Context,
	id uuid.UUID,
	verdict models.Verdict,
	score int64,
	awardScore bool,
) (*models.Submission, bool, error) {
	var (
		submission  models.Submission
		firstAccept bool
	)

	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&submission, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("submission %s: %w", id, common.ErrNotFound)
			}
			return err
		}
		if submission.Verdict != models.VerdictPending {
			return fmt.Errorf("submission %s already judged %s: %w", id, submission.Verdict, common.ErrConflict)
		}

		var participant *models.Participant
		if submission.ContestID != nil {
			p, err := lockParticipant(tx, *submission.ContestID, submission.UserID)
			if err != nil {
				return err
			}
			participant = p
		}

		judgedAt := time.Now()
		submission.Verdict = verdict
		submission.Score = score
		submission.JudgedAt = &judgedAt

		if participant != nil && verdict == models.VerdictAccepted {
			first, err := isFirstAcceptance(tx, &submission, submission.ID)
			if err != nil {
				return err
			}
			firstAccept = first
		}

		if err := tx.Model(&models.Submission{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"verdict":   verdict,
				"score":     score,
				"judged_at": judgedAt,
			}).Error; err != nil {
			return err
		}

		if firstAccept && awardScore && score > 0 {
			return addScore(tx, participant.ID, score)
		}
		return nil
	})
	if err != nil {
		return nil, false, classify(err)
	}

	return &submission, firstAccept, nil
}

func (r *SubmissionRepository) GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).First(&submission, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("submission %s: %w", id, common.ErrNotFound)
		}
		return nil, classify(err)
	}

	return &submission, nil
}

func (r *SubmissionRepository) ListSubmissions(
	ctx context.Context,
	contestID *uuid.UUID,
	userID string,
	limit, offset int,
) ([]models.Submission, error) {
	var submissions []models.Submission
	query := r.db.WithContext(ctx).Model(&models.Submission{}).
		Order("submitted_at DESC").
		Limit(limit).
		Offset(offset)

	if contestID != nil {
		query = query.Where("contest_id = ?", *contestID)
	}
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	if err := query.Find(&submissions).Error; err != nil {
		return nil, classify(err)
	}

	return submissions, nil
}

func lockParticipant(tx *gorm.DB, contestID uuid.UUID, userID string) (*models.Participant, error) {
	var participant models.Participant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&participant, "contest_id = ? AND user_id = ?", contestID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s is not registered for contest %s: %w", userID, contestID, common.ErrNotFound)
		}
		return nil, err
	}
	return &participant, nil
}

func isFirstAcceptance(tx *gorm.DB, submission *models.Submission, exclude uuid.UUID) (bool, error) {
	var prior int64
	query := tx.Model(&models.Submission{}).
		Where("contest_id = ? AND user_id = ? AND problem_id = ? AND verdict = ?",
			*submission.ContestID, submission.UserID, submission.ProblemID, models.VerdictAccepted)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	if err := query.Count(&prior).Error; err != nil {
		return false, err
	}
	return prior == 0, nil
}

func addScore(tx *gorm.DB, participantID uuid.UUID, delta int64) error {
	return tx.Model(&models.Participant{}).
		Where("id = ?", participantID).
		UpdateColumn("score", gorm.Expr("score + ?", delta)).Error
}
