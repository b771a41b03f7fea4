package database

import (
	"context"
	"fmt"
	"time"

	"skillport/internal/common"
	"skillport/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContestRepository struct {
	db *GormDB
}

func NewContestRepository(db *GormDB) *ContestRepository {
	return &ContestRepository{db: db}
}

func (r *ContestRepository) CreateContest(ctx context.Context, contest *models.Contest) error {
	if contest.Status == "" {
		contest.Status = models.ContestStatusUpcoming
	}
	return classify(r.db.WithContext(ctx).Create(contest).Error)
}

func (r *ContestRepository) GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	var contest models.Contest
	err := r.db.WithContext(ctx).First(&contest, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("contest %s: %w", id, common.ErrNotFound)
		}
		return nil, classify(err)
	}

	return &contest, nil
}

func (r *ContestRepository) ListContestsByStatus(ctx context.Context, status models.ContestStatus) ([]models.Contest, error) {
	var contests []models.Contest
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("starts_at ASC").
		Find(&contests).Error
	if err != nil {
		return nil, classify(err)
	}

	return contests, nil
}

// ListContestsDueForTransition returns upcoming contests whose start has passed
// and active or upcoming contests whose end has passed.
func (r *ContestRepository) ListContestsDueForTransition(ctx context.Context, now time.Time) ([]models.Contest, error) {
	var contests []models.Contest
	err := r.db.WithContext(ctx).
		Where("(status = ? AND starts_at <= ?) OR (status IN ? AND ends_at <= ?)",
			models.ContestStatusUpcoming, now,
			[]models.ContestStatus{models.ContestStatusUpcoming, models.ContestStatusActive}, now).
		Find(&contests).Error
	if err != nil {
		return nil, classify(err)
	}

	return contests, nil
}

// UpdateContestStatus moves a contest from one status to another. It reports
// false when the contest was no longer in the from status.
func (r *ContestRepository) UpdateContestStatus(ctx context.Context, id uuid.UUID, from, to models.ContestStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Contest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, classify(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// DeleteContest removes a contest with its participants, problems and contest submissions.
func (r *ContestRepository) DeleteContest(ctx context.Context, id uuid.UUID) error {
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("contest_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contest_id = ?", id).Delete(&models.Participant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contest_id = ?", id).Delete(&models.Problem{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Contest{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("contest %s: %w", id, common.ErrNotFound)
		}
		return nil
	})
	return classify(err)
}
