package database

import (
	"context"
	"fmt"

	"skillport/internal/common"
	"skillport/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProblemRepository struct {
	db *GormDB
}

func NewProblemRepository(db *GormDB) *ProblemRepository {
	return &ProblemRepository{db: db}
}

func (r *ProblemRepository) CreateProblem(ctx context.Context, problem *models.Problem) error {
	if problem.ID == uuid.Nil {
		problem.ID = uuid.New()
	}
	return classify(r.db.WithContext(ctx).Create(problem).Error)
}

func (r *ProblemRepository) GetProblemByID(ctx context.Context, id uuid.UUID) (*models.Problem, error) {
	var problem models.Problem
	err := r.db.WithContext(ctx).First(&problem, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("problem %s: %w", id, common.ErrNotFound)
		}
		return nil, classify(err)
	}

	return &problem, nil
}

func (r *ProblemRepository) ListProblemsByContest(ctx context.Context, contestID uuid.UUID) ([]models.Problem, error) {
	var problems []models.Problem
	err := r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("points ASC, title ASC").
		Find(&problems).Error
	if err != nil {
		return nil, classify(err)
	}

	return problems, nil
}

type UserRepository struct {
	db *GormDB
}

func NewUserRepository(db *GormDB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertUser creates the user or refreshes its display name and email.
func (r *UserRepository) UpsertUser(ctx context.Context, user *models.User) error {
	return classify(saveUser(r.db.WithContext(ctx), user))
}

// EnsureUser creates a placeholder user named after its id unless one exists.
func (r *UserRepository) EnsureUser(ctx context.Context, id string) error {
	return classify(saveUser(r.db.WithContext(ctx), &models.User{ID: id}))
}

// saveUser upserts a named user. An unnamed one is created as a placeholder
// only when missing, leaving an existing name alone.
func saveUser(tx *gorm.DB, user *models.User) error {
	if user.Name == "" {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.User{ID: user.ID, Name: user.ID}).Error
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email"}),
	}).Create(user).Error
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user %s: %w", id, common.ErrNotFound)
		}
		return nil, classify(err)
	}
	return &user, nil
}
