package models

import (
	"time"

	"github.com/google/uuid"
)

type ContestStatus string

const (
	ContestStatusUpcoming  ContestStatus = "UPCOMING"
	ContestStatusActive    ContestStatus = "ACTIVE"
	ContestStatusCompleted ContestStatus = "COMPLETED"
	ContestStatusCancelled ContestStatus = "CANCELLED"
)

// StatusAt returns the status the contest should have at now. Cancelled is terminal.
func (c *Contest) StatusAt(now time.Time) ContestStatus {
	if c.Status == ContestStatusCancelled {
		return ContestStatusCancelled
	}
	switch {
	case !now.Before(c.EndsAt):
		return ContestStatusCompleted
	case !now.Before(c.StartsAt):
		return ContestStatusActive
	default:
		return ContestStatusUpcoming
	}
}

type Verdict string

const (
	VerdictPending  Verdict = "PENDING"
	VerdictAccepted Verdict = "ACCEPTED"
	VerdictRejected Verdict = "REJECTED"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictPending, VerdictAccepted, VerdictRejected:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

type User struct {
	ID        string    `json:"id" gorm:"size:64;primary_key"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	Email     string    `json:"email" gorm:"size:255"`
	Role      string    `json:"role" gorm:"size:30;not null;default:'student'"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

type Problem struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ContestID  *uuid.UUID `json:"contest_id,omitempty" gorm:"type:uuid;index"`
	Title      string     `json:"title" gorm:"size:255;not null"`
	Difficulty Difficulty `json:"difficulty" gorm:"size:20;not null;default:'EASY'"`
	Points     int64      `json:"points" gorm:"not null;default:100"`
	CreatedBy  string     `json:"created_by" gorm:"size:64"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

type Contest struct {
	ID              uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Title           string        `json:"title" gorm:"size:255;not null"`
	Status          ContestStatus `json:"status" gorm:"type:contest_status;not null;default:'UPCOMING'"`
	StartsAt        time.Time     `json:"starts_at" gorm:"not null"`
	EndsAt          time.Time     `json:"ends_at" gorm:"not null"`
	MaxParticipants *int          `json:"max_participants,omitempty"`
	CreatedBy       string        `json:"created_by" gorm:"size:64"`
	CreatedAt       time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
	Problems        []Problem     `json:"problems,omitempty" gorm:"foreignKey:ContestID;constraint:OnDelete:CASCADE"`
	Participants    []Participant `json:"participants,omitempty" gorm:"foreignKey:ContestID;constraint:OnDelete:CASCADE"`
}

// Participant.Score is the running total. RankedScore, Rank and the aggregate
// columns are written together by the leaderboard calculator and are what the
// read path serves, so a page never pairs a new score with an old rank.
type Participant struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ContestID        uuid.UUID  `json:"contest_id" gorm:"type:uuid;not null;uniqueIndex:idx_participant_contest_user"`
	UserID           string     `json:"user_id" gorm:"size:64;not null;uniqueIndex:idx_participant_contest_user"`
	Score            int64      `json:"score" gorm:"not null;default:0"`
	Rank             *int       `json:"rank"`
	RankedScore      int64      `json:"ranked_score" gorm:"not null;default:0"`
	ProblemsSolved   int        `json:"problems_solved" gorm:"not null;default:0"`
	LastSubmissionAt *time.Time `json:"last_submission_at"`
	RankedAt         *time.Time `json:"ranked_at"`
	JoinedAt         time.Time  `json:"joined_at" gorm:"not null"`
	CompletedAt      *time.Time `json:"completed_at"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	User             User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Submission rows are append-only; only a pending verdict may later be finalized.
type Submission struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ContestID   *uuid.UUID `json:"contest_id,omitempty" gorm:"type:uuid;index:idx_submission_contest_user"`
	UserID      string     `json:"user_id" gorm:"size:64;not null;index:idx_submission_contest_user"`
	ProblemID   uuid.UUID  `json:"problem_id" gorm:"type:uuid;not null"`
	Verdict     Verdict    `json:"verdict" gorm:"type:submission_verdict;not null;default:'PENDING'"`
	Score       int64      `json:"score" gorm:"not null;default:0"`
	Language    string     `json:"language" gorm:"size:30;not null"`
	RuntimeMs   int32      `json:"runtime_ms" gorm:"default:0"`
	SubmittedAt time.Time  `json:"submitted_at" gorm:"not null"`
	JudgedAt    *time.Time `json:"judged_at"`
}
