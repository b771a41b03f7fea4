package types

import (
	"time"

	"github.com/google/uuid"
)

// ContestResponse represents a contest response
type ContestResponse struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Status           string    `json:"status"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	MaxParticipants  *int      `json:"max_participants,omitempty"`
	ParticipantCount int64     `json:"participant_count"`
}

// RegisterRequest joins a user to a contest. Name and email refresh the user's
// profile when present.
type RegisterRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Name   string `json:"name" validate:"omitempty,max=255"`
	Email  string `json:"email" validate:"omitempty,email"`
}

// ParticipantResponse represents a participant response
type ParticipantResponse struct {
	ID          uuid.UUID  `json:"id"`
	ContestID   uuid.UUID  `json:"contest_id"`
	UserID      string     `json:"user_id"`
	Score       int64      `json:"score"`
	Rank        *int       `json:"rank"`
	JoinedAt    time.Time  `json:"joined_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// SubmissionRequest records a judged (or pending) attempt.
type SubmissionRequest struct {
	ContestID   *uuid.UUID `json:"contest_id"`
	UserID      string     `json:"user_id" validate:"required,max=64"`
	ProblemID   uuid.UUID  `json:"problem_id" validate:"required"`
	Verdict     string     `json:"verdict" validate:"required,verdict"`
	Score       *int64     `json:"score" validate:"omitempty,min=0"`
	Language    string     `json:"language" validate:"required,max=30"`
	RuntimeMs   int32      `json:"runtime_ms" validate:"min=0"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// VerdictRequest settles a pending submission.
type VerdictRequest struct {
	Verdict string `json:"verdict" validate:"required,oneof=ACCEPTED REJECTED"`
	Score   *int64 `json:"score" validate:"omitempty,min=0"`
}

// SubmissionResponse represents a submission response
type SubmissionResponse struct {
	ID          uuid.UUID  `json:"id"`
	ContestID   *uuid.UUID `json:"contest_id,omitempty"`
	UserID      string     `json:"user_id"`
	ProblemID   uuid.UUID  `json:"problem_id"`
	Verdict     string     `json:"verdict"`
	Score       int64      `json:"score"`
	Language    string     `json:"language"`
	RuntimeMs   int32      `json:"runtime_ms"`
	SubmittedAt time.Time  `json:"submitted_at"`
	JudgedAt    *time.Time `json:"judged_at"`
	FirstAccept bool       `json:"first_accept"`
}

// SubmissionListResponse is one page of a contest's submission log.
type SubmissionListResponse struct {
	Submissions []SubmissionResponse `json:"submissions"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// LeaderboardEntryResponse is one ranked row.
type LeaderboardEntryResponse struct {
	Rank               int        `json:"rank"`
	UserID             string     `json:"user_id"`
	Name               string     `json:"name"`
	Score              int64      `json:"score"`
	ProblemsSolved     int        `json:"problems_solved"`
	LastSubmissionTime *time.Time `json:"last_submission_time"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// LeaderboardResponse represents a leaderboard response. ComputedAt is nil
// until the contest has been ranked once.
type LeaderboardResponse struct {
	ContestID  uuid.UUID                  `json:"contest_id"`
	Entries    []LeaderboardEntryResponse `json:"entries"`
	Pagination Pagination                 `json:"pagination"`
	ComputedAt *time.Time                 `json:"computed_at"`
}

// RecomputeResponse reports an explicit recomputation.
type RecomputeResponse struct {
	ContestID    uuid.UUID `json:"contest_id"`
	Participants int       `json:"participants"`
	ComputedAt   time.Time `json:"computed_at"`
}

// LiveEntry is the row shape pushed to live viewers.
type LiveEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
	Score          int64  `json:"score"`
	ProblemsSolved int    `json:"problems_solved"`
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	ContestID uuid.UUID   `json:"contest_id"`
	Data      []LiveEntry `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Constants for WebSocket message types
const (
	MessageTypeLeaderboardUpdate = "leaderboard_update"
)
