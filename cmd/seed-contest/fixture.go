package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"skillport/internal/app"
	"skillport/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Fixture describes a contest with its problems, participants and an optional
// submission history.
type Fixture struct {
	Title           string               `json:"title" validate:"required,max=255"`
	StartsAt        time.Time            `json:"starts_at" validate:"required"`
	EndsAt          time.Time            `json:"ends_at" validate:"required,gtfield=StartsAt"`
	MaxParticipants *int                 `json:"max_participants" validate:"omitempty,min=1"`
	CreatedBy       string               `json:"created_by" validate:"max=64"`
	Problems        []FixtureProblem     `json:"problems" validate:"required,min=1,dive"`
	Participants    []FixtureParticipant `json:"participants" validate:"dive"`
	Submissions     []FixtureSubmission  `json:"submissions" validate:"dive"`
}

type FixtureProblem struct {
	Key        string `json:"key" validate:"required"`
	Title      string `json:"title" validate:"required,max=255"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=EASY MEDIUM HARD easy medium hard"`
	Points     int64  `json:"points" validate:"min=0"`
}

type FixtureParticipant struct {
	UserID      string     `json:"user_id" validate:"required,max=64"`
	Name        string     `json:"name" validate:"max=255"`
	Email       string     `json:"email" validate:"omitempty,email"`
	JoinedAt    *time.Time `json:"joined_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

type FixtureSubmission struct {
	UserID      string    `json:"user_id" validate:"required"`
	Problem     string    `json:"problem" validate:"required"`
	Verdict     string    `json:"verdict" validate:"required,oneof=PENDING ACCEPTED REJECTED"`
	Score       *int64    `json:"score" validate:"omitempty,min=0"`
	Language    string    `json:"language" validate:"required,max=30"`
	RuntimeMs   int32     `json:"runtime_ms" validate:"min=0"`
	SubmittedAt time.Time `json:"submitted_at" validate:"required"`
}

func loadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := validator.New().Struct(&fixture); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &fixture, nil
}

type seedResult struct {
	ContestID   uuid.UUID
	Problems    int
	Users       int
	Submissions int
}

// seed writes the fixture through the stores. awardScore mirrors the stored
// score mode so the seeded scores match what live traffic would produce.
func seed(ctx context.Context, stores *app.Stores, fixture *Fixture, awardScore bool) (*seedResult, error) {
	contest := &models.Contest{
		Title:           fixture.Title,
		Status:          models.ContestStatusUpcoming,
		StartsAt:        fixture.StartsAt,
		EndsAt:          fixture.EndsAt,
		MaxParticipants: fixture.MaxParticipants,
		CreatedBy:       fixture.CreatedBy,
	}
	if err := stores.Contests.CreateContest(ctx, contest); err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}
	result := &seedResult{ContestID: contest.ID}

	problems := make(map[string]*models.Problem, len(fixture.Problems))
	for _, fp := range fixture.Problems {
		if _, dup := problems[fp.Key]; dup {
			return nil, fmt.Errorf("duplicate problem key %q", fp.Key)
		}
		difficulty := models.DifficultyEasy
		if fp.Difficulty != "" {
			difficulty = models.Difficulty(strings.ToUpper(fp.Difficulty))
		}
		problem := &models.Problem{
			ContestID:  &contest.ID,
			Title:      fp.Title,
			Difficulty: difficulty,
			Points:     fp.Points,
			CreatedBy:  fixture.CreatedBy,
		}
		if err := stores.Problems.CreateProblem(ctx, problem); err != nil {
			return nil, fmt.Errorf("failed to create problem %q: %w", fp.Key, err)
		}
		problems[fp.Key] = problem
		result.Problems++
	}

	for _, fp := range fixture.Participants {
		name := fp.Name
		if name == "" {
			name = fp.UserID
		}
		if err := stores.Users.UpsertUser(ctx, &models.User{ID: fp.UserID, Name: name, Email: fp.Email}); err != nil {
			return nil, fmt.Errorf("failed to save user %s: %w", fp.UserID, err)
		}

		participant := &models.Participant{ContestID: contest.ID, UserID: fp.UserID}
		if fp.JoinedAt != nil {
			participant.JoinedAt = *fp.JoinedAt
		}
		if err := stores.Participants.RegisterParticipant(ctx, participant); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", fp.UserID, err)
		}
		if fp.CompletedAt != nil {
			if err := stores.Participants.MarkCompleted(ctx, contest.ID, fp.UserID, *fp.CompletedAt); err != nil {
				return nil, fmt.Errorf("failed to complete %s: %w", fp.UserID, err)
			}
		}
		result.Users++
	}

	for i, fs := range fixture.Submissions {
		problem, ok := problems[fs.Problem]
		if !ok {
			return nil, fmt.Errorf("submission %d references unknown problem %q", i, fs.Problem)
		}

		verdict := models.Verdict(fs.Verdict)
		var score int64
		if verdict == models.VerdictAccepted {
			score = problem.Points
			if fs.Score != nil {
				score = *fs.Score
			}
		}

		submission := &models.Submission{
			ContestID:   &contest.ID,
			UserID:      fs.UserID,
			ProblemID:   problem.ID,
			Verdict:     verdict,
			Score:       score,
			Language:    fs.Language,
			RuntimeMs:   fs.RuntimeMs,
			SubmittedAt: fs.SubmittedAt,
		}
		if verdict != models.VerdictPending {
			judgedAt := fs.SubmittedAt
			submission.JudgedAt = &judgedAt
		}
		if _, err := stores.Submissions.RecordSubmission(ctx, submission, awardScore); err != nil {
			return nil, fmt.Errorf("failed to record submission %d: %w", i, err)
		}
		result.Submissions++
	}

	return result, nil
}
