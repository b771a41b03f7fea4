package services

import (
	"context"
	"io"
	"time"

	"skillport/internal/leaderboard"
	"skillport/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// The database repositories and memstore.Store both satisfy these.

type ContestStore interface {
	GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error)
	DeleteContest(ctx context.Context, id uuid.UUID) error
}

type ParticipantStore interface {
	RegisterParticipant(ctx context.Context, participant *models.Participant) error
	GetParticipant(ctx context.Context, contestID uuid.UUID, userID string) (*models.Participant, error)
	MarkCompleted(ctx context.Context, contestID uuid.UUID, userID string, at time.Time) error
	CountParticipantsByContest(ctx context.Context, contestID uuid.UUID) (int64, error)
	LeaderboardPage(ctx context.Context, contestID uuid.UUID, offset, limit int) (*leaderboard.Page, error)
}

type SubmissionStore interface {
	RecordSubmission(ctx context.Context, submission *models.Submission, awardScore bool) (bool, error)
	FinalizeVerdict(ctx context.Context, id uuid.UUID, verdict models.Verdict, score int64, awardScore bool) (*models.Submission, bool, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	ListSubmissions(ctx context.Context, contestID *uuid.UUID, userID string, limit, offset int) ([]models.Submission, error)
}

type ProblemStore interface {
	GetProblemByID(ctx context.Context, id uuid.UUID) (*models.Problem, error)
}

type UserStore interface {
	UpsertUser(ctx context.Context, user *models.User) error
	EnsureUser(ctx context.Context, id string) error
}

type Recomputer interface {
	Recompute(ctx context.Context, contestID uuid.UUID) (*leaderboard.Snapshot, error)
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func orDiscard(log *logrus.Entry) *logrus.Entry {
	if log == nil {
		return discardLogger()
	}
	return log
}
