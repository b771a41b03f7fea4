package services

import (
	"context"
	"fmt"
	"time"

	"skillport/internal/common"
	"skillport/internal/models"
	"skillport/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SubmissionQuery pages a submission log, newest first.
type SubmissionQuery struct {
	UserID string `json:"user_id" validate:"omitempty,max=64"`
	Limit  int    `json:"limit" validate:"min=1,max=200"`
	Offset int    `json:"offset" validate:"min=0"`
}

type SubmissionService struct {
	contests    ContestStore
	problems    ProblemStore
	submissions SubmissionStore
	trigger     Trigger
	awardScore  bool
	validate    *Validator
	log         *logrus.Entry
	now         func() time.Time
}

// NewSubmissionService builds the service. awardScore is true when the
// leaderboard ranks by the stored participant score, in which case the first
// acceptance of each problem adds to it.
func NewSubmissionService(
	contests ContestStore,
	problems ProblemStore,
	submissions SubmissionStore,
	trigger Trigger,
	awardScore bool,
	log *logrus.Entry,
) *SubmissionService {
	return &SubmissionService{
		contests:    contests,
		problems:    problems,
		submissions: submissions,
		trigger:     trigger,
		awardScore:  awardScore,
		validate:    NewValidator(),
		log:         orDiscard(log),
		now:         time.Now,
	}
}

// Record appends a submission. Contest submissions require a registered user
// and an active contest; a final verdict triggers a recomputation.
func (s *SubmissionService) Record(ctx context.Context, req *types.SubmissionRequest) (*types.SubmissionResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	problem, err := s.problems.GetProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if req.ContestID != nil {
		contest, err := s.contests.GetContest(ctx, *req.ContestID)
		if err != nil {
			return nil, err
		}
		if status := contest.StatusAt(now); status != models.ContestStatusActive {
			return nil, fmt.Errorf("%w: contest %s is %s and not accepting submissions",
				common.ErrValidation, contest.ID, status)
		}
		if problem.ContestID != nil && *problem.ContestID != contest.ID {
			return nil, fmt.Errorf("%w: problem %s does not belong to contest %s",
				common.ErrValidation, problem.ID, contest.ID)
		}
	}

	verdict := models.Verdict(req.Verdict)
	submission := &models.Submission{
		ContestID:   req.ContestID,
		UserID:      req.UserID,
		ProblemID:   req.ProblemID,
		Verdict:     verdict,
		Score:       awardedScore(verdict, req.Score, problem),
		Language:    req.Language,
		RuntimeMs:   req.RuntimeMs,
		SubmittedAt: now,
	}
	if verdict != models.VerdictPending {
		submission.JudgedAt = &now
	}
	if req.SubmittedAt != nil {
		submission.SubmittedAt = *req.SubmittedAt
	}

	firstAccept, err := s.submissions.RecordSubmission(ctx, submission, s.awardScore)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"submission_id": submission.ID.String(),
		"user_id":       submission.UserID,
		"problem_id":    submission.ProblemID.String(),
		"verdict":       submission.Verdict,
		"first_accept":  firstAccept,
	}).Debug("submission recorded")

	if submission.ContestID != nil && verdict != models.VerdictPending {
		s.requestRecompute(ctx, *submission.ContestID)
	}

	resp := ConvertSubmissionToResponse(submission, firstAccept)
	return &resp, nil
}

// Judge settles a pending submission with its final verdict.
func (s *SubmissionService) Judge(ctx context.Context, id uuid.UUID, req *types.VerdictRequest) (*types.SubmissionResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	pending, err := s.submissions.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	problem, err := s.problems.GetProblemByID(ctx, pending.ProblemID)
	if err != nil {
		return nil, err
	}

	verdict := models.Verdict(req.Verdict)
	judged, firstAccept, err := s.submissions.FinalizeVerdict(ctx, id, verdict,
		awardedScore(verdict, req.Score, problem), s.awardScore)
	if err != nil {
		return nil, err
	}

	if judged.ContestID != nil {
		s.requestRecompute(ctx, *judged.ContestID)
	}

	resp := ConvertSubmissionToResponse(judged, firstAccept)
	return &resp, nil
}

// ParseQuery builds a submission log query from raw query-string values.
func (s *SubmissionService) ParseQuery(userID, limit, offset string) (SubmissionQuery, error) {
	l, err := parseIntParam("limit", limit, 50)
	if err != nil {
		return SubmissionQuery{}, err
	}
	o, err := parseIntParam("offset", offset, 0)
	if err != nil {
		return SubmissionQuery{}, err
	}
	return SubmissionQuery{UserID: userID, Limit: l, Offset: o}, nil
}

func (s *SubmissionService) List(ctx context.Context, contestID uuid.UUID, q SubmissionQuery) (*types.SubmissionListResponse, error) {
	if err := s.validate.Struct(q); err != nil {
		return nil, err
	}
	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return nil, err
	}

	subs, err := s.submissions.ListSubmissions(ctx, &contestID, q.UserID, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	out := make([]types.SubmissionResponse, len(subs))
	for i := range subs {
		out[i] = ConvertSubmissionToResponse(&subs[i], false)
	}
	return &types.SubmissionListResponse{Submissions: out, Limit: q.Limit, Offset: q.Offset}, nil
}

func (s *SubmissionService) requestRecompute(ctx context.Context, contestID uuid.UUID) {
	if err := s.trigger.Trigger(ctx, contestID, models.RecomputeReasonSubmission); err != nil {
		s.log.WithError(err).WithField("contest_id", contestID.String()).Warn("failed to trigger leaderboard recompute")
	}
}

// awardedScore is the problem's point value for an accepted verdict unless the
// judge reported one, and zero otherwise.
func awardedScore(verdict models.Verdict, reported *int64, problem *models.Problem) int64 {
	if verdict != models.VerdictAccepted {
		return 0
	}
	if reported != nil {
		return *reported
	}
	return problem.Points
}
