package services

import (
	"context"
	"fmt"
	"time"

	"skillport/internal/models"
	"skillport/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ContestService struct {
	contests     ContestStore
	participants ParticipantStore
	calc         Recomputer
	trigger      Trigger
	validate     *Validator
	log          *logrus.Entry
	now          func() time.Time
}

func NewContestService(
	contests ContestStore,
	participants ParticipantStore,
	calc Recomputer,
	trigger Trigger,
	log *logrus.Entry,
) *ContestService {
	return &ContestService{
		contests:     contests,
		participants: participants,
		calc:         calc,
		trigger:      trigger,
		validate:     NewValidator(),
		log:          orDiscard(log),
		now:          time.Now,
	}
}

func (cs *ContestService) GetContest(ctx context.Context, id uuid.UUID) (*types.ContestResponse, error) {
	contest, err := cs.contests.GetContest(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := cs.participants.CountParticipantsByContest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	return ConvertContestToResponse(contest, count), nil
}

// DeleteContest removes the contest together with its participants.
func (cs *ContestService) DeleteContest(ctx context.Context, id uuid.UUID) error {
	if err := cs.contests.DeleteContest(ctx, id); err != nil {
		return err
	}
	cs.log.WithField("contest_id", id.String()).Info("contest deleted")
	return nil
}

// Register joins a user to a contest, creating or renaming the user in the
// same write. The new participant stays unranked until the next
// recomputation, which is requested here.
func (cs *ContestService) Register(ctx context.Context, contestID uuid.UUID, req *types.RegisterRequest) (*types.ParticipantResponse, error) {
	if err := cs.validate.Struct(req); err != nil {
		return nil, err
	}

	participant := &models.Participant{
		ContestID: contestID,
		UserID:    req.UserID,
		JoinedAt:  cs.now(),
		User:      models.User{ID: req.UserID, Name: req.Name, Email: req.Email},
	}
	if err := cs.participants.RegisterParticipant(ctx, participant); err != nil {
		return nil, err
	}

	cs.log.WithFields(logrus.Fields{
		"contest_id": contestID.String(),
		"user_id":    req.UserID,
	}).Info("participant registered")

	cs.requestRecompute(ctx, contestID, models.RecomputeReasonRegistration)
	return ConvertParticipantToResponse(participant), nil
}

// Complete stamps the participant's completion time. Completing twice keeps
// the first timestamp.
func (cs *ContestService) Complete(ctx context.Context, contestID uuid.UUID, userID string) (*types.ParticipantResponse, error) {
	if err := cs.validate.Var("user_id", userID, "required,max=64"); err != nil {
		return nil, err
	}

	if err := cs.participants.MarkCompleted(ctx, contestID, userID, cs.now()); err != nil {
		return nil, err
	}
	participant, err := cs.participants.GetParticipant(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}

	cs.requestRecompute(ctx, contestID, models.RecomputeReasonCompletion)
	return ConvertParticipantToResponse(participant), nil
}

// Recompute runs the calculator inline regardless of the configured trigger.
func (cs *ContestService) Recompute(ctx context.Context, contestID uuid.UUID) (*types.RecomputeResponse, error) {
	snap, err := cs.calc.Recompute(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return &types.RecomputeResponse{
		ContestID:    contestID,
		Participants: len(snap.Entries),
		ComputedAt:   snap.ComputedAt,
	}, nil
}

func (cs *ContestService) requestRecompute(ctx context.Context, contestID uuid.UUID, reason models.RecomputeReason) {
	if err := cs.trigger.Trigger(ctx, contestID, reason); err != nil {
		cs.log.WithError(err).WithFields(logrus.Fields{
			"contest_id": contestID.String(),
			"reason":     reason,
		}).Warn("failed to trigger leaderboard recompute")
	}
}
