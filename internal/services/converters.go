package services

import (
	"skillport/internal/leaderboard"
	"skillport/internal/models"
	"skillport/pkg/types"
)

func ConvertContestToResponse(contest *models.Contest, participantCount int64) *types.ContestResponse {
	return &types.ContestResponse{
		ID:               contest.ID,
		Title:            contest.Title,
		Status:           string(contest.Status),
		StartsAt:         contest.StartsAt,
		EndsAt:           contest.EndsAt,
		MaxParticipants:  contest.MaxParticipants,
		ParticipantCount: participantCount,
	}
}

func ConvertParticipantToResponse(participant *models.Participant) *types.ParticipantResponse {
	return &types.ParticipantResponse{
		ID:          participant.ID,
		ContestID:   participant.ContestID,
		UserID:      participant.UserID,
		Score:       participant.Score,
		Rank:        participant.Rank,
		JoinedAt:    participant.JoinedAt,
		CompletedAt: participant.CompletedAt,
	}
}

func ConvertSubmissionToResponse(submission *models.Submission, firstAccept bool) types.SubmissionResponse {
	return types.SubmissionResponse{
		ID:          submission.ID,
		ContestID:   submission.ContestID,
		UserID:      submission.UserID,
		ProblemID:   submission.ProblemID,
		Verdict:     string(submission.Verdict),
		Score:       submission.Score,
		Language:    submission.Language,
		RuntimeMs:   submission.RuntimeMs,
		SubmittedAt: submission.SubmittedAt,
		JudgedAt:    submission.JudgedAt,
		FirstAccept: firstAccept,
	}
}

func ConvertEntriesToResponse(entries []leaderboard.Entry) []types.LeaderboardEntryResponse {
	out := make([]types.LeaderboardEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = types.LeaderboardEntryResponse{
			Rank:               e.Rank,
			UserID:             e.UserID,
			Name:               e.Name,
			Score:              e.Score,
			ProblemsSolved:     e.ProblemsSolved,
			LastSubmissionTime: e.LastSubmissionTime,
		}
	}
	return out
}
