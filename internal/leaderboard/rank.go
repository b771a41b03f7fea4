// Package leaderboard computes contest rankings and persists them atomically.
package leaderboard

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Standing is one participant's raw state as read from the stores, before ranking.
type Standing struct {
	ParticipantID    uuid.UUID
	UserID           string
	Name             string
	Score            int64
	ProblemsSolved   int
	LastSubmissionAt *time.Time
	JoinedAt         time.Time
	CompletedAt      *time.Time
}

// Entry is a ranked row of a contest leaderboard.
type Entry struct {
	Rank               int        `json:"rank"`
	ParticipantID      uuid.UUID  `json:"-"`
	UserID             string     `json:"user_id"`
	Name               string     `json:"name"`
	Score              int64      `json:"score"`
	ProblemsSolved     int        `json:"problems_solved"`
	LastSubmissionTime *time.Time `json:"last_submission_time"`
}

// Rank orders standings and assigns dense ranks 1..N. Ties are never shared:
// score desc, then completion time asc (completed before not completed), then
// join time asc, then user id. The input slice is not modified.
func Rank(standings []Standing) []Entry {
	sorted := slices.Clone(standings)
	slices.SortFunc(sorted, compareStandings)

	entries := make([]Entry, len(sorted))
	for i, s := range sorted {
		entries[i] = Entry{
			Rank:               i + 1,
			ParticipantID:      s.ParticipantID,
			UserID:             s.UserID,
			Name:               s.Name,
			Score:              s.Score,
			ProblemsSolved:     s.ProblemsSolved,
			LastSubmissionTime: s.LastSubmissionAt,
		}
	}
	return entries
}

func compareStandings(a, b Standing) int {
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	if c := compareCompletion(a.CompletedAt, b.CompletedAt); c != 0 {
		return c
	}
	if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
		return c
	}
	return strings.Compare(a.UserID, b.UserID)
}

func compareCompletion(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}
