package leaderboard

import (
	"time"

	"skillport/pkg/types"

	"github.com/google/uuid"
)

// Snapshot is the leaderboard state as of one committed computation.
type Snapshot struct {
	ContestID  uuid.UUID `json:"contest_id"`
	Entries    []Entry   `json:"entries"`
	ComputedAt time.Time `json:"computed_at"`
}

// Top returns the first n entries in live shape. n <= 0 means all.
func (s *Snapshot) Top(n int) []types.LiveEntry {
	entries := s.Entries
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	rows := make([]types.LiveEntry, len(entries))
	for i, e := range entries {
		rows[i] = types.LiveEntry{
			Rank:           e.Rank,
			UserID:         e.UserID,
			UserName:       e.Name,
			Score:          e.Score,
			ProblemsSolved: e.ProblemsSolved,
		}
	}
	return rows
}

// LiveMessage wraps the top n rows for delivery to live viewers.
func (s *Snapshot) LiveMessage(n int) types.WebSocketMessage {
	return types.WebSocketMessage{
		Type:      types.MessageTypeLeaderboardUpdate,
		ContestID: s.ContestID,
		Data:      s.Top(n),
		Timestamp: s.ComputedAt,
	}
}

// Page is a slice of the last committed leaderboard, as served by the read API.
type Page struct {
	Entries    []Entry
	Total      int64
	ComputedAt *time.Time
}
