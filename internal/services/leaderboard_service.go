package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"skillport/pkg/types"

	"github.com/google/uuid"
)

// maxOffset caps (page-1)*limit so the offset never overflows.
const maxOffset = math.MaxInt32

// LeaderboardQuery is a validated read request. Only rank ascending is
// supported as an ordering.
type LeaderboardQuery struct {
	Page  int    `json:"page" validate:"min=1"`
	Limit int    `json:"limit" validate:"min=1"`
	Sort  string `json:"sort" validate:"oneof=rank"`
	Order string `json:"order" validate:"oneof=asc"`
}

type LeaderboardService struct {
	contests        ContestStore
	participants    ParticipantStore
	validate        *Validator
	defaultPageSize int
	maxPageSize     int
}

func NewLeaderboardService(contests ContestStore, participants ParticipantStore, defaultPageSize, maxPageSize int) *LeaderboardService {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	if defaultPageSize <= 0 || defaultPageSize > maxPageSize {
		defaultPageSize = min(20, maxPageSize)
	}
	return &LeaderboardService{
		contests:        contests,
		participants:    participants,
		validate:        NewValidator(),
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// ParseQuery builds a query from raw query-string values, applying defaults
// for the empty ones.
func (s *LeaderboardService) ParseQuery(page, limit, sort, order string) (LeaderboardQuery, error) {
	p, err := parseIntParam("page", page, 1)
	if err != nil {
		return LeaderboardQuery{}, err
	}
	l, err := parseIntParam("limit", limit, s.defaultPageSize)
	if err != nil {
		return LeaderboardQuery{}, err
	}

	q := LeaderboardQuery{
		Page:  p,
		Limit: l,
		Sort:  strings.ToLower(sort),
		Order: strings.ToLower(order),
	}
	if q.Sort == "" {
		q.Sort = "rank"
	}
	if q.Order == "" {
		q.Order = "asc"
	}
	return q, nil
}

func (s *LeaderboardService) validateQuery(q LeaderboardQuery) error {
	if err := s.validate.Struct(q); err != nil {
		return err
	}
	if err := s.validate.Var("limit", q.Limit, fmt.Sprintf("max=%d", s.maxPageSize)); err != nil {
		return err
	}
	return s.validate.Var("page", q.Page, fmt.Sprintf("max=%d", maxOffset/q.Limit+1))
}

// CheckContest reports ErrNotFound for an unknown contest.
func (s *LeaderboardService) CheckContest(ctx context.Context, contestID uuid.UUID) error {
	_, err := s.contests.GetContest(ctx, contestID)
	return err
}

// Get returns one page of the last committed ranking. It never waits for a
// recomputation in progress.
func (s *LeaderboardService) Get(ctx context.Context, contestID uuid.UUID, q LeaderboardQuery) (*types.LeaderboardResponse, error) {
	if err := s.validateQuery(q); err != nil {
		return nil, err
	}

	if _, err := s.contests.GetContest(ctx, contestID); err != nil {
		return nil, err
	}

	offset := (q.Page - 1) * q.Limit
	page, err := s.participants.LeaderboardPage(ctx, contestID, offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	totalPages := 0
	if page.Total > 0 {
		totalPages = int((page.Total + int64(q.Limit) - 1) / int64(q.Limit))
	}

	return &types.LeaderboardResponse{
		ContestID: contestID,
		Entries:   ConvertEntriesToResponse(page.Entries),
		Pagination: types.Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      page.Total,
			TotalPages: totalPages,
		},
		ComputedAt: page.ComputedAt,
	}, nil
}
