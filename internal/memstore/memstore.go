// Package memstore keeps contests, participants and submissions in process
// memory. It implements the same contracts as the postgres repositories and is
// used for local runs and tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"skillport/internal/common"
	"skillport/internal/leaderboard"
	"skillport/internal/models"

	"github.com/google/uuid"
)

type Store struct {
	mu           sync.RWMutex
	txMu         sync.Mutex
	deriveScores bool
	now          func() time.Time

	users        map[string]models.User
	contests     map[uuid.UUID]models.Contest
	problems     map[uuid.UUID]models.Problem
	participants map[uuid.UUID]*models.Participant
	submissions  []*models.Submission
}

type Option func(*Store)

// WithDerivedScores makes recomputations derive scores from accepted
// submissions instead of reading the stored participant score.
func WithDerivedScores() Option {
	return func(s *Store) { s.deriveScores = true }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:          time.Now,
		users:        make(map[string]models.User),
		contests:     make(map[uuid.UUID]models.Contest),
		problems:     make(map[uuid.UUID]models.Problem),
		participants: make(map[uuid.UUID]*models.Participant),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) CreateContest(_ context.Context, contest *models.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contest.ID == uuid.Nil {
		contest.ID = uuid.New()
	}
	if _, ok := s.contests[contest.ID]; ok {
		return fmt.Errorf("contest %s already exists: %w", contest.ID, common.ErrConflict)
	}
	if contest.Status == "" {
		contest.Status = models.ContestStatusUpcoming
	}
	now := s.now()
	contest.CreatedAt, contest.UpdatedAt = now, now

	stored := *contest
	stored.Problems, stored.Participants = nil, nil
	s.contests[contest.ID] = stored
	return nil
}

func (s *Store) GetContest(_ context.Context, id uuid.UUID) (*models.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contest, ok := s.contests[id]
	if !ok {
		return nil, fmt.Errorf("contest %s: %w", id, common.ErrNotFound)
	}
	return &contest, nil
}

func (s *Store) ListContestsByStatus(_ context.Context, status models.ContestStatus) ([]models.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Contest
	for _, c := range s.contests {
		if c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s *Store) ListContestsDueForTransition(_ context.Context, now time.Time) ([]models.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Contest
	for _, c := range s.contests {
		switch c.Status {
		case models.ContestStatusUpcoming, models.ContestStatusActive:
			if c.StatusAt(now) != c.Status {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (s *Store) UpdateContestStatus(_ context.Context, id uuid.UUID, from, to models.ContestStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contests[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = s.now()
	s.contests[id] = c
	return true, nil
}

func (s *Store) DeleteContest(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contests[id]; !ok {
		return fmt.Errorf("contest %s: %w", id, common.ErrNotFound)
	}
	delete(s.contests, id)

	for pid, p := range s.participants {
		if p.ContestID == id {
			delete(s.participants, pid)
		}
	}
	for pid, p := range s.problems {
		if p.ContestID != nil && *p.ContestID == id {
			delete(s.problems, pid)
		}
	}
	s.submissions = slices.DeleteFunc(s.submissions, func(sub *models.Submission) bool {
		return sub.ContestID != nil && *sub.ContestID == id
	})
	return nil
}

func (s *Store) CreateProblem(_ context.Context, problem *models.Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if problem.ID == uuid.Nil {
		problem.ID = uuid.New()
	}
	if problem.ContestID != nil {
		if _, ok := s.contests[*problem.ContestID]; !ok {
			return fmt.Errorf("contest %s: %w", *problem.ContestID, common.ErrNotFound)
		}
	}
	now := s.now()
	problem.CreatedAt, problem.UpdatedAt = now, now
	s.problems[problem.ID] = *problem
	return nil
}

func (s *Store) GetProblemByID(_ context.Context, id uuid.UUID) (*models.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.problems[id]
	if !ok {
		return nil, fmt.Errorf("problem %s: %w", id, common.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) ListProblemsByContest(_ context.Context, contestID uuid.UUID) ([]models.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Problem
	for _, p := range s.problems {
		if p.ContestID != nil && *p.ContestID == contestID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points < out[j].Points
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *Store) UpsertUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveUser(*user)
	return nil
}

func (s *Store) EnsureUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveUser(models.User{ID: id})
	return nil
}

// saveUser mirrors the postgres upsert: a named user overwrites name and email,
// an unnamed one is only created when missing. Callers hold s.mu.
func (s *Store) saveUser(user models.User) {
	existing, ok := s.users[user.ID]
	switch {
	case ok && user.Name == "":
		return
	case ok:
		existing.Name = user.Name
		existing.Email = user.Email
		s.users[user.ID] = existing
		return
	case user.Name == "":
		user.Name = user.ID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = user
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, common.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) RegisterParticipant(_ context.Context, participant *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contest, ok := s.contests[participant.ContestID]
	if !ok {
		return fmt.Errorf("contest %s: %w", participant.ContestID, common.ErrNotFound)
	}
	if contest.Status == models.ContestStatusCompleted || contest.Status == models.ContestStatusCancelled {
		return fmt.Errorf("contest %s is %s: %w", contest.ID, contest.Status, common.ErrConflict)
	}

	count := 0
	for _, p := range s.participants {
		if p.ContestID != contest.ID {
			continue
		}
		if p.UserID == participant.UserID {
			return fmt.Errorf("user %s already registered for contest %s: %w", p.UserID, contest.ID, common.ErrConflict)
		}
		count++
	}
	if contest.MaxParticipants != nil && count >= *contest.MaxParticipants {
		return fmt.Errorf("contest %s is full: %w", contest.ID, common.ErrConflict)
	}
	if participant.User.ID != "" {
		s.saveUser(participant.User)
	}

	if participant.ID == uuid.Nil {
		participant.ID = uuid.New()
	}
	if participant.JoinedAt.IsZero() {
		participant.JoinedAt = s.now()
	}
	stored := *participant
	stored.User = models.User{}
	s.participants[stored.ID] = &stored
	return nil
}

func (s *Store) GetParticipant(_ context.Context, contestID uuid.UUID, userID string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.findParticipant(contestID, userID)
	if p == nil {
		return nil, fmt.Errorf("participant %s in contest %s: %w", userID, contestID, common.ErrNotFound)
	}
	out := *p
	out.User = s.users[userID]
	return &out, nil
}

func (s *Store) MarkCompleted(_ context.Context, contestID uuid.UUID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findParticipant(contestID, userID)
	if p == nil {
		return fmt.Errorf("participant %s in contest %s: %w", userID, contestID, common.ErrNotFound)
	}
	if p.CompletedAt == nil {
		p.CompletedAt = &at
	}
	return nil
}

func (s *Store) CountParticipantsByContest(_ context.Context, contestID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.participants {
		if p.ContestID == contestID {
			n++
		}
	}
	return n, nil
}

// LeaderboardPage returns the committed ranking. Ranks are applied in one
// critical section, so a page never mixes two computations.
func (s *Store) LeaderboardPage(_ context.Context, contestID uuid.UUID, offset, limit int) (*leaderboard.Page, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("offset %d limit %d: %w", offset, limit, common.ErrValidation)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ranked []*models.Participant
	for _, p := range s.participants {
		if p.ContestID == contestID && p.Rank != nil {
			ranked = append(ranked, p)
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return *ranked[i].Rank < *ranked[j].Rank })

	page := &leaderboard.Page{Entries: []leaderboard.Entry{}, Total: int64(len(ranked))}
	for _, p := range ranked {
		if p.RankedAt != nil && (page.ComputedAt == nil || p.RankedAt.After(*page.ComputedAt)) {
			at := *p.RankedAt
			page.ComputedAt = &at
		}
	}

	if offset >= len(ranked) {
		return page, nil
	}
	end := len(ranked)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	for _, p := range ranked[offset:end] {
		page.Entries = append(page.Entries, leaderboard.Entry{
			Rank:               *p.Rank,
			ParticipantID:      p.ID,
			UserID:             p.UserID,
			Name:               s.displayName(p.UserID),
			Score:              p.RankedScore,
			ProblemsSolved:     p.ProblemsSolved,
			LastSubmissionTime: p.LastSubmissionAt,
		})
	}
	return page, nil
}

func (s *Store) RecordSubmission(_ context.Context, submission *models.Submission, awardScore bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var participant *models.Participant
	if submission.ContestID != nil {
		participant = s.findParticipant(*submission.ContestID, submission.UserID)
		if participant == nil {
			return false, fmt.Errorf("user %s is not registered for contest %s: %w",
				submission.UserID, *submission.ContestID, common.ErrNotFound)
		}
	}

	firstAccept := participant != nil &&
		submission.Verdict == models.VerdictAccepted &&
		s.isFirstAcceptance(submission, uuid.Nil)

	if submission.ID == uuid.Nil {
		submission.ID = uuid.New()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = s.now()
	}
	stored := *submission
	s.submissions = append(s.submissions, &stored)

	if firstAccept && awardScore && submission.Score > 0 {
		participant.Score += submission.Score
	}
	return firstAccept, nil
}

func (s *Store) FinalizeVerdict(
	_ context.Context,
	id uuid.UUID,
	verdict models.Verdict,
	score int64,
	awardScore bool,
) (*models.Submission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.submissions, func(sub *models.Submission) bool { return sub.ID == id })
	if idx < 0 {
		return nil, false, fmt.Errorf("submission %s: %w", id, common.ErrNotFound)
	}
	sub := s.submissions[idx]
	if sub.Verdict != models.VerdictPending {
		return nil, false, fmt.Errorf("submission %s already judged %s: %w", id, sub.Verdict, common.ErrConflict)
	}

	var participant *models.Participant
	if sub.ContestID != nil {
		participant = s.findParticipant(*sub.ContestID, sub.UserID)
		if participant == nil {
			return nil, false, fmt.Errorf("user %s is not registered for contest %s: %w",
				sub.UserID, *sub.ContestID, common.ErrNotFound)
		}
	}

	judgedAt := s.now()
	sub.Verdict = verdict
	sub.Score = score
	sub.JudgedAt = &judgedAt

	firstAccept := participant != nil && verdict == models.VerdictAccepted && s.isFirstAcceptance(sub, sub.ID)
	if firstAccept && awardScore && score > 0 {
		participant.Score += score
	}

	out := *sub
	return &out, firstAccept, nil
}

func (s *Store) GetSubmission(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.submissions {
		if sub.ID == id {
			out := *sub
			return &out, nil
		}
	}
	return nil, fmt.Errorf("submission %s: %w", id, common.ErrNotFound)
}

func (s *Store) ListSubmissions(_ context.Context, contestID *uuid.UUID, userID string, limit, offset int) ([]models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Submission
	for _, sub := range s.submissions {
		if contestID != nil && (sub.ContestID == nil || *sub.ContestID != *contestID) {
			continue
		}
		if userID != "" && sub.UserID != userID {
			continue
		}
		out = append(out, *sub)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })

	if offset >= len(out) {
		return []models.Submission{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Atomically runs fn against a read view of the contest and applies the ranks
// it saves in a single critical section once fn returns nil. Transactions are
// serialized store-wide.
func (s *Store) Atomically(ctx context.Context, contestID uuid.UUID, fn func(tx leaderboard.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	_, ok := s.contests[contestID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("contest %s: %w", contestID, common.ErrNotFound)
	}

	tx := &memTx{store: s, contestID: contestID}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx.staged == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range tx.staged {
		p, ok := s.participants[e.ParticipantID]
		if !ok || p.ContestID != contestID {
			continue
		}
		rank := e.Rank
		rankedAt := tx.rankedAt
		p.Rank = &rank
		p.RankedScore = e.Score
		p.ProblemsSolved = e.ProblemsSolved
		p.LastSubmissionAt = e.LastSubmissionTime
		p.RankedAt = &rankedAt
		if s.deriveScores {
			p.Score = e.Score
		}
	}
	return nil
}

type memTx struct {
	store     *Store
	contestID uuid.UUID
	staged    []leaderboard.Entry
	rankedAt  time.Time
}

func (t *memTx) Standings(_ context.Context) ([]leaderboard.Standing, error) {
	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	type aggregate struct {
		solved map[uuid.UUID]int64
		last   *time.Time
	}
	byUser := make(map[string]*aggregate)
	for _, sub := range s.submissions {
		if sub.ContestID == nil || *sub.ContestID != t.contestID {
			continue
		}
		agg, ok := byUser[sub.UserID]
		if !ok {
			agg = &aggregate{solved: make(map[uuid.UUID]int64)}
			byUser[sub.UserID] = agg
		}
		if agg.last == nil || sub.SubmittedAt.After(*agg.last) {
			at := sub.SubmittedAt
			agg.last = &at
		}
		if sub.Verdict == models.VerdictAccepted {
			if best, seen := agg.solved[sub.ProblemID]; !seen || sub.Score > best {
				agg.solved[sub.ProblemID] = sub.Score
			}
		}
	}

	var standings []leaderboard.Standing
	for _, p := range s.participants {
		if p.ContestID != t.contestID {
			continue
		}
		st := leaderboard.Standing{
			ParticipantID: p.ID,
			UserID:        p.UserID,
			Name:          s.displayName(p.UserID),
			Score:         p.Score,
			JoinedAt:      p.JoinedAt,
			CompletedAt:   p.CompletedAt,
		}
		if agg, ok := byUser[p.UserID]; ok {
			st.ProblemsSolved = len(agg.solved)
			st.LastSubmissionAt = agg.last
			if s.deriveScores {
				st.Score = 0
				for _, best := range agg.solved {
					st.Score += best
				}
			}
		} else if s.deriveScores {
			st.Score = 0
		}
		standings = append(standings, st)
	}
	return standings, nil
}

func (t *memTx) SaveRanks(_ context.Context, entries []leaderboard.Entry, rankedAt time.Time) error {
	t.staged = slices.Clone(entries)
	if t.staged == nil {
		t.staged = []leaderboard.Entry{}
	}
	t.rankedAt = rankedAt
	return nil
}

func (s *Store) findParticipant(contestID uuid.UUID, userID string) *models.Participant {
	for _, p := range s.participants {
		if p.ContestID == contestID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (s *Store) isFirstAcceptance(submission *models.Submission, exclude uuid.UUID) bool {
	for _, sub := range s.submissions {
		if sub.ID == exclude || sub.ContestID == nil {
			continue
		}
		if *sub.ContestID == *submission.ContestID &&
			sub.UserID == submission.UserID &&
			sub.ProblemID == submission.ProblemID &&
			sub.Verdict == models.VerdictAccepted {
			return false
		}
	}
	return true
}

func (s *Store) displayName(userID string) string {
	if u, ok := s.users[userID]; ok && strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return userID
}
