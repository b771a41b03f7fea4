package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"skillport/internal/broadcast"
	"skillport/internal/leaderboard"
	"skillport/internal/memstore"
	"skillport/internal/models"
	"skillport/internal/services"
	"skillport/pkg/metrics"
	"skillport/pkg/types"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv     *httptest.Server
	store   *memstore.Store
	contest *models.Contest
	problem *models.Problem
}

func newTestServer(t *testing.T, ping func(context.Context) error) *testServer {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	hub := broadcast.NewHub()
	t.Cleanup(hub.Close)
	calc := leaderboard.NewCalculator(store, leaderboard.WithPublisher(hub))
	trigger := services.NewSyncTrigger(calc)

	contest := &models.Contest{
		Title:    "weekly",
		Status:   models.ContestStatusActive,
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, store.CreateContest(ctx, contest))
	problem := &models.Problem{ContestID: &contest.ID, Title: "two sum", Points: 100}
	require.NoError(t, store.CreateProblem(ctx, problem))

	router := NewRouter(Dependencies{
		ContestService:     services.NewContestService(store, store, calc, trigger, nil),
		SubmissionService:  services.NewSubmissionService(store, store, store, trigger, true, nil),
		LeaderboardService: services.NewLeaderboardService(store, store, 20, 100),
		Live:               hub,
		Metrics:            metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry())),
		Ping:               ping,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: store, contest: contest, problem: problem}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (ts *testServer) contestPath(suffix string) string {
	return "/api/v1/contests/" + ts.contest.ID.String() + suffix
}

func (ts *testServer) register(t *testing.T, userID, name string) {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, ts.contestPath("/participants"), types.RegisterRequest{UserID: userID, Name: name})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
}

func (ts *testServer) submit(t *testing.T, userID, verdict string) types.SubmissionResponse {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/v1/submissions", types.SubmissionRequest{
		ContestID: &ts.contest.ID,
		UserID:    userID,
		ProblemID: ts.problem.ID,
		Verdict:   verdict,
		Language:  "python",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var sub types.SubmissionResponse
	require.NoError(t, json.Unmarshal(body, &sub))
	return sub
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	down := newTestServer(t, func(context.Context) error { return errors.New("connection refused") })
	resp, _ = down.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLeaderboardFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "alice", "Alice")
	ts.register(t, "bob", "Bob")

	sub := ts.submit(t, "bob", "ACCEPTED")
	assert.True(t, sub.FirstAccept)
	assert.EqualValues(t, 100, sub.Score)

	resp, body := ts.do(t, http.MethodGet, ts.contestPath("/leaderboard?page=1&limit=10"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var board types.LeaderboardResponse
	require.NoError(t, json.Unmarshal(body, &board))
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "bob", board.Entries[0].UserID)
	assert.Equal(t, "Bob", board.Entries[0].Name)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, 1, board.Entries[0].ProblemsSolved)
	assert.NotNil(t, board.Entries[0].LastSubmissionTime)
	assert.Equal(t, "alice", board.Entries[1].UserID)
	assert.Equal(t, 2, board.Entries[1].Rank)
	assert.Nil(t, board.Entries[1].LastSubmissionTime)
	assert.Equal(t, types.Pagination{Page: 1, Limit: 10, Total: 2, TotalPages: 1}, board.Pagination)
	assert.NotNil(t, board.ComputedAt)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &raw))
	for _, key := range []string{"contest_id", "entries", "pagination", "computed_at"} {
		assert.Contains(t, raw, key)
	}
}

func TestLeaderboardErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	cases := []struct {
		name string
		path string
		code int
	}{
		{"limit over max", ts.contestPath("/leaderboard?limit=1000"), http.StatusBadRequest},
		{"page not a number", ts.contestPath("/leaderboard?page=abc"), http.StatusBadRequest},
		{"page beyond any offset", ts.contestPath("/leaderboard?page=9223372036854775807&limit=20"), http.StatusBadRequest},
		{"descending order", ts.contestPath("/leaderboard?order=desc"), http.StatusBadRequest},
		{"malformed contest id", "/api/v1/contests/not-a-uuid/leaderboard", http.StatusBadRequest},
		{"unknown contest", "/api/v1/contests/" + uuid.NewString() + "/leaderboard", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodGet, tc.path, nil)
			assert.Equal(t, tc.code, resp.StatusCode)
			assert.NotEmpty(t, errorMessage(t, body))
		})
	}
}

func TestRegistrationAndSubmissionErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "alice", "Alice")

	resp, _ := ts.do(t, http.MethodPost, ts.contestPath("/participants"), types.RegisterRequest{UserID: "alice"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, ts.contestPath("/participants"), map[string]string{"name": "nobody"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/v1/submissions", strings.NewReader("{"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/submissions", types.SubmissionRequest{
		ContestID: &ts.contest.ID,
		UserID:    "mallory",
		ProblemID: ts.problem.ID,
		Verdict:   "ACCEPTED",
		Language:  "go",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVerdictAndSubmissionLog(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "alice", "Alice")
	pending := ts.submit(t, "alice", "PENDING")

	resp, body := ts.do(t, http.MethodPatch, "/api/v1/submissions/"+pending.ID.String()+"/verdict",
		types.VerdictRequest{Verdict: "ACCEPTED"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var judged types.SubmissionResponse
	require.NoError(t, json.Unmarshal(body, &judged))
	assert.Equal(t, "ACCEPTED", judged.Verdict)
	assert.True(t, judged.FirstAccept)

	resp, _ = ts.do(t, http.MethodPatch, "/api/v1/submissions/"+pending.ID.String()+"/verdict",
		types.VerdictRequest{Verdict: "REJECTED"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, ts.contestPath("/submissions?user_id=alice&limit=5"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list types.SubmissionListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Submissions, 1)
	assert.Equal(t, 5, list.Limit)
}

func TestContestLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "alice", "Alice")

	resp, body := ts.do(t, http.MethodGet, ts.contestPath(""), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var contest types.ContestResponse
	require.NoError(t, json.Unmarshal(body, &contest))
	assert.Equal(t, "ACTIVE", contest.Status)
	assert.EqualValues(t, 1, contest.ParticipantCount)

	resp, body = ts.do(t, http.MethodPost, ts.contestPath("/participants/alice/complete"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var participant types.ParticipantResponse
	require.NoError(t, json.Unmarshal(body, &participant))
	assert.NotNil(t, participant.CompletedAt)
	require.NotNil(t, participant.Rank)
	assert.Equal(t, 1, *participant.Rank)

	resp, body = ts.do(t, http.MethodPost, ts.contestPath("/leaderboard/recompute"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var recomputed types.RecomputeResponse
	require.NoError(t, json.Unmarshal(body, &recomputed))
	assert.Equal(t, 1, recomputed.Participants)

	resp, _ = ts.do(t, http.MethodDelete, ts.contestPath(""), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, ts.contestPath(""), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, ts.contestPath("/leaderboard"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLiveFeed(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "alice", "Alice")

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + ts.contestPath("/leaderboard/live")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() types.WebSocketMessage {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg types.WebSocketMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	initial := read()
	assert.Equal(t, types.MessageTypeLeaderboardUpdate, initial.Type)
	require.Len(t, initial.Data, 1)
	assert.Equal(t, "alice", initial.Data[0].UserID)

	ts.submit(t, "alice", "ACCEPTED")
	update := read()
	require.Len(t, update.Data, 1)
	assert.EqualValues(t, 100, update.Data[0].Score)
	assert.Equal(t, "Alice", update.Data[0].UserName)
	assert.Equal(t, 1, update.Data[0].ProblemsSolved)
	assert.True(t, update.Timestamp.After(initial.Timestamp))
}

func TestLiveFeedUnknownContest(t *testing.T) {
	ts := newTestServer(t, nil)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/contests/" + uuid.NewString() + "/leaderboard/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		conn.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodGet, ts.contestPath("/leaderboard"), nil)

	resp, body := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "skillport_http_requests_total")
	assert.Contains(t, string(body), `route="/api/v1/contests/{contestID}/leaderboard"`)
}
