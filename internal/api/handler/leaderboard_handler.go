package handler

import (
	"net/http"

	"skillport/internal/common"
	"skillport/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// LiveServer attaches a websocket viewer to a contest's live feed.
type LiveServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, contestID uuid.UUID)
}

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
	live               LiveServer
}

func NewLeaderboardHandler(ls *services.LeaderboardService, live LiveServer) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: ls, live: live}
}

func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/contests/{contestID}/leaderboard", h.getLeaderboard)
}

// RegisterLiveRoutes mounts the websocket feed. It is kept apart so the
// request timeout does not apply to it.
func (h *LeaderboardHandler) RegisterLiveRoutes(r chi.Router) {
	r.Get("/contests/{contestID}/leaderboard/live", h.serveLive)
}

func (h *LeaderboardHandler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuidParam(r, "contestID")
	if err != nil {
		respondError(w, err)
		return
	}

	query := r.URL.Query()
	q, err := h.leaderboardService.ParseQuery(query.Get("page"), query.Get("limit"), query.Get("sort"), query.Get("order"))
	if err != nil {
		respondError(w, err)
		return
	}

	board, err := h.leaderboardService.Get(r.Context(), contestID, q)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, board)
}

func (h *LeaderboardHandler) serveLive(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuidParam(r, "contestID")
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.leaderboardService.CheckContest(r.Context(), contestID); err != nil {
		respondError(w, err)
		return
	}
	h.live.ServeWS(w, r, contestID)
}
