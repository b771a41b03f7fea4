package handler

import (
	"net/http"

	"skillport/internal/common"
	"skillport/internal/services"
	"skillport/pkg/types"

	"github.com/go-chi/chi/v5"
)

type ContestHandler struct {
	contestService *services.ContestService
}

func NewContestHandler(cs *services.ContestService) *ContestHandler {
	return &ContestHandler{contestService: cs}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/contests/{contestID}", h.getContest)
	r.Delete("/contests/{contestID}", h.deleteContest)
	r.Post("/contests/{contestID}/participants", h.register)
	r.Post("/contests/{contestID}/participants/{userID}/complete", h.complete)
	r.Post("/contests/{contestID}/leaderboard/recompute", h.recompute)
}

func (h *ContestHandler) getContest(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuidParam(r, "contestID")
	if err != nil {
		respondError(w, err)
		return
	}

	contest, err := h.contestService.GetContest(r.Context(), contestID)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contest)
}

func (h *ContestHandler) deleteContest(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuidParam(r, "contestID")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.contestService.DeleteContest(r.Context(), contestID); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContestHandler) register(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuidParam(r, "contestID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req types.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	participant, err := h.contestService.Register(r.Context(), contestID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, participant)
}

func (h *ContestHandler) complete(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuidParam(r, "contestID")
	if err != nil {
		respondError(w, err)
		return
	}

	participant, err := h.contestService.Complete(r.Context(), contestID, chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, participant)
}

func (h *ContestHandler) recompute(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuidParam(r, "contestID")
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.contestService.Recompute(r.Context(), contestID)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}
