package handler

import (
	"net/http"

	"skillport/internal/common"
	"skillport/internal/services"
	"skillport/pkg/types"

	"github.com/go-chi/chi/v5"
)

type SubmissionHandler struct {
	submissionService *services.SubmissionService
}

func NewSubmissionHandler(ss *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: ss}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/submissions", h.createSubmission)
	r.Patch("/submissions/{submissionID}/verdict", h.judge)
	r.Get("/contests/{contestID}/submissions", h.listSubmissions)
}

func (h *SubmissionHandler) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req types.SubmissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	submission, err := h.submissionService.Record(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, submission)
}

func (h *SubmissionHandler) judge(w http.ResponseWriter, r *http.Request) {
	submissionID, err := uuidParam(r, "submissionID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req types.VerdictRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	submission, err := h.submissionService.Judge(r.Context(), submissionID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, submission)
}

func (h *SubmissionHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuidParam(r, "contestID")
	if err != nil {
		respondError(w, err)
		return
	}

	query := r.URL.Query()
	q, err := h.submissionService.ParseQuery(query.Get("user_id"), query.Get("limit"), query.Get("offset"))
	if err != nil {
		respondError(w, err)
		return
	}

	list, err := h.submissionService.List(r.Context(), contestID, q)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, list)
}
