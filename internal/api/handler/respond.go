package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"skillport/internal/common"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func respondError(w http.ResponseWriter, err error) {
	code := common.HTTPStatusFromError(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal server error"
	}
	common.RespondWithError(w, code, msg)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", common.ErrValidation, name)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", common.ErrValidation, err)
	}
	return nil
}
