package common

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound   = errors.New("requested resource not found")
	ErrConflict   = errors.New("resource conflict")
	ErrTransient  = errors.New("store unavailable")
	ErrValidation = errors.New("validation failed")
)

// Postgres SQLSTATE codes that mean a concurrent writer won.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
)

// IsConflict reports whether err is a conflict, either a domain one or a
// postgres error raised by a concurrent transaction.
func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation, pgLockNotAvailable:
			return true
		}
	}
	return false
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if IsConflict(err) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrTransient) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
