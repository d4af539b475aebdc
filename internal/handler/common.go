// internal/handler/common.go
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chmw "github.com/go-chi/chi/v5/middleware"
	"github.com/tackboard/tackboard/internal/domain"
)

type ErrorResponse struct {
	BaseResponse
	Error string `json:"error"`
}

type BaseResponse struct {
	Ok bool `json:"ok"`
}

// respondWithError sends an error response with a message
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// respondDomainError maps the error taxonomy onto HTTP statuses. NotFound
// covers missing and out-of-tenant resources alike; conflicts ask the
// client to retry with fresh board state; invariant violations are server
// bugs and are logged with full context before a bare 500.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	var ce *domain.ConflictError
	var iv *domain.InvariantViolation

	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, "permission denied")
	case errors.As(err, &ve):
		respondWithError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrWIPLimitReached),
		errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrDuplicateProjectKey),
		errors.Is(err, domain.ErrCannotRemoveOwner):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMemberNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ce):
		respondWithError(w, http.StatusConflict, "concurrent update, retry with fresh state")
	case errors.As(err, &iv):
		slog.ErrorContext(r.Context(), "invariant violation",
			"error", err,
			"invariant", iv.Invariant,
			"context", iv.Context,
			"requestID", chmw.GetReqID(r.Context()))
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	default:
		slog.ErrorContext(r.Context(), "unhandled error",
			"error", err, "requestID", chmw.GetReqID(r.Context()))
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
