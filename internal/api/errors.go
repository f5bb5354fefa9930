package api

import (
	"errors"
	"net/http"

	"renit/internal/domain"
)

// writeServiceError maps the domain taxonomy onto HTTP statuses.
// Anything unrecognized is logged and answered with a generic 500.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var overlap *domain.OverlapError
	switch {
	case errors.As(err, &overlap):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":           domain.ErrOverlapConflict.Error(),
			"conflicting_ids": overlap.ConflictingIDs,
		})
	case errors.Is(err, domain.ErrOverlapConflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":           err.Error(),
			"conflicting_ids": []int64{},
		})
	case errors.Is(err, domain.ErrInvalidRange), errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrItemUnavailable),
		errors.Is(err, domain.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.log.Error().
			Err(err).
			Str("request_id", requestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
