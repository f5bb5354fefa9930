package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"renit/internal/domain"
	"renit/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	requestIDKey
)

const requestIDHeader = "X-Request-ID"

// actorFromContext returns the authenticated user id set by requireUser.
func actorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey).(int64)
	return id
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		// ServeMux fills in the matched pattern on the request it was handed.
		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.ObserveHTTP(endpoint, strconv.Itoa(recorder.status), dur)

		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func recoverMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error().
					Interface("panic", rec).
					Str("request_id", requestIDFromContext(r.Context())).
					Str("path", r.URL.Path).
					Msg("handler panic")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireUser rejects requests without a valid bearer token and stores the
// token's user id as the request actor.
func (s *HTTPServer) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.svc.Tokens.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// limitWrites applies the per-user write budget. Limiter errors fail open.
func (s *HTTPServer) limitWrites(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.svc.Limiter == nil || s.booking.WriteRateLimit <= 0 {
			next(w, r)
			return
		}

		actorID := actorFromContext(r.Context())
		allowed, err := s.svc.Limiter.CheckRateLimit(r.Context(), actorID, s.booking.WriteRateLimit, s.booking.WriteRateWindow)
		if err != nil {
			s.log.Warn().Err(err).Int64("user_id", actorID).Msg("rate limiter unavailable")
			next(w, r)
			return
		}
		if !allowed {
			s.writeServiceError(w, r, domain.ErrRateLimited)
			return
		}
		next(w, r)
	}
}
