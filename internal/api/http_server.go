package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"renit/internal/auth"
	"renit/internal/config"
	"renit/internal/domain"
	"renit/internal/export"
	"renit/internal/service"

	"github.com/rs/zerolog"
)

// TokenValidator resolves a bearer token to its user claims.
type TokenValidator interface {
	ValidateToken(token string) (*auth.UserClaims, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles everything the HTTP surface dispatches to.
// Checkout is nil when no payment provider is configured.
type Services struct {
	Users    *service.UserService
	Catalog  *service.CatalogService
	Bookings *service.BookingService
	Reviews  *service.ReviewService
	Messages *service.MessageService
	Checkout *service.CheckoutService
	Exporter *export.Exporter
	Tokens   TokenValidator
	Limiter  domain.RateLimiter
	Store    Pinger
}

// HTTPServer exposes the marketplace REST API.
type HTTPServer struct {
	cfg     config.APIConfig
	booking config.BookingConfig
	svc     Services
	server  *http.Server
	log     zerolog.Logger

	anonLimiter *rateLimiter
}

func NewHTTPServer(cfg *config.Config, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg.API,
		booking: cfg.Booking,
		svc:     svc,
		log:     zerolog.Nop(),

		anonLimiter: newRateLimiter(cfg.API.RateLimit.RPS, cfg.API.RateLimit.Burst),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	handler := recoverMiddleware(&srv.log, mux)
	handler = loggingMiddleware(&srv.log, handler)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /api/v1/signup", s.limitByAddr(s.handleSignup))
	mux.HandleFunc("POST /api/v1/login", s.limitByAddr(s.handleLogin))

	mux.HandleFunc("GET /api/v1/categories", s.handleListCategories)
	mux.Handle("POST /api/v1/categories", s.requireUser(s.handleCreateCategory))
	mux.HandleFunc("GET /api/v1/categories/{id}", s.handleGetCategory)

	mux.HandleFunc("GET /api/v1/items", s.handleListItems)
	mux.Handle("POST /api/v1/items", s.requireUser(s.handleCreateItem))
	mux.HandleFunc("GET /api/v1/items/{id}", s.handleGetItem)
	mux.Handle("PATCH /api/v1/items/{id}", s.requireUser(s.handleUpdateItem))
	mux.Handle("PUT /api/v1/items/{id}", s.requireUser(s.handleUpdateItem))
	mux.Handle("DELETE /api/v1/items/{id}", s.requireUser(s.handleDeleteItem))
	mux.Handle("GET /api/v1/items/{id}/bookings", s.requireUser(s.handleItemBookings))
	mux.Handle("GET /api/v1/items/{id}/bookings/export", s.requireUser(s.handleExportBookings))
	mux.Handle("GET /api/v1/items/{id}/messages/stream", s.requireUser(s.handleMessageStream))

	mux.Handle("GET /api/v1/bookings", s.requireUser(s.handleListBookings))
	mux.Handle("POST /api/v1/bookings", s.requireUser(s.limitWrites(s.handleCreateBooking)))
	mux.Handle("GET /api/v1/bookings/{id}", s.requireUser(s.handleGetBooking))
	mux.Handle("PATCH /api/v1/bookings/{id}", s.requireUser(s.limitWrites(s.handleUpdateBooking)))
	mux.Handle("PUT /api/v1/bookings/{id}", s.requireUser(s.limitWrites(s.handleUpdateBooking)))
	mux.Handle("DELETE /api/v1/bookings/{id}", s.requireUser(s.limitWrites(s.handleCancelBooking)))
	mux.Handle("POST /api/v1/bookings/{id}/cancel", s.requireUser(s.limitWrites(s.handleCancelBooking)))
	mux.Handle("POST /api/v1/bookings/{id}/complete", s.requireUser(s.limitWrites(s.handleCompleteBooking)))

	mux.HandleFunc("GET /api/v1/reviews", s.handleListReviews)
	mux.Handle("POST /api/v1/reviews", s.requireUser(s.handleCreateReview))
	mux.Handle("DELETE /api/v1/reviews/{id}", s.requireUser(s.handleDeleteReview))

	mux.Handle("GET /api/v1/messages", s.requireUser(s.handleListMessages))
	mux.Handle("POST /api/v1/messages", s.requireUser(s.limitWrites(s.handleSendMessage)))

	mux.Handle("POST /api/v1/checkout-sessions", s.requireUser(s.handleCreateCheckoutSession))
	mux.HandleFunc("POST /api/v1/payments/webhook", s.handlePaymentWebhook)
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Store.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return domain.InvalidInput("invalid JSON body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInput("invalid %s", name)
	}
	return id, nil
}

// queryInt64 parses an optional query parameter; absent means nil.
func queryInt64(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.InvalidInput("invalid %s", name)
	}
	return &v, nil
}

func requiredQueryID(r *http.Request, name string) (int64, error) {
	v, err := queryInt64(r, name)
	if err != nil {
		return 0, err
	}
	if v == nil || *v <= 0 {
		return 0, domain.InvalidInput("%s is required", name)
	}
	return *v, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach Flush and deadlines on the real writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
