package api

import (
	"io"
	"net/http"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBody        = 64 << 10
)

type checkoutRequest struct {
	BookingID int64 `json:"booking_id"`
}

func (s *HTTPServer) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if s.svc.Checkout == nil {
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	}
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	session, err := s.svc.Checkout.CreateCheckoutSession(r.Context(), actorFromContext(r.Context()), req.BookingID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// handlePaymentWebhook is unauthenticated; the provider signature is the only check.
func (s *HTTPServer) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if s.svc.Checkout == nil {
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if err := s.svc.Checkout.HandleWebhook(r.Context(), payload, r.Header.Get(stripeSignatureHeader)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
