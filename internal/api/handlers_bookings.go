package api

import (
	"context"
	"net/http"
	"time"

	"renit/internal/models"
	"renit/internal/service"
)

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ListBookings(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// createBookingRequest has no price field: renters always get the quoted
// price, a supplied total is only accepted from internal callers.
type createBookingRequest struct {
	ItemID    int64     `json:"item_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	booking, err := s.svc.Bookings.CreateBooking(r.Context(), service.CreateBookingRequest{
		ItemID:    req.ItemID,
		RenterID:  actorFromContext(r.Context()),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	booking, err := s.svc.Bookings.GetBooking(r.Context(), id, actorFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var upd models.BookingUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	booking, err := s.svc.Bookings.UpdateBooking(r.Context(), id, actorFromContext(r.Context()), upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type bookingAction func(ctx context.Context, bookingID, actorID int64) (*models.Booking, error)

func (s *HTTPServer) runBookingAction(w http.ResponseWriter, r *http.Request, action bookingAction) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	booking, err := action(r.Context(), id, actorFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	s.runBookingAction(w, r, s.svc.Bookings.CancelBooking)
}

func (s *HTTPServer) handleCompleteBooking(w http.ResponseWriter, r *http.Request) {
	s.runBookingAction(w, r, s.svc.Bookings.CompleteBooking)
}
