package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"renit/internal/domain"
	"renit/internal/events"
	"renit/internal/metrics"
	"renit/internal/models"
	"renit/internal/pricing"

	"github.com/rs/zerolog"
)

const syncTaskUpsert = "upsert"

// CreateBookingRequest is a renter's request for an item over [StartTime, EndTime).
// A nil TotalPriceCents is filled from the item's daily rate.
type CreateBookingRequest struct {
	ItemID          int64
	RenterID        int64
	StartTime       time.Time
	EndTime         time.Time
	TotalPriceCents *int64
}

// BookingService is the booking lifecycle manager: validate, check conflicts,
// price, persist, and move bookings through the status graph.
type BookingService struct {
	bookings     domain.BookingStore
	items        domain.ItemStore
	checker      *ConflictChecker
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	logger       *zerolog.Logger
}

func NewBookingService(
	bookings domain.BookingStore,
	items domain.ItemStore,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		bookings:     bookings,
		items:        items,
		checker:      NewConflictChecker(bookings),
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		logger:       logger,
	}
}

// normalize keeps comparisons consistent with the store's second precision.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (booking *models.Booking, err error) {
	defer func() { metrics.IncBooking("create", outcome(err)) }()

	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return nil, domain.InvalidInput("start_time and end_time are required")
	}
	start, end := normalize(req.StartTime), normalize(req.EndTime)
	if !end.After(start) {
		return nil, domain.ErrInvalidRange
	}

	item, err := s.items.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, fmt.Errorf("item %d: %w", item.ID, domain.ErrItemUnavailable)
	}

	if err := s.checker.Check(ctx, item.ID, start, end, 0); err != nil {
		if errors.Is(err, domain.ErrOverlapConflict) {
			metrics.IncOverlap("check")
		}
		return nil, err
	}

	price, err := pricing.Resolve(req.TotalPriceCents, item.PriceCents, start, end)
	if err != nil {
		return nil, err
	}

	booking = &models.Booking{
		ItemID:          item.ID,
		RenterID:        req.RenterID,
		StartTime:       start,
		EndTime:         end,
		Status:          models.StatusPending,
		TotalPriceCents: price,
	}
	if err := s.bookings.InsertBooking(ctx, booking); err != nil {
		return nil, s.translateStoreError(ctx, err, item.ID, start, end, 0)
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("item_id", item.ID).
		Int64("renter_id", booking.RenterID).
		Msg("booking created")

	s.publishEvent(events.EventBookingCreated, booking, item, events.ChangedByRenter, req.RenterID)
	s.enqueueSync(ctx, booking)

	return booking, nil
}

// UpdateBooking moves an active booking to new times. Only the renter may edit.
// Unchanged times skip conflict re-validation; the stored price is kept unless
// it was never computed.
func (s *BookingService) UpdateBooking(ctx context.Context, bookingID, actorID int64, upd models.BookingUpdate) (booking *models.Booking, err error) {
	defer func() { metrics.IncBooking("update", outcome(err)) }()

	if (upd.StartTime != nil && upd.StartTime.IsZero()) || (upd.EndTime != nil && upd.EndTime.IsZero()) {
		return nil, domain.InvalidInput("start_time and end_time must not be empty")
	}

	booking, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RenterID != actorID {
		return nil, domain.ErrForbidden
	}
	if !booking.IsActive() {
		return nil, fmt.Errorf("booking %d is %s: %w", booking.ID, booking.Status, domain.ErrInvalidTransition)
	}

	start, end := booking.StartTime, booking.EndTime
	if upd.StartTime != nil {
		start = normalize(*upd.StartTime)
	}
	if upd.EndTime != nil {
		end = normalize(*upd.EndTime)
	}
	changed := !start.Equal(booking.StartTime) || !end.Equal(booking.EndTime)

	if !changed && booking.TotalPriceCents != nil {
		return booking, nil
	}

	if changed {
		if err := s.checker.Check(ctx, booking.ItemID, start, end, booking.ID); err != nil {
			if errors.Is(err, domain.ErrOverlapConflict) {
				metrics.IncOverlap("check")
			}
			return nil, err
		}
	}

	item, err := s.items.GetItem(ctx, booking.ItemID)
	if err != nil {
		return nil, err
	}
	if booking.TotalPriceCents == nil {
		if booking.TotalPriceCents, err = pricing.Resolve(nil, item.PriceCents, start, end); err != nil {
			return nil, err
		}
	}

	booking.StartTime, booking.EndTime = start, end
	if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
		return nil, s.translateStoreError(ctx, err, booking.ItemID, start, end, booking.ID)
	}

	s.publishEvent(events.EventBookingUpdated, booking, item, events.ChangedByRenter, actorID)
	s.enqueueSync(ctx, booking)

	return booking, nil
}

// ConfirmBooking applies the payment-success signal. Confirming an already
// confirmed booking is a no-op.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID int64) (booking *models.Booking, err error) {
	defer func() { metrics.IncBooking("confirm", outcome(err)) }()

	booking, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.StatusConfirmed {
		return booking, nil
	}
	if err := s.transition(ctx, booking, models.StatusConfirmed); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingConfirmed, booking, nil, events.ChangedByPayment, 0)
	s.enqueueSync(ctx, booking)
	return booking, nil
}

// CancelBooking is allowed to the renter and to the item owner.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, actorID int64) (booking *models.Booking, err error) {
	defer func() { metrics.IncBooking("cancel", outcome(err)) }()

	booking, item, err := s.loadWithItem(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	changedBy := events.ChangedByRenter
	switch actorID {
	case booking.RenterID:
	case item.OwnerID:
		changedBy = events.ChangedByOwner
	default:
		return nil, domain.ErrForbidden
	}

	if err := s.transition(ctx, booking, models.StatusCanceled); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCanceled, booking, item, changedBy, actorID)
	s.enqueueSync(ctx, booking)
	return booking, nil
}

// CompleteBooking is allowed to the item owner only.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID, actorID int64) (booking *models.Booking, err error) {
	defer func() { metrics.IncBooking("complete", outcome(err)) }()

	booking, item, err := s.loadWithItem(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != item.OwnerID {
		return nil, domain.ErrForbidden
	}

	if err := s.transition(ctx, booking, models.StatusCompleted); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCompleted, booking, item, events.ChangedByOwner, actorID)
	s.enqueueSync(ctx, booking)
	return booking, nil
}

// GetBooking returns the booking to its renter or the item owner.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, actorID int64) (*models.Booking, error) {
	booking, item, err := s.loadWithItem(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != booking.RenterID && actorID != item.OwnerID {
		return nil, domain.ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, actorID int64) ([]*models.Booking, error) {
	return s.bookings.ListBookingsByRenter(ctx, actorID)
}

// ListItemBookings returns every booking of an item to its owner.
func (s *BookingService) ListItemBookings(ctx context.Context, itemID, actorID int64) ([]*models.Booking, error) {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != actorID {
		return nil, domain.ErrForbidden
	}
	return s.bookings.ListBookingsByItem(ctx, itemID)
}

// CompleteFinished moves confirmed bookings whose range ended by now to completed.
func (s *BookingService) CompleteFinished(ctx context.Context, now time.Time) (int, error) {
	finished, err := s.bookings.FindFinishedBookings(ctx, now)
	if err != nil {
		return 0, err
	}
	return s.sweep(ctx, finished, models.StatusCompleted, events.EventBookingCompleted), nil
}

// ExpireStalePending cancels pending bookings created before the cutoff that
// were never paid.
func (s *BookingService) ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.bookings.FindStalePendingBookings(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	return s.sweep(ctx, stale, models.StatusCanceled, events.EventBookingCanceled), nil
}

func (s *BookingService) sweep(ctx context.Context, bookings []*models.Booking, to, eventType string) int {
	done := 0
	for _, b := range bookings {
		if ctx.Err() != nil {
			break
		}
		if err := s.transition(ctx, b, to); err != nil {
			// a concurrent user action won; the next run sees the new state
			s.logger.Warn().Err(err).Int64("booking_id", b.ID).Str("to", to).Msg("scheduled transition skipped")
			continue
		}
		done++
		metrics.IncBooking("scheduled_"+to, "ok")
		s.publishEvent(eventType, b, nil, events.ChangedBySystem, 0)
		s.enqueueSync(ctx, b)
	}
	return done
}

// transition validates the status graph and writes the new status with the
// booking's version as a compare-and-set.
func (s *BookingService) transition(ctx context.Context, booking *models.Booking, to string) error {
	if !models.CanTransition(booking.Status, to) {
		return &domain.TransitionError{From: booking.Status, To: to}
	}

	prev := booking.Status
	booking.Status = to
	if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
		booking.Status = prev
		if errors.Is(err, domain.ErrConstraintViolation) {
			return s.translateStoreError(ctx, err, booking.ItemID, booking.StartTime, booking.EndTime, booking.ID)
		}
		return err
	}
	return nil
}

func (s *BookingService) loadWithItem(ctx context.Context, bookingID int64) (*models.Booking, *models.Item, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.items.GetItem(ctx, booking.ItemID)
	if err != nil {
		return nil, nil, err
	}
	return booking, item, nil
}

// translateStoreError turns a lost race at the store's range-exclusion
// constraint into an OverlapError naming the bookings that won.
func (s *BookingService) translateStoreError(ctx context.Context, err error, itemID int64, start, end time.Time, excludeID int64) error {
	if !errors.Is(err, domain.ErrConstraintViolation) {
		return err
	}
	metrics.IncOverlap("store")

	ids, qerr := s.checker.Conflicts(ctx, itemID, start, end, excludeID)
	if qerr != nil {
		s.logger.Error().Err(qerr).Int64("item_id", itemID).Msg("reload conflicting bookings")
	}
	return &domain.OverlapError{ConflictingIDs: ids}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, item *models.Item, changedBy string, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:       booking.ID,
		ItemID:          booking.ItemID,
		RenterID:        booking.RenterID,
		Status:          booking.Status,
		StartTime:       booking.StartTime,
		EndTime:         booking.EndTime,
		TotalPriceCents: booking.TotalPriceCents,
		ChangedBy:       changedBy,
		ChangedByID:     changedByID,
	}
	if item != nil {
		payload.ItemTitle = item.Title
		payload.OwnerID = item.OwnerID
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, syncTaskUpsert, booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", syncTaskUpsert).Msg("sheets enqueue error")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, domain.ErrOverlapConflict):
		return "overlap"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrItemUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
