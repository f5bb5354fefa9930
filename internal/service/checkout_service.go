package service

import (
	"context"
	"errors"
	"fmt"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/rs/zerolog"
)

// CheckoutService starts hosted payments for pending bookings and turns
// verified payment webhooks into confirmations.
type CheckoutService struct {
	bookings domain.BookingStore
	items    domain.ItemStore
	provider domain.PaymentProvider
	confirm  func(ctx context.Context, bookingID int64) (*models.Booking, error)
	logger   *zerolog.Logger
}

func NewCheckoutService(bookings domain.BookingStore, items domain.ItemStore, provider domain.PaymentProvider, bookingService *BookingService, logger *zerolog.Logger) *CheckoutService {
	return &CheckoutService{
		bookings: bookings,
		items:    items,
		provider: provider,
		confirm:  bookingService.ConfirmBooking,
		logger:   logger,
	}
}

// CreateCheckoutSession opens a hosted checkout for the renter's pending
// booking. The booking stays pending until the provider reports payment.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, actorID, bookingID int64) (*models.CheckoutSession, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RenterID != actorID {
		return nil, domain.ErrForbidden
	}
	if booking.Status != models.StatusPending {
		return nil, fmt.Errorf("booking %d is %s: %w", booking.ID, booking.Status, domain.ErrInvalidTransition)
	}
	if booking.TotalPriceCents == nil || *booking.TotalPriceCents <= 0 {
		return nil, domain.InvalidInput("booking %d has no payable total", booking.ID)
	}

	item, err := s.items.GetItem(ctx, booking.ItemID)
	if err != nil {
		return nil, err
	}

	session, err := s.provider.CreateCheckoutSession(ctx, models.CheckoutRequest{
		BookingID:   booking.ID,
		ItemTitle:   item.Title,
		AmountCents: *booking.TotalPriceCents,
	})
	if err != nil {
		return nil, err
	}

	booking.CheckoutSessionID = session.ID
	if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("booking_id", booking.ID).Str("session_id", session.ID).Msg("checkout session created")
	return session, nil
}

// HandleWebhook verifies and applies a provider callback. A nil error means
// the callback should be acknowledged; failures worth a provider retry are
// returned.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	log := s.logger.With().Str("event_type", ev.Type).Int64("booking_id", ev.BookingID).Logger()

	if ev.Type != models.PaymentEventCheckoutCompleted {
		log.Debug().Msg("payment event ignored")
		return nil
	}
	if !ev.Paid {
		log.Info().Msg("checkout completed without payment")
		return nil
	}

	// any paid session for the booking confirms it, even one a later checkout replaced
	booking, err := s.confirm(ctx, ev.BookingID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
			// paid after cancellation or expiry; needs a manual refund
			log.Error().Err(err).Msg("payment received for booking that cannot be confirmed")
			return nil
		default:
			return err
		}
	}

	if ev.SessionID != "" && booking.CheckoutSessionID != ev.SessionID {
		log.Info().Str("session_id", ev.SessionID).Str("latest_session_id", booking.CheckoutSessionID).
			Msg("booking paid through an earlier checkout session")
	}
	log.Info().Msg("booking confirmed by payment")
	return nil
}
