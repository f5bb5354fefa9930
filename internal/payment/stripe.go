// Package payment creates hosted checkout sessions and verifies the
// provider's webhook callbacks.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"renit/internal/config"
	"renit/internal/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type sessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeProvider implements domain.PaymentProvider on Stripe Checkout.
type StripeProvider struct {
	newSession    sessionCreator
	webhookSecret string
	currency      string
	successURL    string
	cancelURL     string
}

func NewStripeProvider(cfg config.PaymentConfig) *StripeProvider {
	client := session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	return &StripeProvider{
		newSession:    client.New,
		webhookSecret: cfg.WebhookSecret,
		currency:      cfg.Currency,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	bookingRef := strconv.FormatInt(req.BookingID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
		ClientReferenceID: stripe.String(bookingRef),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ItemTitle),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("booking_id", bookingRef)

	s, err := p.newSession(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &models.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the booking
// reference from checkout session events.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*models.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &models.PaymentEvent{Type: string(event.Type)}
	if out.Type != models.PaymentEventCheckoutCompleted {
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	ref := cs.ClientReferenceID
	if ref == "" {
		ref = cs.Metadata["booking_id"]
	}
	bookingID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("checkout session %s has no booking reference: %w", cs.ID, err)
	}

	out.SessionID = cs.ID
	out.BookingID = bookingID
	out.Paid = cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	return out, nil
}
