package models

// CheckoutRequest describes the single line item of a hosted checkout session.
type CheckoutRequest struct {
	BookingID   int64
	ItemTitle   string
	AmountCents int64
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

const PaymentEventCheckoutCompleted = "checkout.session.completed"

// PaymentEvent is the provider-neutral form of a verified webhook.
type PaymentEvent struct {
	Type      string
	SessionID string
	BookingID int64
	Paid      bool
}
