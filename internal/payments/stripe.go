// Package payments wraps the external payment provider. The engine only ever
// sees a payment-session abstraction: open a checkout session, verify and
// parse the completion webhook, refund a captured payment.
package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
)

// CheckoutSessionParams describes the session to open for a quoted booking.
type CheckoutSessionParams struct {
	ProductName   string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	// Metadata is echoed back verbatim on the completion event; the
	// reconciler rebuilds the booking intent from it.
	Metadata map[string]string
}

// CheckoutSessionRef identifies an opened session.
type CheckoutSessionRef struct {
	ID  string
	URL string
}

// CompletedSession is the strongly-typed view of a payment-completed
// notification, resolved once at the boundary.
type CompletedSession struct {
	EventID         string
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	// Metadata is the primary intent source (new flow).
	Metadata map[string]string
	// CustomFields is the legacy fallback source, used only when Metadata
	// carries no booking intent.
	CustomFields map[string]string
}

// Gateway is the payment-provider contract the services depend on.
type Gateway interface {
	// CreateCheckoutSession opens a hosted payment session.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSessionRef, error)

	// Refund refunds the captured payment for a payment intent.
	Refund(ctx context.Context, paymentIntentID string) error
}

// StripeGateway is the stripe-go implementation of Gateway.
type StripeGateway struct{}

// NewStripeGateway creates a gateway. The stripe API key is set globally in
// main via stripe.Key.
func NewStripeGateway() *StripeGateway {
	return &StripeGateway{}
}

// CreateCheckoutSession opens a Stripe Checkout Session in payment mode.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSessionRef, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(p.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSessionRef{ID: s.ID, URL: s.URL}, nil
}

// Refund refunds the captured payment for a payment intent.
func (g *StripeGateway) Refund(ctx context.Context, paymentIntentID string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("failed to refund payment intent %s: %w", paymentIntentID, err)
	}
	return nil
}

// ParseWebhookEvent verifies the provider signature and, for a
// checkout.session.completed event, resolves it into a CompletedSession.
// Other event types yield (nil, nil) and are acknowledged without processing.
// A signature or envelope failure is a boundary rejection: the event never
// reaches the reconciliation logic.
func ParseWebhookEvent(payload []byte, sigHeader, secret string) (*CompletedSession, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, secret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return nil, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session payload: %w", err)
	}

	completed := &CompletedSession{
		EventID:     event.ID,
		SessionID:   cs.ID,
		AmountTotal: cs.AmountTotal,
		Currency:    string(cs.Currency),
		Metadata:    cs.Metadata,
	}
	if cs.PaymentIntent != nil {
		completed.PaymentIntentID = cs.PaymentIntent.ID
	}
	if cs.CustomerDetails != nil {
		completed.CustomerName = cs.CustomerDetails.Name
		completed.CustomerEmail = cs.CustomerDetails.Email
		completed.CustomerPhone = cs.CustomerDetails.Phone
	}
	if len(cs.CustomFields) > 0 {
		completed.CustomFields = make(map[string]string, len(cs.CustomFields))
		for _, f := range cs.CustomFields {
			if f == nil || f.Text == nil {
				continue
			}
			completed.CustomFields[f.Key] = f.Text.Value
		}
	}
	return completed, nil
}
