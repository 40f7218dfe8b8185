package application

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"github.com/trailpaws/service-reservation/internal/domain/inventory"
	"github.com/trailpaws/service-reservation/internal/domain/quotation"
	"github.com/trailpaws/service-reservation/internal/payments"
	"go.uber.org/zap"
)

// StartCheckoutInput holds the data needed to open a payment session.
type StartCheckoutInput struct {
	SlotID        uuid.UUID `json:"slot_id" binding:"required"`
	ProductName   string    `json:"product_name" binding:"required"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email" binding:"required,email"`
	CustomerPhone string    `json:"customer_phone"`
	Adults        int       `json:"adults" binding:"required,min=1"`
	Dogs          int       `json:"dogs" binding:"min=0"`
	AmountCents   int64     `json:"amount_cents" binding:"required,min=0"`
	Currency      string    `json:"currency" binding:"required,len=3"`
}

// CheckoutDTO is the response representation of an opened session.
type CheckoutDTO struct {
	SessionID   string    `json:"session_id"`
	SessionURL  string    `json:"session_url"`
	QuotationID uuid.UUID `json:"quotation_id"`
}

// CheckoutStatusDTO reports where a payment session stands: awaiting payment
// until the reconciler links a booking, then the booking's own status.
type CheckoutStatusDTO struct {
	SessionID   string     `json:"session_id"`
	QuotationID uuid.UUID  `json:"quotation_id"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty"`
	OrderNumber string     `json:"order_number,omitempty"`
	Status      string     `json:"status"`
}

// CheckoutStatusAwaitingPayment is reported while no booking exists yet for
// the session.
const CheckoutStatusAwaitingPayment = "awaiting_payment"

// CheckoutService opens external payment sessions for quoted bookings.
// No capacity is reserved here: only the reconciler reserves, once payment
// completes.
type CheckoutService struct {
	slots    inventory.Repository
	quotes   quotation.Repository
	bookings bookingDomain.Repository
	gateway  payments.Gateway
	logger   *zap.Logger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	slots inventory.Repository,
	quotes quotation.Repository,
	bookings bookingDomain.Repository,
	gateway payments.Gateway,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{slots: slots, quotes: quotes, bookings: bookings, gateway: gateway, logger: logger}
}

// StartCheckout validates the slot, records a quotation and opens the hosted
// payment session. The session metadata carries everything the reconciler
// needs to rebuild the booking intent when the completion event arrives.
func (s *CheckoutService) StartCheckout(ctx context.Context, in StartCheckoutInput) (*CheckoutDTO, error) {
	slot, err := s.slots.FindByID(ctx, in.SlotID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.NewInvalidSlotError(in.SlotID.String())
		}
		return nil, err
	}

	// Display-level capacity check only; a race here is caught by the
	// conditional reserve at reconciliation time.
	if !slot.Fits(in.Adults, in.Dogs) {
		return nil, domain.NewSlotFullError(slot.ID.String())
	}

	quote, err := quotation.New(slot.ID, slot.ProductID, in.CustomerEmail, in.Adults, in.Dogs, in.AmountCents, in.Currency)
	if err != nil {
		return nil, err
	}
	if err := s.quotes.Create(ctx, quote); err != nil {
		return nil, err
	}

	ref, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutSessionParams{
		ProductName:   in.ProductName,
		AmountCents:   in.AmountCents,
		Currency:      in.Currency,
		CustomerEmail: in.CustomerEmail,
		Metadata: map[string]string{
			metaSlotID:      slot.ID.String(),
			metaProductID:   slot.ProductID.String(),
			metaAdults:      strconv.Itoa(in.Adults),
			metaDogs:        strconv.Itoa(in.Dogs),
			metaName:        in.CustomerName,
			metaPhone:       in.CustomerPhone,
			metaQuotationID: quote.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.quotes.AttachSession(ctx, quote.ID, ref.ID); err != nil {
		// The session exists either way; the quotation link is best-effort
		// and the reconciler tolerates a missing one.
		s.logger.Warn("failed to attach session to quotation",
			zap.String("quotation_id", quote.ID.String()),
			zap.String("session_id", ref.ID),
			zap.Error(err),
		)
	}

	return &CheckoutDTO{
		SessionID:   ref.ID,
		SessionURL:  ref.URL,
		QuotationID: quote.ID,
	}, nil
}

// GetCheckoutStatus resolves a payment session for the post-payment return
// page, which only knows the session id the provider put in the redirect URL.
func (s *CheckoutService) GetCheckoutStatus(ctx context.Context, sessionID string) (*CheckoutStatusDTO, error) {
	quote, err := s.quotes.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	out := &CheckoutStatusDTO{
		SessionID:   sessionID,
		QuotationID: quote.ID,
		Status:      CheckoutStatusAwaitingPayment,
	}
	if quote.BookingID == nil {
		return out, nil
	}

	bk, err := s.bookings.FindByID(ctx, *quote.BookingID)
	if err != nil {
		return nil, err
	}
	id := bk.ID()
	out.BookingID = &id
	out.OrderNumber = bk.OrderNumber()
	out.Status = string(bk.Status())
	return out, nil
}
