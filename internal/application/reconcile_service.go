package application

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"github.com/trailpaws/service-reservation/internal/domain/quotation"
	"github.com/trailpaws/service-reservation/internal/events"
	"github.com/trailpaws/service-reservation/internal/payments"
	"go.uber.org/zap"
)

// Metadata keys written at checkout and echoed back on the completion event.
const (
	metaSlotID      = "slot_id"
	metaProductID   = "product_id"
	metaAdults      = "adults"
	metaDogs        = "dogs"
	metaName        = "customer_name"
	metaPhone       = "customer_phone"
	metaQuotationID = "quotation_id"
)

// Legacy custom-field keys from checkout pages that predate session metadata.
const (
	legacySlotID = "booking_slot"
	legacyAdults = "booking_adults"
	legacyDogs   = "booking_dogs"
)

// bookingIntent is the single strongly-typed structure a payment event is
// resolved into at the boundary, whichever extraction path produced it.
type bookingIntent struct {
	ProductID uuid.UUID
	SlotID    uuid.UUID
	Party     bookingDomain.PartySize
	Customer  bookingDomain.Customer
}

// SideEffect is the explicit outcome of a best-effort secondary step. It is
// structurally separate from the primary result so a failure here can never
// fail the webhook.
type SideEffect struct {
	Name string
	Err  error
}

// Ok reports whether the side effect succeeded.
func (s SideEffect) Ok() bool { return s.Err == nil }

// ReconcileService matches payment-completed notifications to bookings,
// creating one exactly once per payment session.
type ReconcileService struct {
	bookings   bookingDomain.Repository
	quotes     quotation.Repository
	bookingSvc *BookingService
	publisher  events.Publisher
	logger     *zap.Logger
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(
	bookings bookingDomain.Repository,
	quotes quotation.Repository,
	bookingSvc *BookingService,
	publisher events.Publisher,
	logger *zap.Logger,
) *ReconcileService {
	return &ReconcileService{
		bookings:   bookings,
		quotes:     quotes,
		bookingSvc: bookingSvc,
		publisher:  publisher,
		logger:     logger,
	}
}

// HandlePaymentCompleted reconciles a completed payment session with local
// state. The session id, not the event id, is the idempotency key: a session
// may emit more than one event, and every one of them must resolve to the
// same booking. A non-nil return means the provider should redeliver; it is
// only returned for infrastructure failures, where redelivery is safe because
// the next delivery deduplicates.
func (s *ReconcileService) HandlePaymentCompleted(ctx context.Context, evt *payments.CompletedSession) error {
	if evt.SessionID == "" {
		return domain.NewValidationError("payment event has no session id")
	}

	log := s.logger.With(
		zap.String("session_id", evt.SessionID),
		zap.String("event_id", evt.EventID),
	)

	existing, err := s.bookings.FindBySessionID(ctx, evt.SessionID)
	if err == nil {
		// Duplicate delivery: the booking exists, creation is a no-op.
		// Reconcile secondary state and acknowledge.
		if existing.Status() == bookingDomain.StatusPending {
			if err := s.bookings.Confirm(ctx, existing.ID(), evt.PaymentIntentID); err != nil {
				return err
			}
		}
		s.logSideEffects(log, s.reconcileSecondary(ctx, existing.ID(), existing.Customer().Email, evt.SessionID))
		log.Info("duplicate payment delivery reconciled", zap.String("booking_id", existing.ID().String()))
		return nil
	}
	if !domain.IsCode(err, domain.CodeNotFound) {
		return err
	}

	intent, err := resolveIntent(evt)
	if err != nil {
		// Malformed intent never improves on redelivery.
		log.Error("payment completed but intent could not be resolved", zap.Error(err))
		return nil
	}

	dto, err := s.bookingSvc.CreateBooking(ctx, CreateBookingInput{
		IdempotencyKey: evt.SessionID,
		ProductID:      intent.ProductID,
		SlotID:         intent.SlotID,
		Customer:       intent.Customer,
		Party:          intent.Party,
		AmountCents:    evt.AmountTotal,
		Currency:       evt.Currency,
		Payment: bookingDomain.PaymentRefs{
			CheckoutSessionID: evt.SessionID,
			PaymentIntentID:   evt.PaymentIntentID,
		},
		Initial: bookingDomain.StatusConfirmed,
	})
	if err != nil {
		switch domain.CodeOf(err) {
		case domain.CodeSlotFull, domain.CodeInvalidSlot, domain.CodeValidation:
			// The customer paid but no booking could be created. This needs a
			// human; redelivering the event would replay the same failure.
			log.Error("payment completed but booking creation failed terminally", zap.Error(err))
			return nil
		case domain.CodeConflict:
			// A concurrent delivery holds the key; it will finish the job.
			log.Warn("payment reconciliation in flight elsewhere", zap.Error(err))
			return nil
		default:
			return err
		}
	}

	s.logSideEffects(log, s.reconcileSecondary(ctx, dto.ID, dto.Customer.Email, evt.SessionID))
	s.publishConfirmed(ctx, dto)

	log.Info("payment session reconciled",
		zap.String("booking_id", dto.ID.String()),
		zap.String("order_number", dto.OrderNumber),
	)
	return nil
}

// reconcileSecondary runs the best-effort steps. Each is independently
// fault-isolated; failures are reported as results, never as errors.
func (s *ReconcileService) reconcileSecondary(ctx context.Context, bookingID uuid.UUID, customerEmail, sessionID string) []SideEffect {
	effects := make([]SideEffect, 0, 2)

	err := s.quotes.LinkBooking(ctx, sessionID, bookingID)
	if domain.IsCode(err, domain.CodeNotFound) {
		err = nil // direct API bookings have no quotation
	}
	effects = append(effects, SideEffect{Name: "link_quotation", Err: err})

	notifyErr := func() error {
		evt, err := events.NewCloudEvent(eventSource, events.NotificationRequested, events.NotificationRequestedEvent{
			Recipient:  customerEmail,
			Template:   "booking_confirmed",
			BookingID:  bookingID,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return s.publisher.PublishEvent(ctx, events.TopicNotificationEvents, evt)
	}()
	effects = append(effects, SideEffect{Name: "notify_customer", Err: notifyErr})

	return effects
}

func (s *ReconcileService) logSideEffects(log *zap.Logger, effects []SideEffect) {
	for _, e := range effects {
		if e.Ok() {
			continue
		}
		log.Warn("secondary reconciliation step failed",
			zap.String("step", e.Name),
			zap.Error(e.Err),
		)
	}
}

func (s *ReconcileService) publishConfirmed(ctx context.Context, dto *BookingDTO) {
	evt := events.BookingEvent{
		BookingID:     dto.ID,
		OrderNumber:   dto.OrderNumber,
		SlotID:        dto.SlotID,
		CustomerEmail: dto.Customer.Email,
		Adults:        dto.Party.Adults,
		Dogs:          dto.Party.Dogs,
		AmountCents:   dto.AmountCents,
		Currency:      dto.Currency,
		Status:        dto.Status,
		OccurredAt:    time.Now().UTC(),
	}
	publishEvent(ctx, s.publisher, s.logger, events.TopicReservationEvents, events.BookingConfirmed, evt)
}

// resolveIntent extracts the booking intent from the event, once, at the
// boundary. Session metadata is the primary path; the legacy custom-field
// shape is the fallback. Exactly one path is used.
func resolveIntent(evt *payments.CompletedSession) (*bookingIntent, error) {
	if _, ok := evt.Metadata[metaSlotID]; ok {
		return intentFromMetadata(evt)
	}
	if _, ok := evt.CustomFields[legacySlotID]; ok {
		return intentFromCustomFields(evt)
	}
	return nil, domain.NewValidationError("payment event carries no booking intent")
}

func intentFromMetadata(evt *payments.CompletedSession) (*bookingIntent, error) {
	slotID, err := uuid.Parse(evt.Metadata[metaSlotID])
	if err != nil {
		return nil, domain.NewValidationError("malformed slot id in event metadata")
	}
	productID, err := uuid.Parse(evt.Metadata[metaProductID])
	if err != nil {
		return nil, domain.NewValidationError("malformed product id in event metadata")
	}
	adults, err := strconv.Atoi(evt.Metadata[metaAdults])
	if err != nil {
		return nil, domain.NewValidationError("malformed adult count in event metadata")
	}
	dogs := 0
	if raw, ok := evt.Metadata[metaDogs]; ok {
		if dogs, err = strconv.Atoi(raw); err != nil {
			return nil, domain.NewValidationError("malformed dog count in event metadata")
		}
	}

	customer := bookingDomain.Customer{
		Name:  evt.Metadata[metaName],
		Email: evt.CustomerEmail,
		Phone: evt.Metadata[metaPhone],
	}
	if customer.Name == "" {
		customer.Name = evt.CustomerName
	}
	if customer.Phone == "" {
		customer.Phone = evt.CustomerPhone
	}

	return &bookingIntent{
		ProductID: productID,
		SlotID:    slotID,
		Party:     bookingDomain.PartySize{Adults: adults, Dogs: dogs},
		Customer:  customer,
	}, nil
}

func intentFromCustomFields(evt *payments.CompletedSession) (*bookingIntent, error) {
	slotID, err := uuid.Parse(evt.CustomFields[legacySlotID])
	if err != nil {
		return nil, domain.NewValidationError("malformed slot id in legacy custom fields")
	}
	adults, err := strconv.Atoi(evt.CustomFields[legacyAdults])
	if err != nil {
		return nil, domain.NewValidationError("malformed adult count in legacy custom fields")
	}
	dogs := 0
	if raw, ok := evt.CustomFields[legacyDogs]; ok {
		if dogs, err = strconv.Atoi(raw); err != nil {
			return nil, domain.NewValidationError("malformed dog count in legacy custom fields")
		}
	}

	// Legacy checkout pages never carried a product reference; the
	// transaction manager fills it in from the slot.
	return &bookingIntent{
		ProductID: uuid.Nil,
		SlotID:    slotID,
		Party:     bookingDomain.PartySize{Adults: adults, Dogs: dogs},
		Customer: bookingDomain.Customer{
			Name:  evt.CustomerName,
			Email: evt.CustomerEmail,
			Phone: evt.CustomerPhone,
		},
	}, nil
}
