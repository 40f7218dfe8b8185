package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"github.com/trailpaws/service-reservation/internal/domain/inventory"
	"github.com/trailpaws/service-reservation/internal/domain/ledger"
	"github.com/trailpaws/service-reservation/internal/events"
	"go.uber.org/zap"
)

const eventSource = "service-reservation"

// How long a caller waits on an in-flight duplicate before giving up with a
// CONFLICT. The in-flight request might itself have crashed; the ledger's
// lease takeover handles that on a later retry.
const (
	duplicateWaitAttempts = 3
	duplicateWaitBase     = 100 * time.Millisecond
)

// CreateBookingInput holds the data needed to create a new booking.
type CreateBookingInput struct {
	IdempotencyKey string                    `json:"idempotency_key" binding:"required"`
	ProductID      uuid.UUID                 `json:"product_id" binding:"required"`
	SlotID         uuid.UUID                 `json:"slot_id" binding:"required"`
	Customer       bookingDomain.Customer    `json:"customer" binding:"required"`
	Party          bookingDomain.PartySize   `json:"party" binding:"required"`
	AmountCents    int64                     `json:"amount_cents"`
	Currency       string                    `json:"currency"`
	Payment        bookingDomain.PaymentRefs `json:"payment"`

	// Initial is set by the reconciler (confirmed); the direct API leaves it
	// empty and gets a pending booking awaiting payment capture.
	Initial bookingDomain.Status `json:"-"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID             uuid.UUID                 `json:"id"`
	OrderNumber    string                    `json:"order_number"`
	ProductID      uuid.UUID                 `json:"product_id"`
	SlotID         uuid.UUID                 `json:"slot_id"`
	Customer       bookingDomain.Customer    `json:"customer"`
	Party          bookingDomain.PartySize   `json:"party"`
	AmountCents    int64                     `json:"amount_cents"`
	Currency       string                    `json:"currency"`
	Payment        bookingDomain.PaymentRefs `json:"payment"`
	Status         string                    `json:"status"`
	StartDate      time.Time                 `json:"start_date"`
	EndDate        time.Time                 `json:"end_date"`
	CancelledAt    *time.Time                `json:"cancelled_at,omitempty"`
	CancelNote     string                    `json:"cancel_note,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// BookingService is the booking transaction manager: it owns the atomic
// "reserve capacity + create booking + record idempotency outcome" operation.
type BookingService struct {
	bookings  bookingDomain.Repository
	slots     inventory.Repository
	ledger    ledger.Repository
	publisher events.Publisher
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookings bookingDomain.Repository,
	slots inventory.Repository,
	ledgerRepo ledger.Repository,
	publisher events.Publisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		slots:     slots,
		ledger:    ledgerRepo,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateBooking creates a booking exactly once per idempotency key. Replays
// return the cached outcome with no further side effects. Once the reservation
// step begins, the operation runs to a terminal outcome regardless of caller
// cancellation, because an abandoned half-applied reservation would corrupt
// the capacity invariant.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*BookingDTO, error) {
	if in.IdempotencyKey == "" {
		return nil, domain.NewValidationError("idempotency key is required")
	}

	begin, err := s.ledger.BeginOrGet(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if !begin.New {
		return s.replayOutcome(ctx, in.IdempotencyKey, begin.Record)
	}
	if begin.Resumed {
		// The previous holder of this key may have crashed between persisting
		// the booking and committing the ledger outcome. Adopt its booking
		// instead of re-running; re-running would trip the unique key on
		// bookings, or worse, report the slot full against its own reservation.
		bk, err := s.bookings.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			return s.adoptCommitted(ctx, in.IdempotencyKey, bk)
		}
		if !domain.IsCode(err, domain.CodeNotFound) {
			return nil, err
		}
	}

	// The slot read is only for the stay dates; the authoritative capacity
	// and existence check is the conditional update inside the transaction.
	slot, err := s.slots.FindByID(ctx, in.SlotID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, s.commitFailure(ctx, in.IdempotencyKey, domain.NewInvalidSlotError(in.SlotID.String()))
		}
		return nil, err // infra failure: ledger stays non-terminal, retry resumes
	}

	initial := in.Initial
	if initial == "" {
		initial = bookingDomain.StatusPending
	}
	productID := in.ProductID
	if productID == uuid.Nil {
		productID = slot.ProductID
	}
	bk, err := bookingDomain.NewBooking(
		productID,
		in.SlotID,
		in.Customer,
		in.Party,
		in.AmountCents,
		in.Currency,
		in.Payment,
		in.IdempotencyKey,
		initial,
		slot.Date,
		stayEnd(slot),
	)
	if err != nil {
		return nil, s.commitFailure(ctx, in.IdempotencyKey, err)
	}

	// From here on the operation must not be abandoned mid-flight.
	dctx := context.WithoutCancel(ctx)

	if err := s.bookings.CreateWithReservation(dctx, bk); err != nil {
		switch domain.CodeOf(err) {
		case domain.CodeSlotFull, domain.CodeInvalidSlot:
			return nil, s.commitFailure(dctx, in.IdempotencyKey, err)
		case domain.CodeConflict:
			return s.resumeCommitted(dctx, in.IdempotencyKey, err)
		default:
			return nil, err // infra failure: transaction rolled back, ledger non-terminal
		}
	}

	if err := s.ledger.Commit(dctx, in.IdempotencyKey, ledger.Succeeded(bk.ID())); err != nil {
		// The booking exists; the unique key on bookings still protects
		// replays. Surface loudly instead of failing a completed reservation.
		s.logger.Error("failed to commit success outcome to ledger",
			zap.String("idempotency_key", in.IdempotencyKey),
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}

	s.publishBookingEvent(dctx, bk, events.BookingCreated)

	result := toBookingDTO(bk)
	return &result, nil
}

// GetBooking retrieves a single booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBookingByOrderNumber retrieves a single booking by its order number.
func (s *BookingService) GetBookingByOrderNumber(ctx context.Context, number string) (*BookingDTO, error) {
	bk, err := s.bookings.FindByOrderNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetCustomerBookings retrieves paginated bookings for a customer email.
func (s *BookingService) GetCustomerBookings(ctx context.Context, email string, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.bookings.FindByCustomerEmail(ctx, email, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toBookingDTOs(bookings), total, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.bookings.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &BookingStatsDTO{TotalBookings: total, ByStatus: counts}, nil
}

// --- Helpers ---

// replayOutcome resolves a duplicate submission to the original outcome,
// waiting briefly if the original request is still in flight.
func (s *BookingService) replayOutcome(ctx context.Context, key string, rec *ledger.Record) (*BookingDTO, error) {
	var err error
	for attempt := 0; !rec.Status.IsTerminal() && attempt < duplicateWaitAttempts; attempt++ {
		wait := duplicateWaitBase << attempt
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		rec, err = s.ledger.Get(ctx, key)
		if err != nil {
			return nil, err
		}
	}

	switch rec.Status {
	case ledger.StatusSucceeded:
		bk, err := s.bookings.FindByID(ctx, *rec.BookingID)
		if err != nil {
			return nil, err
		}
		result := toBookingDTO(bk)
		return &result, nil
	case ledger.StatusFailed:
		return nil, domain.FromCode(rec.ErrorCode, rec.ErrorMessage)
	default:
		return nil, domain.NewConflictError("a request with this idempotency key is in flight, retry later")
	}
}

// resumeCommitted is the backstop for an insert that tripped the unique key
// on bookings: some holder of the key already persisted a booking without a
// ledger outcome. Resolve the key to that booking, or surface the original
// error when the collision was something else (e.g. an order number clash,
// where a retry mints fresh values).
func (s *BookingService) resumeCommitted(ctx context.Context, key string, cause error) (*BookingDTO, error) {
	bk, err := s.bookings.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, cause
		}
		return nil, err
	}
	return s.adoptCommitted(ctx, key, bk)
}

// adoptCommitted returns a booking left behind by an interrupted creation,
// backfilling the success outcome so later replays resolve from the ledger.
func (s *BookingService) adoptCommitted(ctx context.Context, key string, bk *bookingDomain.Booking) (*BookingDTO, error) {
	if err := s.ledger.Commit(ctx, key, ledger.Succeeded(bk.ID())); err != nil && !domain.IsCode(err, domain.CodeConflict) {
		s.logger.Error("failed to backfill ledger outcome for resumed booking",
			zap.String("idempotency_key", key),
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}

	s.logger.Info("resumed booking from interrupted creation",
		zap.String("idempotency_key", key),
		zap.String("booking_id", bk.ID().String()),
	)
	result := toBookingDTO(bk)
	return &result, nil
}

// commitFailure records a terminal failure outcome, then returns the original
// error so the caller and every replay observe the same result.
func (s *BookingService) commitFailure(ctx context.Context, key string, cause error) error {
	code := domain.CodeOf(cause)
	if code == "" {
		code = domain.CodeValidation
	}
	if err := s.ledger.Commit(ctx, key, ledger.Failed(code, cause.Error())); err != nil {
		s.logger.Error("failed to commit failure outcome to ledger",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
	}
	return cause
}

func (s *BookingService) publishBookingEvent(ctx context.Context, bk *bookingDomain.Booking, eventType string) {
	evt := events.BookingEvent{
		BookingID:     bk.ID(),
		OrderNumber:   bk.OrderNumber(),
		SlotID:        bk.SlotID(),
		CustomerEmail: bk.Customer().Email,
		Adults:        bk.Party().Adults,
		Dogs:          bk.Party().Dogs,
		AmountCents:   bk.AmountCents(),
		Currency:      bk.Currency(),
		Status:        string(bk.Status()),
		OccurredAt:    time.Now().UTC(),
	}
	publishEvent(ctx, s.publisher, s.logger, events.TopicReservationEvents, eventType, evt)
}

// publishEvent wraps data in a CloudEvent and publishes it, logging rather
// than propagating failures.
func publishEvent(ctx context.Context, publisher events.Publisher, logger *zap.Logger, topic, eventType string, data interface{}) {
	cloudEvent, err := events.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	if err := publisher.PublishEvent(ctx, topic, cloudEvent); err != nil {
		logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// stayEnd returns the last day of the stay for a slot. Day tours end the day
// they start; overnight stays end the following day.
func stayEnd(slot *inventory.Slot) time.Time {
	if slot.ProductKind == inventory.KindStay {
		return slot.Date.AddDate(0, 0, 1)
	}
	return slot.Date
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:          bk.ID(),
		OrderNumber: bk.OrderNumber(),
		ProductID:   bk.ProductID(),
		SlotID:      bk.SlotID(),
		Customer:    bk.Customer(),
		Party:       bk.Party(),
		AmountCents: bk.AmountCents(),
		Currency:    bk.Currency(),
		Payment:     bk.Payment(),
		Status:      string(bk.Status()),
		StartDate:   bk.StartDate(),
		EndDate:     bk.EndDate(),
		CancelledAt: bk.CancelledAt(),
		CancelNote:  bk.CancelNote(),
		CreatedAt:   bk.CreatedAt(),
		UpdatedAt:   bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}
