package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"github.com/trailpaws/service-reservation/internal/domain/cancellation"
	"github.com/trailpaws/service-reservation/internal/events"
	"github.com/trailpaws/service-reservation/internal/payments"
	"go.uber.org/zap"
)

// CancellationDTO is the response representation of a cancellation request.
type CancellationDTO struct {
	ID          uuid.UUID  `json:"id"`
	BookingID   uuid.UUID  `json:"booking_id"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	RequestedBy string     `json:"requested_by"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedBy   string     `json:"decided_by,omitempty"`
	AdminNotes  string     `json:"admin_notes,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// CancellationService runs the cancellation-request state machine: customer
// intake, admin decision, capacity release and refund trigger.
type CancellationService struct {
	requests  cancellation.Repository
	bookings  bookingDomain.Repository
	gateway   payments.Gateway
	publisher events.Publisher
	logger    *zap.Logger
}

// NewCancellationService creates a new CancellationService.
func NewCancellationService(
	requests cancellation.Repository,
	bookings bookingDomain.Repository,
	gateway payments.Gateway,
	publisher events.Publisher,
	logger *zap.Logger,
) *CancellationService {
	return &CancellationService{
		requests:  requests,
		bookings:  bookings,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
	}
}

// RequestCancellation opens a pending request against a confirmed booking.
// It touches neither inventory nor booking status; only an approval does.
func (s *CancellationService) RequestCancellation(ctx context.Context, bookingID uuid.UUID, reason, requestedBy string) (*CancellationDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.Status() != bookingDomain.StatusConfirmed {
		return nil, domain.NewInvalidStateError(string(bk.Status()), "cancellation_requested")
	}

	if existing, err := s.requests.FindPendingByBookingID(ctx, bookingID); err == nil {
		// One open request per booking; resubmission returns the original.
		result := toCancellationDTO(existing)
		return &result, nil
	} else if !domain.IsCode(err, domain.CodeNotFound) {
		return nil, err
	}

	req, err := cancellation.NewRequest(bookingID, reason, requestedBy)
	if err != nil {
		return nil, err
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	result := toCancellationDTO(req)
	return &result, nil
}

// Decide applies an admin decision to a pending request. Approval cancels the
// booking, releases its capacity exactly once and triggers a refund; both the
// refund and the customer notification are best-effort side effects.
func (s *CancellationService) Decide(ctx context.Context, requestID uuid.UUID, action cancellation.Action, decidedBy, notes string) (*CancellationDTO, error) {
	if !action.IsValid() {
		return nil, domain.NewValidationError("action must be approve or reject")
	}

	decision := cancellation.Decision{DecidedBy: decidedBy, AdminNotes: notes}
	switch action {
	case cancellation.ActionApprove:
		if err := s.requests.Approve(ctx, requestID, decision); err != nil {
			return nil, err
		}
	case cancellation.ActionReject:
		if err := s.requests.Reject(ctx, requestID, decision); err != nil {
			return nil, err
		}
	}

	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if action == cancellation.ActionApprove {
		s.refundBooking(ctx, req.BookingID)
	}
	s.notifyDecision(ctx, req, action)

	result := toCancellationDTO(req)
	return &result, nil
}

// ListRequests retrieves cancellation requests in a status with pagination.
func (s *CancellationService) ListRequests(ctx context.Context, status cancellation.RequestStatus, page, limit int) ([]CancellationDTO, int64, error) {
	requests, total, err := s.requests.ListByStatus(ctx, status, page, limit)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]CancellationDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toCancellationDTO(req)
	}
	return dtos, total, nil
}

// refundBooking triggers the provider refund. Best-effort: a failure is
// logged for the operators, never unwound into the decision.
func (s *CancellationService) refundBooking(ctx context.Context, bookingID uuid.UUID) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		s.logger.Error("failed to load booking for refund",
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
		return
	}
	intentID := bk.Payment().PaymentIntentID
	if intentID == "" {
		s.logger.Warn("booking has no payment intent, skipping refund",
			zap.String("booking_id", bookingID.String()),
		)
		return
	}
	if err := s.gateway.Refund(ctx, intentID); err != nil {
		s.logger.Error("refund failed",
			zap.String("booking_id", bookingID.String()),
			zap.String("payment_intent_id", intentID),
			zap.Error(err),
		)
	}
}

func (s *CancellationService) notifyDecision(ctx context.Context, req *cancellation.Request, action cancellation.Action) {
	evt := events.CancellationDecidedEvent{
		RequestID:  req.ID,
		BookingID:  req.BookingID,
		Action:     string(action),
		DecidedBy:  req.DecidedBy,
		OccurredAt: time.Now().UTC(),
	}
	publishEvent(ctx, s.publisher, s.logger, events.TopicReservationEvents, events.CancellationDecided, evt)

	notify := events.NotificationRequestedEvent{
		Recipient:  req.RequestedBy,
		Template:   "cancellation_" + string(req.Status),
		BookingID:  req.BookingID,
		OccurredAt: time.Now().UTC(),
	}
	publishEvent(ctx, s.publisher, s.logger, events.TopicNotificationEvents, events.NotificationRequested, notify)
}

func toCancellationDTO(req *cancellation.Request) CancellationDTO {
	return CancellationDTO{
		ID:          req.ID,
		BookingID:   req.BookingID,
		Reason:      req.Reason,
		Status:      string(req.Status),
		RequestedBy: req.RequestedBy,
		RequestedAt: req.RequestedAt,
		DecidedBy:   req.DecidedBy,
		AdminNotes:  req.AdminNotes,
		DecidedAt:   req.DecidedAt,
	}
}
