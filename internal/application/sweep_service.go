package application

import (
	"context"
	"time"

	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"github.com/trailpaws/service-reservation/internal/events"
	"go.uber.org/zap"
)

// SweepService advances confirmed bookings to completed once their end date
// has elapsed. Safe to run on any schedule: overlapping runs converge because
// the status filter excludes already-completed rows.
type SweepService struct {
	bookings  bookingDomain.Repository
	publisher events.Publisher
	logger    *zap.Logger
}

// NewSweepService creates a new SweepService.
func NewSweepService(bookings bookingDomain.Repository, publisher events.Publisher, logger *zap.Logger) *SweepService {
	return &SweepService{bookings: bookings, publisher: publisher, logger: logger}
}

// CompleteExpiredBookings transitions all confirmed bookings with an end date
// before asOf to completed and returns how many rows transitioned. A zero
// asOf means now.
func (s *SweepService) CompleteExpiredBookings(ctx context.Context, asOf time.Time) (int64, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	count, err := s.bookings.CompleteExpired(ctx, asOf)
	if err != nil {
		return 0, err
	}

	s.logger.Info("completion sweep finished",
		zap.Time("as_of", asOf),
		zap.Int64("transitions", count),
	)

	if count > 0 {
		evt := events.SweepCompletedEvent{
			AsOf:        asOf,
			Transitions: count,
			OccurredAt:  time.Now().UTC(),
		}
		publishEvent(ctx, s.publisher, s.logger, events.TopicReservationEvents, events.BookingsCompleted, evt)
	}
	return count, nil
}
