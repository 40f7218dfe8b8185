package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"github.com/trailpaws/service-reservation/internal/events"
)

func TestCompleteExpiredBookings_CompletesOnlyElapsedConfirmed(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(10, 5)
	ctx := context.Background()

	past := confirmedBooking(t, f, slot)
	pending, err := f.bookingSvc.CreateBooking(ctx, validCreateInput(slot))
	require.NoError(t, err)

	// The slot date is tomorrow, so the stay has not elapsed yet.
	n, err := f.sweepSvc.CompleteExpiredBookings(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	cutoff := time.Now().UTC().Add(48 * time.Hour)
	n, err = f.sweepSvc.CompleteExpiredBookings(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	completed, err := f.bookingSvc.GetBooking(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusCompleted), completed.Status)

	// Pending bookings are never swept; payment may still arrive.
	still, err := f.bookingSvc.GetBooking(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusPending), still.Status)
}

func TestCompleteExpiredBookings_Converges(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(10, 5)
	ctx := context.Background()
	confirmedBooking(t, f, slot)

	cutoff := time.Now().UTC().Add(48 * time.Hour)
	n, err := f.sweepSvc.CompleteExpiredBookings(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// A second run over the same window finds nothing.
	n, err = f.sweepSvc.CompleteExpiredBookings(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	assert.Len(t, f.publisher.byType(events.BookingsCompleted), 1)
}
