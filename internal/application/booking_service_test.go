package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trailpaws/service-reservation/internal/domain"
	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"github.com/trailpaws/service-reservation/internal/domain/ledger"
	"github.com/trailpaws/service-reservation/internal/events"
)

func TestCreateBooking_ReservesCapacityAndPublishes(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(10, 5)
	ctx := context.Background()

	dto, err := f.bookingSvc.CreateBooking(ctx, validCreateInput(slot))
	require.NoError(t, err)

	assert.Equal(t, string(bookingDomain.StatusPending), dto.Status)
	assert.NotEmpty(t, dto.OrderNumber)
	assert.Equal(t, slot.ID, dto.SlotID)

	stored, err := f.slots.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.BookedAdults)
	assert.Equal(t, 1, stored.BookedDogs)

	created := f.publisher.byType(events.BookingCreated)
	require.Len(t, created, 1)
	assert.Equal(t, events.TopicReservationEvents, created[0].Topic)
}

func TestCreateBooking_ReplaySameKeyReturnsSameBooking(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(4, 2)
	ctx := context.Background()
	in := validCreateInput(slot)

	first, err := f.bookingSvc.CreateBooking(ctx, in)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		replay, err := f.bookingSvc.CreateBooking(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, first.ID, replay.ID)
		assert.Equal(t, first.OrderNumber, replay.OrderNumber)
	}

	// One reservation, one booking, one event, despite four submissions.
	stored, err := f.slots.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.BookedAdults)

	_, total, err := f.bookingSvc.ListAllBookings(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, f.publisher.byType(events.BookingCreated), 1)
}

func TestCreateBooking_SlotFullFailureIsCachedForReplays(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(2, 0)
	ctx := context.Background()

	filler := validCreateInput(slot)
	filler.Party = bookingDomain.PartySize{Adults: 2, Dogs: 0}
	_, err := f.bookingSvc.CreateBooking(ctx, filler)
	require.NoError(t, err)

	in := validCreateInput(slot)
	in.Party = bookingDomain.PartySize{Adults: 1, Dogs: 0}
	_, err = f.bookingSvc.CreateBooking(ctx, in)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeSlotFull))

	// The replay re-raises the cached failure without touching inventory.
	_, err = f.bookingSvc.CreateBooking(ctx, in)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeSlotFull))

	stored, err := f.slots.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.BookedAdults)
}

func TestCreateBooking_UnknownSlotFailsWithInvalidSlot(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(4, 2)
	ctx := context.Background()

	in := validCreateInput(slot)
	in.SlotID = uuid.New()

	_, err := f.bookingSvc.CreateBooking(ctx, in)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidSlot))

	// The failure is terminal, so the replay resolves from the ledger.
	_, err = f.bookingSvc.CreateBooking(ctx, in)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidSlot))
}

func TestCreateBooking_MissingKeyRejected(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(4, 2)

	in := validCreateInput(slot)
	in.IdempotencyKey = ""

	_, err := f.bookingSvc.CreateBooking(context.Background(), in)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
}

func TestCreateBooking_ConcurrentDistinctKeysNeverOverbook(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(5, 0)
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validCreateInput(slot)
			in.Party = bookingDomain.PartySize{Adults: 1, Dogs: 0}
			_, errs[i] = f.bookingSvc.CreateBooking(ctx, in)
		}(i)
	}
	wg.Wait()

	var succeeded, full int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case domain.IsCode(err, domain.CodeSlotFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, attempts-5, full)

	stored, err := f.slots.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.BookedAdults)
}

func TestCreateBooking_InFlightDuplicateConflictsAfterBoundedWait(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(4, 2)
	ctx := context.Background()

	in := validCreateInput(slot)
	f.ledger.seed(in.IdempotencyKey, time.Second) // fresh lease, holder presumed alive

	_, err := f.bookingSvc.CreateBooking(ctx, in)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeConflict))

	// The duplicate waited, then gave up; it never touched inventory.
	stored, err := f.slots.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.BookedAdults)

	_, total, err := f.bookingSvc.ListAllBookings(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestCreateBooking_StaleLeaseIsTakenOverByRetry(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(4, 2)
	ctx := context.Background()

	in := validCreateInput(slot)
	f.ledger.seed(in.IdempotencyKey, ledger.LeaseTTL+time.Minute)

	dto, err := f.bookingSvc.CreateBooking(ctx, in)
	require.NoError(t, err)

	stored, err := f.slots.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.BookedAdults)

	rec, err := f.ledger.Get(ctx, in.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, rec.Status)
	require.NotNil(t, rec.BookingID)
	assert.Equal(t, dto.ID, *rec.BookingID)
}

func TestCreateBooking_ResumesWhenLedgerCommitWasLost(t *testing.T) {
	f := newFixture()
	// Capacity exactly matches the party, so a takeover that re-ran the
	// reservation would see the slot full against its own prior booking.
	slot := f.addSlot(2, 1)
	ctx := context.Background()

	// First submission: the booking transaction commits but the success
	// outcome never reaches the ledger.
	flaky := &flakyLedger{Repository: f.ledger, failCommits: 1}
	svc := NewBookingService(f.bookings, f.slots, flaky, f.publisher, zap.NewNop())

	in := validCreateInput(slot)
	first, err := svc.CreateBooking(ctx, in)
	require.NoError(t, err)

	rec, err := f.ledger.Get(ctx, in.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusInProgress, rec.Status)

	// After the lease expires a retry takes the key over, trips the unique
	// key on bookings, and must resolve to the existing booking.
	f.ledger.age(in.IdempotencyKey, ledger.LeaseTTL+time.Minute)

	replay, err := svc.CreateBooking(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)
	assert.Equal(t, first.OrderNumber, replay.OrderNumber)

	// Exactly one reservation and one booking survive, and the ledger is
	// backfilled so further replays resolve from the cached outcome.
	stored, err := f.slots.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.BookedAdults)

	_, total, err := svc.ListAllBookings(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	rec, err = f.ledger.Get(ctx, in.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, rec.Status)
	require.NotNil(t, rec.BookingID)
	assert.Equal(t, first.ID, *rec.BookingID)

	again, err := svc.CreateBooking(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestCreateBooking_LegacyIntentInheritsProductFromSlot(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(4, 2)

	in := validCreateInput(slot)
	in.ProductID = uuid.Nil

	dto, err := f.bookingSvc.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, slot.ProductID, dto.ProductID)
}

func TestGetBookingStats_CountsByStatus(t *testing.T) {
	f := newFixture()
	slot := f.addSlot(10, 5)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		in := validCreateInput(slot)
		in.Party = bookingDomain.PartySize{Adults: 1, Dogs: 0}
		_, err := f.bookingSvc.CreateBooking(ctx, in)
		require.NoError(t, err)
	}

	stats, err := f.bookingSvc.GetBookingStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalBookings)
	assert.Equal(t, int64(3), stats.ByStatus[string(bookingDomain.StatusPending)])
}
