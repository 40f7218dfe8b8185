package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trailpaws/service-reservation/internal/domain"
	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"github.com/trailpaws/service-reservation/internal/domain/cancellation"
	"github.com/trailpaws/service-reservation/internal/domain/inventory"
	"github.com/trailpaws/service-reservation/internal/domain/ledger"
	"github.com/trailpaws/service-reservation/internal/domain/quotation"
	"github.com/trailpaws/service-reservation/internal/events"
	"github.com/trailpaws/service-reservation/internal/payments"
)

// In-memory fakes reproducing the repository contracts, including the
// conditional-update semantics the services rely on.

// --- inventory ---

type fakeSlotRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*inventory.Slot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: make(map[uuid.UUID]*inventory.Slot)}
}

func (r *fakeSlotRepo) Create(_ context.Context, slot *inventory.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slot.ID] = slot
	return nil
}

func (r *fakeSlotRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok {
		return nil, domain.NewNotFoundError("slot", id.String())
	}
	copied := *slot
	return &copied, nil
}

func (r *fakeSlotRepo) TryReserve(_ context.Context, id uuid.UUID, adults, dogs int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok {
		return domain.NewInvalidSlotError(id.String())
	}
	if slot.BookedAdults+adults > slot.MaxAdults || slot.BookedDogs+dogs > slot.MaxDogs {
		return domain.NewSlotFullError(id.String())
	}
	slot.BookedAdults += adults
	slot.BookedDogs += dogs
	return nil
}

func (r *fakeSlotRepo) Release(_ context.Context, id uuid.UUID, adults, dogs int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok {
		return nil
	}
	if slot.BookedAdults -= adults; slot.BookedAdults < 0 {
		slot.BookedAdults = 0
	}
	if slot.BookedDogs -= dogs; slot.BookedDogs < 0 {
		slot.BookedDogs = 0
	}
	return nil
}

// --- idempotency ledger ---

type fakeLedgerRepo struct {
	mu      sync.Mutex
	records map[string]*ledger.Record
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{records: make(map[string]*ledger.Record)}
}

func (r *fakeLedgerRepo) BeginOrGet(_ context.Context, key string) (*ledger.Begin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if rec, ok := r.records[key]; ok {
		if rec.Status == ledger.StatusInProgress && now.Sub(rec.UpdatedAt) > ledger.LeaseTTL {
			rec.UpdatedAt = now
			copied := *rec
			return &ledger.Begin{New: true, Resumed: true, Record: &copied}, nil
		}
		copied := *rec
		return &ledger.Begin{New: false, Record: &copied}, nil
	}
	rec := &ledger.Record{Key: key, Status: ledger.StatusInProgress, CreatedAt: now, UpdatedAt: now}
	r.records[key] = rec
	copied := *rec
	return &ledger.Begin{New: true, Record: &copied}, nil
}

func (r *fakeLedgerRepo) Commit(_ context.Context, key string, outcome ledger.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return domain.NewNotFoundError("idempotency record", key)
	}
	if rec.Status.IsTerminal() {
		return domain.NewConflictError("idempotency outcome already committed")
	}
	if outcome.BookingID != nil {
		rec.Status = ledger.StatusSucceeded
		rec.BookingID = outcome.BookingID
	} else {
		rec.Status = ledger.StatusFailed
		rec.ErrorCode = outcome.ErrorCode
		rec.ErrorMessage = outcome.ErrorMessage
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeLedgerRepo) Get(_ context.Context, key string) (*ledger.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, domain.NewNotFoundError("idempotency record", key)
	}
	copied := *rec
	return &copied, nil
}

// seed inserts an in-progress record with the given age, simulating a holder
// that started earlier and has not committed.
func (r *fakeLedgerRepo) seed(key string, age time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	then := time.Now().UTC().Add(-age)
	r.records[key] = &ledger.Record{Key: key, Status: ledger.StatusInProgress, CreatedAt: then, UpdatedAt: then}
}

// age backdates a record's lease so a later BeginOrGet sees it as stale.
func (r *fakeLedgerRepo) age(key string, by time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[key]; ok {
		rec.UpdatedAt = rec.UpdatedAt.Add(-by)
	}
}

// flakyLedger wraps a ledger repository and fails the first failCommits
// Commit calls, simulating a crash between the booking transaction and the
// outcome write.
type flakyLedger struct {
	ledger.Repository
	mu          sync.Mutex
	failCommits int
}

func (l *flakyLedger) Commit(ctx context.Context, key string, outcome ledger.Outcome) error {
	l.mu.Lock()
	fail := l.failCommits > 0
	if fail {
		l.failCommits--
	}
	l.mu.Unlock()
	if fail {
		return errInfra
	}
	return l.Repository.Commit(ctx, key, outcome)
}

var errInfra = errors.New("ledger unavailable")

// --- bookings ---

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*bookingDomain.Booking
	slots    *fakeSlotRepo
}

func newFakeBookingRepo(slots *fakeSlotRepo) *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*bookingDomain.Booking), slots: slots}
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bk, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	return bk, nil
}

func (r *fakeBookingRepo) FindByOrderNumber(_ context.Context, number string) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bk := range r.bookings {
		if bk.OrderNumber() == number {
			return bk, nil
		}
	}
	return nil, domain.NewNotFoundError("booking", number)
}

func (r *fakeBookingRepo) FindBySessionID(_ context.Context, sessionID string) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bk := range r.bookings {
		if bk.Payment().CheckoutSessionID == sessionID {
			return bk, nil
		}
	}
	return nil, domain.NewNotFoundError("booking", sessionID)
}

func (r *fakeBookingRepo) FindByIdempotencyKey(_ context.Context, key string) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bk := range r.bookings {
		if bk.IdempotencyKey() == key {
			return bk, nil
		}
	}
	return nil, domain.NewNotFoundError("booking", key)
}

func (r *fakeBookingRepo) FindByCustomerEmail(_ context.Context, email string, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if bk.Customer().Email == email {
			out = append(out, bk)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) ListAll(_ context.Context, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*bookingDomain.Booking, 0, len(r.bookings))
	for _, bk := range r.bookings {
		out = append(out, bk)
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, bk := range r.bookings {
		counts[string(bk.Status())]++
	}
	return counts, nil
}

func (r *fakeBookingRepo) CreateWithReservation(ctx context.Context, bk *bookingDomain.Booking) error {
	if err := r.slots.TryReserve(ctx, bk.SlotID(), bk.Party().Adults, bk.Party().Dogs); err != nil {
		return err
	}
	r.mu.Lock()
	duplicate := false
	for _, existing := range r.bookings {
		if existing.IdempotencyKey() == bk.IdempotencyKey() {
			duplicate = true
			break
		}
	}
	if !duplicate {
		r.bookings[bk.ID()] = bk
	}
	r.mu.Unlock()

	if duplicate {
		// Unique index violation: the reservation rolls back with the
		// transaction.
		_ = r.slots.Release(ctx, bk.SlotID(), bk.Party().Adults, bk.Party().Dogs)
		return domain.NewConflictError("booking already exists for idempotency key")
	}
	return nil
}

func (r *fakeBookingRepo) Confirm(_ context.Context, id uuid.UUID, paymentIntentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bk, ok := r.bookings[id]
	if !ok {
		return domain.NewNotFoundError("booking", id.String())
	}
	switch bk.Status() {
	case bookingDomain.StatusConfirmed, bookingDomain.StatusCompleted:
		return nil
	}
	return bk.Confirm(paymentIntentID)
}

func (r *fakeBookingRepo) CompleteExpired(_ context.Context, asOf time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, bk := range r.bookings {
		if bk.Status() == bookingDomain.StatusConfirmed && bk.EndDate().Before(asOf) {
			if err := bk.Complete(); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// --- cancellation requests ---

type fakeCancellationRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*cancellation.Request
	bookings *fakeBookingRepo
	slots    *fakeSlotRepo
}

func newFakeCancellationRepo(bookings *fakeBookingRepo, slots *fakeSlotRepo) *fakeCancellationRepo {
	return &fakeCancellationRepo{
		requests: make(map[uuid.UUID]*cancellation.Request),
		bookings: bookings,
		slots:    slots,
	}
}

func (r *fakeCancellationRepo) Create(_ context.Context, req *cancellation.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = req
	return nil
}

func (r *fakeCancellationRepo) FindByID(_ context.Context, id uuid.UUID) (*cancellation.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, domain.NewNotFoundError("cancellation request", id.String())
	}
	copied := *req
	return &copied, nil
}

func (r *fakeCancellationRepo) FindPendingByBookingID(_ context.Context, bookingID uuid.UUID) (*cancellation.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.BookingID == bookingID && req.Status == cancellation.StatusPending {
			copied := *req
			return &copied, nil
		}
	}
	return nil, domain.NewNotFoundError("cancellation request", bookingID.String())
}

func (r *fakeCancellationRepo) ListByStatus(_ context.Context, status cancellation.RequestStatus, _, _ int) ([]*cancellation.Request, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*cancellation.Request
	for _, req := range r.requests {
		if req.Status == status {
			copied := *req
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeCancellationRepo) Approve(ctx context.Context, requestID uuid.UUID, decision cancellation.Decision) error {
	r.mu.Lock()
	req, ok := r.requests[requestID]
	if !ok {
		r.mu.Unlock()
		return domain.NewNotFoundError("cancellation request", requestID.String())
	}
	if req.Status != cancellation.StatusPending {
		r.mu.Unlock()
		return domain.NewInvalidStateError(string(req.Status), string(cancellation.StatusApproved))
	}
	bookingID := req.BookingID
	r.mu.Unlock()

	bk, err := r.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if bk.Status() != bookingDomain.StatusCancelled {
		reason := "cancellation request " + requestID.String() + " approved"
		if err := bk.Cancel(reason); err != nil {
			return err
		}
		if err := r.slots.Release(ctx, bk.SlotID(), bk.Party().Adults, bk.Party().Dogs); err != nil {
			return err
		}
	}

	r.decide(requestID, cancellation.StatusApproved, decision)
	return nil
}

func (r *fakeCancellationRepo) Reject(_ context.Context, requestID uuid.UUID, decision cancellation.Decision) error {
	r.mu.Lock()
	req, ok := r.requests[requestID]
	if !ok {
		r.mu.Unlock()
		return domain.NewNotFoundError("cancellation request", requestID.String())
	}
	if req.Status != cancellation.StatusPending {
		r.mu.Unlock()
		return domain.NewInvalidStateError(string(req.Status), string(cancellation.StatusRejected))
	}
	r.mu.Unlock()
	r.decide(requestID, cancellation.StatusRejected, decision)
	return nil
}

func (r *fakeCancellationRepo) decide(requestID uuid.UUID, status cancellation.RequestStatus, decision cancellation.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := r.requests[requestID]
	now := time.Now().UTC()
	req.Status = status
	req.DecidedBy = decision.DecidedBy
	req.AdminNotes = decision.AdminNotes
	req.DecidedAt = &now
}

// --- quotations ---

type fakeQuotationRepo struct {
	mu     sync.Mutex
	quotes map[uuid.UUID]*quotation.Quotation
}

func newFakeQuotationRepo() *fakeQuotationRepo {
	return &fakeQuotationRepo{quotes: make(map[uuid.UUID]*quotation.Quotation)}
}

func (r *fakeQuotationRepo) Create(_ context.Context, q *quotation.Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes[q.ID] = q
	return nil
}

func (r *fakeQuotationRepo) AttachSession(_ context.Context, id uuid.UUID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return domain.NewNotFoundError("quotation", id.String())
	}
	q.SessionID = sessionID
	return nil
}

func (r *fakeQuotationRepo) LinkBooking(_ context.Context, sessionID string, bookingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.quotes {
		if q.SessionID == sessionID {
			if q.BookingID == nil {
				q.BookingID = &bookingID
			}
			return nil
		}
	}
	return domain.NewNotFoundError("quotation", sessionID)
}

func (r *fakeQuotationRepo) FindBySessionID(_ context.Context, sessionID string) (*quotation.Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.quotes {
		if q.SessionID == sessionID {
			copied := *q
			return &copied, nil
		}
	}
	return nil, domain.NewNotFoundError("quotation", sessionID)
}

// --- events ---

type publishedEvent struct {
	Topic string
	Event events.CloudEvent
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedEvent
	failWith  error
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic string, event events.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.published = append(p.published, publishedEvent{Topic: topic, Event: event})
	return nil
}

func (p *fakePublisher) byType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.published {
		if e.Event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// --- payment gateway ---

type fakeGateway struct {
	mu        sync.Mutex
	sessions  []payments.CheckoutSessionParams
	refunds   []string
	refundErr error
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, params payments.CheckoutSessionParams) (*payments.CheckoutSessionRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, params)
	id := "cs_test_" + uuid.NewString()[:8]
	return &payments.CheckoutSessionRef{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentIntentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, paymentIntentID)
	return nil
}

// --- fixture ---

type fixture struct {
	slots     *fakeSlotRepo
	bookings  *fakeBookingRepo
	ledger    *fakeLedgerRepo
	requests  *fakeCancellationRepo
	quotes    *fakeQuotationRepo
	publisher *fakePublisher
	gateway   *fakeGateway

	bookingSvc      *BookingService
	reconcileSvc    *ReconcileService
	cancellationSvc *CancellationService
	checkoutSvc     *CheckoutService
	sweepSvc        *SweepService
}

func newFixture() *fixture {
	f := &fixture{
		slots:     newFakeSlotRepo(),
		ledger:    newFakeLedgerRepo(),
		quotes:    newFakeQuotationRepo(),
		publisher: &fakePublisher{},
		gateway:   &fakeGateway{},
	}
	f.bookings = newFakeBookingRepo(f.slots)
	f.requests = newFakeCancellationRepo(f.bookings, f.slots)

	log := zap.NewNop()
	f.bookingSvc = NewBookingService(f.bookings, f.slots, f.ledger, f.publisher, log)
	f.reconcileSvc = NewReconcileService(f.bookings, f.quotes, f.bookingSvc, f.publisher, log)
	f.cancellationSvc = NewCancellationService(f.requests, f.bookings, f.gateway, f.publisher, log)
	f.checkoutSvc = NewCheckoutService(f.slots, f.quotes, f.bookings, f.gateway, log)
	f.sweepSvc = NewSweepService(f.bookings, f.publisher, log)
	return f
}

// addSlot seeds a day-tour slot for tomorrow with the given capacity.
func (f *fixture) addSlot(maxAdults, maxDogs int) *inventory.Slot {
	date := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour)
	slot, err := inventory.NewSlot(uuid.New(), inventory.KindDayTour, date, "09:00", "17:00", maxAdults, maxDogs)
	if err != nil {
		panic(err)
	}
	_ = f.slots.Create(context.Background(), slot)
	return slot
}

func validCreateInput(slot *inventory.Slot) CreateBookingInput {
	return CreateBookingInput{
		IdempotencyKey: uuid.NewString(),
		ProductID:      slot.ProductID,
		SlotID:         slot.ID,
		Customer:       bookingDomain.Customer{Name: "Ada Byrne", Email: "ada@example.com", Phone: "+49111222333"},
		Party:          bookingDomain.PartySize{Adults: 2, Dogs: 1},
		AmountCents:    15900,
		Currency:       "EUR",
	}
}
