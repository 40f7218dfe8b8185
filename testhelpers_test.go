//go:build integration

package main_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/trailpaws/service-reservation/internal/application"
	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"github.com/trailpaws/service-reservation/internal/domain/inventory"
	"github.com/trailpaws/service-reservation/internal/events"
	"github.com/trailpaws/service-reservation/internal/repository"
)

// nopPublisher drops events; these tests assert database state, not topics.
type nopPublisher struct{}

func (nopPublisher) PublishEvent(context.Context, string, events.CloudEvent) error { return nil }

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB      *gorm.DB
	Cleanup func()
}

// setupPostgres starts a PostgreSQL testcontainer and returns a connected
// GORM DB with all tables migrated.
func setupPostgres(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_reservation",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_reservation sslmode=disable", host, port.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.SlotModel{},
		&repository.BookingModel{},
		&repository.IdempotencyModel{},
		&repository.CancellationModel{},
		&repository.QuotationModel{},
	))

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{DB: db, Cleanup: cleanup}
}

// reservationStack holds wired-up repositories and services against the
// containerized database. Events go to a collecting in-memory publisher so
// the tests need no broker.
type reservationStack struct {
	Slots      *repository.GormSlotRepository
	Bookings   *repository.GormBookingRepository
	Ledger     *repository.GormLedgerRepository
	Requests   *repository.GormCancellationRepository
	BookingSvc *application.BookingService
	SweepSvc   *application.SweepService
}

func setupStack(t *testing.T, db *gorm.DB) *reservationStack {
	t.Helper()
	log := zap.NewNop()

	slots := repository.NewGormSlotRepository(db)
	bookings := repository.NewGormBookingRepository(db)
	ledgerRepo := repository.NewGormLedgerRepository(db)
	requests := repository.NewGormCancellationRepository(db)

	publisher := nopPublisher{}
	return &reservationStack{
		Slots:      slots,
		Bookings:   bookings,
		Ledger:     ledgerRepo,
		Requests:   requests,
		BookingSvc: application.NewBookingService(bookings, slots, ledgerRepo, publisher, log),
		SweepSvc:   application.NewSweepService(bookings, publisher, log),
	}
}

// seedSlot creates and persists a day-tour slot for tomorrow.
func seedSlot(t *testing.T, stack *reservationStack, maxAdults, maxDogs int) *inventory.Slot {
	t.Helper()
	date := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour)
	slot, err := inventory.NewSlot(uuid.New(), inventory.KindDayTour, date, "09:00", "17:00", maxAdults, maxDogs)
	require.NoError(t, err)
	require.NoError(t, stack.Slots.Create(context.Background(), slot))
	return slot
}

func createInput(slot *inventory.Slot, adults, dogs int) application.CreateBookingInput {
	return application.CreateBookingInput{
		IdempotencyKey: uuid.NewString(),
		ProductID:      slot.ProductID,
		SlotID:         slot.ID,
		Customer:       bookingDomain.Customer{Name: "Ada Byrne", Email: "ada@example.com"},
		Party:          bookingDomain.PartySize{Adults: adults, Dogs: dogs},
		AmountCents:    15900,
		Currency:       "EUR",
	}
}
