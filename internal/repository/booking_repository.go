package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"gorm.io/gorm"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderNumber string    `gorm:"uniqueIndex;not null;size:20"`
	ProductID   uuid.UUID `gorm:"type:uuid;index;not null"`
	SlotID      uuid.UUID `gorm:"type:uuid;index;not null"`

	CustomerName  string `gorm:"size:200"`
	CustomerEmail string `gorm:"index;not null;size:320"`
	CustomerPhone string `gorm:"size:40"`

	Adults int `gorm:"not null"`
	Dogs   int `gorm:"not null"`

	AmountCents int64  `gorm:"not null"`
	Currency    string `gorm:"not null;size:3"`

	CheckoutSessionID string `gorm:"index;size:255"`
	PaymentIntentID   string `gorm:"size:255"`
	IdempotencyKey    string `gorm:"uniqueIndex;not null;size:255"`

	Status    string    `gorm:"not null;size:20;index"`
	StartDate time.Time `gorm:"type:date;not null"`
	EndDate   time.Time `gorm:"type:date;not null;index"`

	CancelledAt *time.Time `gorm:""`
	CancelNote  string     `gorm:"size:500"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of booking.Repository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByOrderNumber retrieves a booking by its order number.
func (r *GormBookingRepository) FindByOrderNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("order_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by order number: %w", err)
	}
	return toDomainBooking(&model)
}

// FindBySessionID retrieves the booking created for a payment session.
func (r *GormBookingRepository) FindBySessionID(ctx context.Context, sessionID string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("checkout_session_id = ?", sessionID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", sessionID)
		}
		return nil, fmt.Errorf("failed to find booking by session ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByIdempotencyKey retrieves the booking created under an idempotency key.
func (r *GormBookingRepository) FindByIdempotencyKey(ctx context.Context, key string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", key)
		}
		return nil, fmt.Errorf("failed to find booking by idempotency key: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByCustomerEmail retrieves bookings for a customer with pagination.
func (r *GormBookingRepository) FindByCustomerEmail(ctx context.Context, email string, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where("customer_email = ?", email).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count customer bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("customer_email = ?", email).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find customer bookings: %w", err)
	}

	return toDomainBookings(models, total)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return toDomainBookings(models, total)
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// CreateWithReservation reserves the party size on the slot and inserts the
// booking row in a single database transaction. If the insert fails after
// the capacity was taken, the rollback restores it; a reservation is never
// left orphaned.
func (r *GormBookingRepository) CreateWithReservation(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		party := bk.Party()
		if err := tryReserveTx(tx, bk.SlotID(), party.Adults, party.Dogs); err != nil {
			return err
		}
		if err := tx.Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Unique key on idempotency_key: a previous holder already
				// inserted the booking. The rollback restores the capacity
				// taken above; the caller resolves the key to that booking.
				return domain.NewConflictError("booking already exists for idempotency key " + bk.IdempotencyKey())
			}
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return nil
	})
}

// Confirm transitions a pending booking to confirmed.
func (r *GormBookingRepository) Confirm(ctx context.Context, id uuid.UUID, paymentIntentID string) error {
	updates := map[string]interface{}{
		"status":     string(bookingDomain.StatusConfirmed),
		"updated_at": time.Now().UTC(),
	}
	if paymentIntentID != "" {
		updates["payment_intent_id"] = paymentIntentID
	}
	res := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("id = ? AND status = ?", id, string(bookingDomain.StatusPending)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to confirm booking: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var model BookingModel
		if err := r.db.WithContext(ctx).Select("status").Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("Booking", id.String())
			}
			return fmt.Errorf("failed to check booking status: %w", err)
		}
		switch bookingDomain.Status(model.Status) {
		case bookingDomain.StatusConfirmed, bookingDomain.StatusCompleted:
			return nil // already past pending, nothing to do
		default:
			return domain.NewInvalidStateError(model.Status, string(bookingDomain.StatusConfirmed))
		}
	}
	return nil
}

// CompleteExpired advances confirmed bookings whose stay has ended. The
// status filter is the idempotence predicate: a second run matches nothing.
func (r *GormBookingRepository) CompleteExpired(ctx context.Context, asOf time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("status = ? AND end_date < ?", string(bookingDomain.StatusConfirmed), asOf).
		Updates(map[string]interface{}{
			"status":     string(bookingDomain.StatusCompleted),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to complete expired bookings: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
		ID:                bk.ID(),
		OrderNumber:       bk.OrderNumber(),
		ProductID:         bk.ProductID(),
		SlotID:            bk.SlotID(),
		CustomerName:      bk.Customer().Name,
		CustomerEmail:     bk.Customer().Email,
		CustomerPhone:     bk.Customer().Phone,
		Adults:            bk.Party().Adults,
		Dogs:              bk.Party().Dogs,
		AmountCents:       bk.AmountCents(),
		Currency:          bk.Currency(),
		CheckoutSessionID: bk.Payment().CheckoutSessionID,
		PaymentIntentID:   bk.Payment().PaymentIntentID,
		IdempotencyKey:    bk.IdempotencyKey(),
		Status:            string(bk.Status()),
		StartDate:         bk.StartDate(),
		EndDate:           bk.EndDate(),
		CancelledAt:       bk.CancelledAt(),
		CancelNote:        bk.CancelNote(),
		CreatedAt:         bk.CreatedAt(),
		UpdatedAt:         bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return bookingDomain.Reconstruct(
		m.ID,
		m.OrderNumber,
		m.ProductID,
		m.SlotID,
		bookingDomain.Customer{Name: m.CustomerName, Email: m.CustomerEmail, Phone: m.CustomerPhone},
		bookingDomain.PartySize{Adults: m.Adults, Dogs: m.Dogs},
		m.AmountCents,
		m.Currency,
		bookingDomain.PaymentRefs{CheckoutSessionID: m.CheckoutSessionID, PaymentIntentID: m.PaymentIntentID},
		m.IdempotencyKey,
		status,
		m.StartDate,
		m.EndDate,
		m.CancelledAt,
		m.CancelNote,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainBookings(models []BookingModel, total int64) ([]*bookingDomain.Booking, int64, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}
