package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
	"github.com/trailpaws/service-reservation/internal/domain/inventory"
	"gorm.io/gorm"
)

// SlotModel is the GORM model for the slots table.
type SlotModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"type:uuid;index;not null"`
	ProductKind string    `gorm:"not null;size:20"`
	Date        time.Time `gorm:"type:date;not null;index"`
	StartTime   string    `gorm:"size:5"`
	EndTime     string    `gorm:"size:5"`

	MaxAdults    int `gorm:"not null"`
	MaxDogs      int `gorm:"not null"`
	BookedAdults int `gorm:"not null;default:0"`
	BookedDogs   int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (SlotModel) TableName() string {
	return "slots"
}

// GormSlotRepository is the GORM-based implementation of inventory.Repository.
type GormSlotRepository struct {
	db *gorm.DB
}

// NewGormSlotRepository creates a new GormSlotRepository.
func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

// Create persists a new slot.
func (r *GormSlotRepository) Create(ctx context.Context, slot *inventory.Slot) error {
	model := toSlotModel(slot)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

// FindByID retrieves a slot by its unique identifier.
func (r *GormSlotRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Slot, error) {
	var model SlotModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Slot", id.String())
		}
		return nil, fmt.Errorf("failed to find slot by ID: %w", err)
	}
	return toDomainSlot(&model), nil
}

// TryReserve atomically increments the booked counters via a single
// conditional update.
func (r *GormSlotRepository) TryReserve(ctx context.Context, id uuid.UUID, adults, dogs int) error {
	return tryReserveTx(r.db.WithContext(ctx), id, adults, dogs)
}

// Release decrements the booked counters, saturating at zero.
func (r *GormSlotRepository) Release(ctx context.Context, id uuid.UUID, adults, dogs int) error {
	return releaseTx(r.db.WithContext(ctx), id, adults, dogs)
}

// tryReserveTx performs the conditional capacity increment on the given
// handle, which may be a transaction. The capacity check and the increment
// are one UPDATE statement, so the check-then-act race cannot occur.
func tryReserveTx(tx *gorm.DB, id uuid.UUID, adults, dogs int) error {
	res := tx.Model(&SlotModel{}).
		Where("id = ? AND booked_adults + ? <= max_adults AND booked_dogs + ? <= max_dogs", id, adults, dogs).
		Updates(map[string]interface{}{
			"booked_adults": gorm.Expr("booked_adults + ?", adults),
			"booked_dogs":   gorm.Expr("booked_dogs + ?", dogs),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reserve slot capacity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Missing slot and full slot both leave zero rows; tell them apart.
		var count int64
		if err := tx.Model(&SlotModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check slot existence: %w", err)
		}
		if count == 0 {
			return domain.NewInvalidSlotError(id.String())
		}
		return domain.NewSlotFullError(id.String())
	}
	return nil
}

// releaseTx decrements booked counters on the given handle. GREATEST keeps
// the counters from going negative on a stale release amount.
func releaseTx(tx *gorm.DB, id uuid.UUID, adults, dogs int) error {
	res := tx.Model(&SlotModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"booked_adults": gorm.Expr("GREATEST(booked_adults - ?, 0)", adults),
			"booked_dogs":   gorm.Expr("GREATEST(booked_dogs - ?, 0)", dogs),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to release slot capacity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewInvalidSlotError(id.String())
	}
	return nil
}

// --- Conversion Helpers ---

func toSlotModel(s *inventory.Slot) *SlotModel {
	return &SlotModel{
		ID:           s.ID,
		ProductID:    s.ProductID,
		ProductKind:  string(s.ProductKind),
		Date:         s.Date,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		MaxAdults:    s.MaxAdults,
		MaxDogs:      s.MaxDogs,
		BookedAdults: s.BookedAdults,
		BookedDogs:   s.BookedDogs,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toDomainSlot(m *SlotModel) *inventory.Slot {
	return &inventory.Slot{
		ID:           m.ID,
		ProductID:    m.ProductID,
		ProductKind:  inventory.ProductKind(m.ProductKind),
		Date:         m.Date,
		StartTime:    m.StartTime,
		EndTime:      m.EndTime,
		MaxAdults:    m.MaxAdults,
		MaxDogs:      m.MaxDogs,
		BookedAdults: m.BookedAdults,
		BookedDogs:   m.BookedDogs,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
