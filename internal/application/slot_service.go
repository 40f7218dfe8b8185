package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain/inventory"
	"go.uber.org/zap"
)

// CreateSlotInput holds the data needed to open a bookable slot.
type CreateSlotInput struct {
	ProductID   uuid.UUID `json:"product_id" binding:"required"`
	ProductKind string    `json:"product_kind" binding:"required"`
	Date        time.Time `json:"date" binding:"required" time_format:"2006-01-02"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	MaxAdults   int       `json:"max_adults" binding:"required,min=1"`
	MaxDogs     int       `json:"max_dogs" binding:"min=0"`
}

// SlotDTO is the response representation of a slot.
type SlotDTO struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	ProductKind     string    `json:"product_kind"`
	Date            time.Time `json:"date"`
	StartTime       string    `json:"start_time,omitempty"`
	EndTime         string    `json:"end_time,omitempty"`
	MaxAdults       int       `json:"max_adults"`
	MaxDogs         int       `json:"max_dogs"`
	BookedAdults    int       `json:"booked_adults"`
	BookedDogs      int       `json:"booked_dogs"`
	RemainingAdults int       `json:"remaining_adults"`
	RemainingDogs   int       `json:"remaining_dogs"`
}

// SlotService is the provider-side inventory management surface. The booked
// counters are read-only here; only reservations and releases mutate them.
type SlotService struct {
	slots  inventory.Repository
	logger *zap.Logger
}

// NewSlotService creates a new SlotService.
func NewSlotService(slots inventory.Repository, logger *zap.Logger) *SlotService {
	return &SlotService{slots: slots, logger: logger}
}

// CreateSlot opens a new bookable slot with zero booked capacity.
func (s *SlotService) CreateSlot(ctx context.Context, in CreateSlotInput) (*SlotDTO, error) {
	slot, err := inventory.NewSlot(in.ProductID, inventory.ProductKind(in.ProductKind), in.Date, in.StartTime, in.EndTime, in.MaxAdults, in.MaxDogs)
	if err != nil {
		return nil, err
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, err
	}
	result := toSlotDTO(slot)
	return &result, nil
}

// GetSlot retrieves a slot with its current availability.
func (s *SlotService) GetSlot(ctx context.Context, id uuid.UUID) (*SlotDTO, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toSlotDTO(slot)
	return &result, nil
}

func toSlotDTO(slot *inventory.Slot) SlotDTO {
	return SlotDTO{
		ID:              slot.ID,
		ProductID:       slot.ProductID,
		ProductKind:     string(slot.ProductKind),
		Date:            slot.Date,
		StartTime:       slot.StartTime,
		EndTime:         slot.EndTime,
		MaxAdults:       slot.MaxAdults,
		MaxDogs:         slot.MaxDogs,
		BookedAdults:    slot.BookedAdults,
		BookedDogs:      slot.BookedDogs,
		RemainingAdults: slot.RemainingAdults(),
		RemainingDogs:   slot.RemainingDogs(),
	}
}
