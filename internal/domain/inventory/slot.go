package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
)

// ProductKind distinguishes the shapes a bookable product can take.
type ProductKind string

const (
	KindDayTour ProductKind = "day_tour"
	KindStay    ProductKind = "stay"
)

// IsValid returns true if the kind is recognized.
func (k ProductKind) IsValid() bool {
	return k == KindDayTour || k == KindStay
}

// Slot is a capacity-bounded, date-scoped bookable unit of a product.
// The booked counters are mutated exclusively through the conditional
// reserve/release primitives; the invariant 0 <= booked <= max holds under
// concurrent writers because the check and the increment are one statement.
type Slot struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	ProductKind ProductKind
	Date        time.Time
	StartTime   string // "HH:MM", empty for all-day slots
	EndTime     string

	MaxAdults    int
	MaxDogs      int
	BookedAdults int
	BookedDogs   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSlot creates a slot with zero booked capacity.
func NewSlot(productID uuid.UUID, kind ProductKind, date time.Time, startTime, endTime string, maxAdults, maxDogs int) (*Slot, error) {
	if productID == uuid.Nil {
		return nil, domain.NewValidationError("product ID is required")
	}
	if !kind.IsValid() {
		return nil, domain.NewValidationError("invalid product kind: " + string(kind))
	}
	if maxAdults < 1 {
		return nil, domain.NewValidationError("max adults must be at least 1")
	}
	if maxDogs < 0 {
		return nil, domain.NewValidationError("max dogs cannot be negative")
	}
	now := time.Now().UTC()
	return &Slot{
		ID:          uuid.New(),
		ProductID:   productID,
		ProductKind: kind,
		Date:        date,
		StartTime:   startTime,
		EndTime:     endTime,
		MaxAdults:   maxAdults,
		MaxDogs:     maxDogs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// RemainingAdults returns the adult capacity still available.
func (s *Slot) RemainingAdults() int { return s.MaxAdults - s.BookedAdults }

// RemainingDogs returns the dog capacity still available.
func (s *Slot) RemainingDogs() int { return s.MaxDogs - s.BookedDogs }

// Fits reports whether the slot could currently accommodate the party. This
// is a display-level check only; the authoritative check is the conditional
// update inside TryReserve.
func (s *Slot) Fits(adults, dogs int) bool {
	return s.RemainingAdults() >= adults && s.RemainingDogs() >= dogs
}
