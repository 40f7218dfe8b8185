package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
	bookingDomain "github.com/trailpaws/service-reservation/internal/domain/booking"
	"github.com/trailpaws/service-reservation/internal/domain/cancellation"
	"gorm.io/gorm"
)

// CancellationModel is the GORM model for the cancellation_requests table.
type CancellationModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `gorm:"type:uuid;index;not null"`
	Reason    string    `gorm:"size:500;not null"`
	Status    string    `gorm:"not null;size:20;index"`

	RequestedBy string    `gorm:"size:320;not null"`
	RequestedAt time.Time `gorm:"not null"`

	DecidedBy  string     `gorm:"size:320"`
	AdminNotes string     `gorm:"size:1000"`
	DecidedAt  *time.Time `gorm:""`
}

// TableName returns the table name for the GORM model.
func (CancellationModel) TableName() string {
	return "cancellation_requests"
}

// GormCancellationRepository is the GORM-based implementation of
// cancellation.Repository.
type GormCancellationRepository struct {
	db *gorm.DB
}

// NewGormCancellationRepository creates a new GormCancellationRepository.
func NewGormCancellationRepository(db *gorm.DB) *GormCancellationRepository {
	return &GormCancellationRepository{db: db}
}

// Create persists a new pending request.
func (r *GormCancellationRepository) Create(ctx context.Context, req *cancellation.Request) error {
	if err := r.db.WithContext(ctx).Create(toCancellationModel(req)).Error; err != nil {
		return fmt.Errorf("failed to create cancellation request: %w", err)
	}
	return nil
}

// FindByID retrieves a request by its unique identifier.
func (r *GormCancellationRepository) FindByID(ctx context.Context, id uuid.UUID) (*cancellation.Request, error) {
	var model CancellationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("CancellationRequest", id.String())
		}
		return nil, fmt.Errorf("failed to find cancellation request: %w", err)
	}
	return toDomainCancellation(&model)
}

// FindPendingByBookingID returns the open request for a booking.
func (r *GormCancellationRepository) FindPendingByBookingID(ctx context.Context, bookingID uuid.UUID) (*cancellation.Request, error) {
	var model CancellationModel
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, string(cancellation.StatusPending)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("CancellationRequest", bookingID.String())
		}
		return nil, fmt.Errorf("failed to find pending cancellation request: %w", err)
	}
	return toDomainCancellation(&model)
}

// ListByStatus retrieves requests in a given status with pagination.
func (r *GormCancellationRepository) ListByStatus(ctx context.Context, status cancellation.RequestStatus, page, limit int) ([]*cancellation.Request, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&CancellationModel{}).Where("status = ?", string(status)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cancellation requests: %w", err)
	}

	var models []CancellationModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("requested_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list cancellation requests: %w", err)
	}

	requests := make([]*cancellation.Request, len(models))
	for i, m := range models {
		req, err := toDomainCancellation(&m)
		if err != nil {
			return nil, 0, err
		}
		requests[i] = req
	}
	return requests, total, nil
}

// Approve runs the three-way decision transaction: booking to cancelled,
// capacity back to the slot, request to approved. A booking found already
// cancelled means this is a retry of an approval that released capacity in a
// prior attempt, so the release is skipped.
func (r *GormCancellationRepository) Approve(ctx context.Context, requestID uuid.UUID, decision cancellation.Decision) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req CancellationModel
		if err := tx.Where("id = ?", requestID).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("CancellationRequest", requestID.String())
			}
			return fmt.Errorf("failed to load cancellation request: %w", err)
		}
		if req.Status != string(cancellation.StatusPending) {
			return domain.NewInvalidStateError(req.Status, string(cancellation.StatusApproved))
		}

		var bk BookingModel
		if err := tx.Where("id = ?", req.BookingID).First(&bk).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("Booking", req.BookingID.String())
			}
			return fmt.Errorf("failed to load booking: %w", err)
		}

		switch bookingDomain.Status(bk.Status) {
		case bookingDomain.StatusCancelled:
			// Retried approval: capacity was already released, don't touch it.
		case bookingDomain.StatusConfirmed:
			res := tx.Model(&BookingModel{}).
				Where("id = ? AND status = ?", bk.ID, string(bookingDomain.StatusConfirmed)).
				Updates(map[string]interface{}{
					"status":       string(bookingDomain.StatusCancelled),
					"cancelled_at": now,
					"cancel_note":  req.Reason,
					"updated_at":   now,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to cancel booking: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return domain.NewConflictError("booking was modified by another transaction")
			}
			if err := releaseTx(tx, bk.SlotID, bk.Adults, bk.Dogs); err != nil {
				return err
			}
		default:
			return domain.NewInvalidStateError(bk.Status, string(bookingDomain.StatusCancelled))
		}

		return decideTx(tx, requestID, cancellation.StatusApproved, decision, now)
	})
}

// Reject marks a pending request rejected.
func (r *GormCancellationRepository) Reject(ctx context.Context, requestID uuid.UUID, decision cancellation.Decision) error {
	now := time.Now().UTC()
	err := decideTx(r.db.WithContext(ctx), requestID, cancellation.StatusRejected, decision, now)
	if domain.IsCode(err, domain.CodeInvalidState) {
		// Distinguish a decided request from a missing one for the caller.
		var count int64
		if cerr := r.db.WithContext(ctx).Model(&CancellationModel{}).Where("id = ?", requestID).Count(&count).Error; cerr == nil && count == 0 {
			return domain.NewNotFoundError("CancellationRequest", requestID.String())
		}
	}
	return err
}

// decideTx flips a pending request to its terminal status. Zero rows means
// the request was already decided (or absent): decisions are exactly-once.
func decideTx(tx *gorm.DB, requestID uuid.UUID, target cancellation.RequestStatus, decision cancellation.Decision, now time.Time) error {
	res := tx.Model(&CancellationModel{}).
		Where("id = ? AND status = ?", requestID, string(cancellation.StatusPending)).
		Updates(map[string]interface{}{
			"status":      string(target),
			"decided_by":  decision.DecidedBy,
			"admin_notes": decision.AdminNotes,
			"decided_at":  now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to decide cancellation request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewInvalidStateError("decided", string(target))
	}
	return nil
}

// --- Conversion Helpers ---

func toCancellationModel(req *cancellation.Request) *CancellationModel {
	return &CancellationModel{
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

func toDomainCancellation(m *CancellationModel) (*cancellation.Request, error) {
	status, err := cancellation.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}
	return &cancellation.Request{
		ID:          m.ID,
		BookingID:   m.BookingID,
		Reason:      m.Reason,
		Status:      status,
		RequestedBy: m.RequestedBy,
		RequestedAt: m.RequestedAt,
		DecidedBy:   m.DecidedBy,
		AdminNotes:  m.AdminNotes,
		DecidedAt:   m.DecidedAt,
	}, nil
}
