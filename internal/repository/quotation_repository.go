package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
	"github.com/trailpaws/service-reservation/internal/domain/quotation"
	"gorm.io/gorm"
)

// QuotationModel is the GORM model for the quotations table.
type QuotationModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SlotID        uuid.UUID  `gorm:"type:uuid;index;not null"`
	ProductID     uuid.UUID  `gorm:"type:uuid;not null"`
	CustomerEmail string     `gorm:"index;not null;size:320"`
	Adults        int        `gorm:"not null"`
	Dogs          int        `gorm:"not null"`
	AmountCents   int64      `gorm:"not null"`
	Currency      string     `gorm:"not null;size:3"`
	SessionID     string     `gorm:"index;size:255"`
	BookingID     *uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (QuotationModel) TableName() string {
	return "quotations"
}

// GormQuotationRepository is the GORM-based implementation of quotation.Repository.
type GormQuotationRepository struct {
	db *gorm.DB
}

// NewGormQuotationRepository creates a new GormQuotationRepository.
func NewGormQuotationRepository(db *gorm.DB) *GormQuotationRepository {
	return &GormQuotationRepository{db: db}
}

// Create persists a new quotation.
func (r *GormQuotationRepository) Create(ctx context.Context, q *quotation.Quotation) error {
	if err := r.db.WithContext(ctx).Create(toQuotationModel(q)).Error; err != nil {
		return fmt.Errorf("failed to create quotation: %w", err)
	}
	return nil
}

// AttachSession records the payment session id on a quotation.
func (r *GormQuotationRepository) AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	res := r.db.WithContext(ctx).Model(&QuotationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"session_id": sessionID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to attach session to quotation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFoundError("Quotation", id.String())
	}
	return nil
}

// LinkBooking points the quotation for a session at its booking. Already
// linked rows are left alone so duplicate deliveries converge.
func (r *GormQuotationRepository) LinkBooking(ctx context.Context, sessionID string, bookingID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&QuotationModel{}).
		Where("session_id = ? AND booking_id IS NULL", sessionID).
		Updates(map[string]interface{}{
			"booking_id": bookingID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to link quotation to booking: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&QuotationModel{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check quotation existence: %w", err)
		}
		if count == 0 {
			return domain.NewNotFoundError("Quotation", sessionID)
		}
	}
	return nil
}

// FindBySessionID retrieves the quotation for a payment session.
func (r *GormQuotationRepository) FindBySessionID(ctx context.Context, sessionID string) (*quotation.Quotation, error) {
	var model QuotationModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Quotation", sessionID)
		}
		return nil, fmt.Errorf("failed to find quotation by session ID: %w", err)
	}
	return toDomainQuotation(&model), nil
}

// --- Conversion Helpers ---

func toQuotationModel(q *quotation.Quotation) *QuotationModel {
	return &QuotationModel{
		ID:            q.ID,
		SlotID:        q.SlotID,
		ProductID:     q.ProductID,
		CustomerEmail: q.CustomerEmail,
		Adults:        q.Adults,
		Dogs:          q.Dogs,
		AmountCents:   q.AmountCents,
		Currency:      q.Currency,
		SessionID:     q.SessionID,
		BookingID:     q.BookingID,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}
}

func toDomainQuotation(m *QuotationModel) *quotation.Quotation {
	return &quotation.Quotation{
		ID:            m.ID,
		SlotID:        m.SlotID,
		ProductID:     m.ProductID,
		CustomerEmail: m.CustomerEmail,
		Adults:        m.Adults,
		Dogs:          m.Dogs,
		AmountCents:   m.AmountCents,
		Currency:      m.Currency,
		SessionID:     m.SessionID,
		BookingID:     m.BookingID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
