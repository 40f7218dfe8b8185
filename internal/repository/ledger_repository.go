package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
	"github.com/trailpaws/service-reservation/internal/domain/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdempotencyModel is the GORM model for the idempotency_records table.
type IdempotencyModel struct {
	Key          string     `gorm:"primaryKey;size:255"`
	Status       string     `gorm:"not null;size:20;index"`
	BookingID    *uuid.UUID `gorm:"type:uuid"`
	ErrorCode    string     `gorm:"size:40"`
	ErrorMessage string     `gorm:"size:500"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (IdempotencyModel) TableName() string {
	return "idempotency_records"
}

// GormLedgerRepository is the GORM-based implementation of ledger.Repository.
// Insert-if-absent rides on the primary key plus ON CONFLICT DO NOTHING, so
// racing callers are serialized by the database, not the application.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository.
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// BeginOrGet atomically inserts an in-progress record or returns the existing one.
func (r *GormLedgerRepository) BeginOrGet(ctx context.Context, key string) (*ledger.Begin, error) {
	now := time.Now().UTC()
	model := IdempotencyModel{
		Key:       key,
		Status:    string(ledger.StatusInProgress),
		CreatedAt: now,
		UpdatedAt: now,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to insert idempotency record: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return &ledger.Begin{New: true, Record: toDomainRecord(&model)}, nil
	}

	var existing IdempotencyModel
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load idempotency record: %w", err)
	}

	// Stale in-progress lease: the original holder is presumed crashed. Take
	// over via a conditional update so only one retrier wins.
	if existing.Status == string(ledger.StatusInProgress) && now.Sub(existing.UpdatedAt) > ledger.LeaseTTL {
		takeover := r.db.WithContext(ctx).Model(&IdempotencyModel{}).
			Where("key = ? AND status = ? AND updated_at = ?", key, string(ledger.StatusInProgress), existing.UpdatedAt).
			Update("updated_at", now)
		if takeover.Error != nil {
			return nil, fmt.Errorf("failed to take over stale idempotency record: %w", takeover.Error)
		}
		if takeover.RowsAffected == 1 {
			existing.UpdatedAt = now
			return &ledger.Begin{New: true, Resumed: true, Record: toDomainRecord(&existing)}, nil
		}
		// Lost the takeover race; fall through with whatever is there now.
		if err := r.db.WithContext(ctx).Where("key = ?", key).First(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to reload idempotency record: %w", err)
		}
	}

	return &ledger.Begin{New: false, Record: toDomainRecord(&existing)}, nil
}

// Commit records the terminal outcome for an in-progress key.
func (r *GormLedgerRepository) Commit(ctx context.Context, key string, outcome ledger.Outcome) error {
	status := ledger.StatusSucceeded
	if outcome.ErrorCode != "" {
		status = ledger.StatusFailed
	}
	res := r.db.WithContext(ctx).Model(&IdempotencyModel{}).
		Where("key = ? AND status = ?", key, string(ledger.StatusInProgress)).
		Updates(map[string]interface{}{
			"status":        string(status),
			"booking_id":    outcome.BookingID,
			"error_code":    outcome.ErrorCode,
			"error_message": outcome.ErrorMessage,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to commit idempotency outcome: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var existing IdempotencyModel
		if err := r.db.WithContext(ctx).Where("key = ?", key).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("IdempotencyRecord", key)
			}
			return fmt.Errorf("failed to check idempotency record: %w", err)
		}
		return domain.NewConflictError("idempotency outcome already recorded for key " + key)
	}
	return nil
}

// Get retrieves the record for a key.
func (r *GormLedgerRepository) Get(ctx context.Context, key string) (*ledger.Record, error) {
	var model IdempotencyModel
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("IdempotencyRecord", key)
		}
		return nil, fmt.Errorf("failed to load idempotency record: %w", err)
	}
	return toDomainRecord(&model), nil
}

func toDomainRecord(m *IdempotencyModel) *ledger.Record {
	return &ledger.Record{
		Key:          m.Key,
		Status:       ledger.RecordStatus(m.Status),
		BookingID:    m.BookingID,
		ErrorCode:    m.ErrorCode,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
