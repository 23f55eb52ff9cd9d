package persistence

import (
	"context"
	"time"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReceiptCounterRepository hands out receipt sequence numbers from the receipt_counters table.
// The increment is a single upsert, so concurrent transactions queue on the counter row
// and a rolled back transaction gives its number back.
type GormReceiptCounterRepository struct {
	db *gorm.DB
}

// NewGormReceiptCounterRepository creates a new GormReceiptCounterRepository
func NewGormReceiptCounterRepository(db *gorm.DB) *GormReceiptCounterRepository {
	return &GormReceiptCounterRepository{db: db}
}

const nextReceiptSQL = `INSERT INTO receipt_counters (tenant_id, year, last_value, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (tenant_id, year) DO UPDATE
SET last_value = receipt_counters.last_value + 1, updated_at = excluded.updated_at
RETURNING last_value`

// Next increments and returns the counter of the tenant and year, starting at 1
func (r *GormReceiptCounterRepository) Next(ctx context.Context, tenantID uuid.UUID, year int) (int, error) {
	var next int
	if err := r.db.WithContext(ctx).Raw(nextReceiptSQL, tenantID, year, time.Now().UTC()).Scan(&next).Error; err != nil {
		return 0, wrapDBError("next receipt number", err)
	}
	return next, nil
}

var _ cashdesk.ReceiptCounterRepository = (*GormReceiptCounterRepository)(nil)
