package persistence

import (
	"context"
	"fmt"

	"github.com/clinicdesk/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// CashdeskIndexes are the unique indexes gorm tags cannot express: tenant_id comes from
// the embedded aggregate model and the open-session rule needs a partial index.
// The SQL migrations create the same indexes.
var CashdeskIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cash_sessions_one_open
		ON cash_sessions (tenant_id, site, business_date) WHERE state = 'OPEN'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_receipt
		ON ledger_entries (tenant_id, receipt_number) WHERE receipt_number IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_idempotency
		ON ledger_entries (tenant_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
}

// AutoMigrateCashdesk creates the cash desk tables and indexes.
// Production schemas come from the migrations directory; this is used by tests and local runs.
func AutoMigrateCashdesk(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(models.CashdeskModels()...); err != nil {
		return fmt.Errorf("auto migrate cash desk tables: %w", err)
	}
	for _, stmt := range CashdeskIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create cash desk index: %w", err)
		}
	}
	return nil
}
