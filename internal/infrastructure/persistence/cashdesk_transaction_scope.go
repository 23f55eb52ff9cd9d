package persistence

import (
	"context"

	appcashdesk "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// The session, its entries and the receipt counter are written in one transaction.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcashdesk.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
	return wrapDBError("cash desk transaction", err)
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// SessionRepo returns the session repository scoped to the current transaction.
func (r *gormTransactionalRepositories) SessionRepo() cashdesk.CashSessionRepository {
	return NewGormCashSessionRepository(r.tx)
}

// EntryRepo returns the ledger entry repository scoped to the current transaction.
func (r *gormTransactionalRepositories) EntryRepo() cashdesk.LedgerEntryRepository {
	return NewGormLedgerEntryRepository(r.tx)
}

// ReceiptRepo returns the receipt counter scoped to the current transaction.
func (r *gormTransactionalRepositories) ReceiptRepo() cashdesk.ReceiptCounterRepository {
	return NewGormReceiptCounterRepository(r.tx)
}

var _ appcashdesk.TransactionScope = (*GormTransactionScope)(nil)
var _ appcashdesk.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
