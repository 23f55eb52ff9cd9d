package cashdesk

import (
	"context"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
)

// TransactionScope provides transactional access to cash desk repositories.
// All repository calls made inside fn are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to one transaction.
//
//   - SessionRepo: the CashSession aggregate with its incidents and change log.
//   - EntryRepo: ledger entries; linked to a session through their session id.
//   - ReceiptRepo: the per-year receipt counter, incremented in the same transaction as the entry insert.
type TransactionalRepositories interface {
	SessionRepo() cashdesk.CashSessionRepository
	EntryRepo() cashdesk.LedgerEntryRepository
	ReceiptRepo() cashdesk.ReceiptCounterRepository
}

// NoOpTransactionScope runs the function directly against the given repositories
type NoOpTransactionScope struct {
	sessionRepo cashdesk.CashSessionRepository
	entryRepo   cashdesk.LedgerEntryRepository
	receiptRepo cashdesk.ReceiptCounterRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	sessionRepo cashdesk.CashSessionRepository,
	entryRepo cashdesk.LedgerEntryRepository,
	receiptRepo cashdesk.ReceiptCounterRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		sessionRepo: sessionRepo,
		entryRepo:   entryRepo,
		receiptRepo: receiptRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// SessionRepo returns the session repository.
func (s *NoOpTransactionScope) SessionRepo() cashdesk.CashSessionRepository {
	return s.sessionRepo
}

// EntryRepo returns the ledger entry repository.
func (s *NoOpTransactionScope) EntryRepo() cashdesk.LedgerEntryRepository {
	return s.entryRepo
}

// ReceiptRepo returns the receipt counter repository.
func (s *NoOpTransactionScope) ReceiptRepo() cashdesk.ReceiptCounterRepository {
	return s.receiptRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
