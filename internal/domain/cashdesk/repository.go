package cashdesk

import (
	"context"
	"time"

	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SessionFilter narrows session listings
type SessionFilter struct {
	shared.Filter
	Site  string
	State *SessionState
	From  *time.Time
	To    *time.Time
}

// EntryFilter narrows entry queries. Voided entries are only returned when IncludeVoided is set.
type EntryFilter struct {
	Site          string
	Kind          *EntryKind
	SessionID     *uuid.UUID
	From          *time.Time
	To            *time.Time
	IncludeVoided bool
}

// CashSessionRepository persists the CashSession aggregate with its incidents and change log
type CashSessionRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*CashSession, error)
	// FindByIDForUpdate loads the session and locks its row until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*CashSession, error)
	// FindOpen returns the open session of the site on the business date
	FindOpen(ctx context.Context, tenantID uuid.UUID, site string, businessDate time.Time) (*CashSession, error)
	// FindOpenBySite returns every open session of a site regardless of date
	FindOpenBySite(ctx context.Context, tenantID uuid.UUID, site string) ([]CashSession, error)
	// FindLastClosed returns the most recently closed session of the site
	FindLastClosed(ctx context.Context, tenantID uuid.UUID, site string) (*CashSession, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter SessionFilter) ([]CashSession, int64, error)
	FindInRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time, site string) ([]CashSession, error)
	// Create inserts a new session. A second open session for the same site and day is a conflict.
	Create(ctx context.Context, session *CashSession) error
	// SaveWithLock persists the aggregate if its version is unchanged and bumps the version
	SaveWithLock(ctx context.Context, session *CashSession) error
}

// LedgerEntryRepository persists ledger entries
type LedgerEntryRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*LedgerEntry, error)
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*LedgerEntry, error)
	FindBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]LedgerEntry, error)
	Find(ctx context.Context, tenantID uuid.UUID, filter EntryFilter) ([]LedgerEntry, error)
	Create(ctx context.Context, entry *LedgerEntry) error
	Save(ctx context.Context, entry *LedgerEntry) error
}

// ReceiptCounterRepository hands out receipt sequence numbers
type ReceiptCounterRepository interface {
	// Next atomically increments and returns the counter of the tenant and year, starting at 1
	Next(ctx context.Context, tenantID uuid.UUID, year int) (int, error)
}
