// Package memory provides an in-memory cash desk store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	appcashdesk "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

type counterKey struct {
	tenantID uuid.UUID
	year     int
}

type state struct {
	sessions map[uuid.UUID]cashdesk.CashSession
	entries  map[uuid.UUID]cashdesk.LedgerEntry
	counters map[counterKey]int
}

func (s state) clone() state {
	out := state{
		sessions: make(map[uuid.UUID]cashdesk.CashSession, len(s.sessions)),
		entries:  make(map[uuid.UUID]cashdesk.LedgerEntry, len(s.entries)),
		counters: make(map[counterKey]int, len(s.counters)),
	}
	for k, v := range s.sessions {
		out.sessions[k] = v
	}
	for k, v := range s.entries {
		out.entries[k] = v
	}
	for k, v := range s.counters {
		out.counters[k] = v
	}
	return out
}

// Store keeps sessions, entries and receipt counters in memory.
// Transactions are serialised and run against a staged copy that replaces the state only on success.
type Store struct {
	mu    sync.Mutex
	state state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: state{
		sessions: make(map[uuid.UUID]cashdesk.CashSession),
		entries:  make(map[uuid.UUID]cashdesk.LedgerEntry),
		counters: make(map[counterKey]int),
	}}
}

// Execute runs fn against a staged copy of the store and commits it when fn succeeds
func (m *Store) Execute(ctx context.Context, fn func(repos appcashdesk.TransactionalRepositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	staged := m.state.clone()
	if err := fn(&view{state: &staged}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

// SessionRepo returns a session repository over the committed state
func (m *Store) SessionRepo() cashdesk.CashSessionRepository {
	return &sessionRepo{store: m}
}

// EntryRepo returns an entry repository over the committed state
func (m *Store) EntryRepo() cashdesk.LedgerEntryRepository {
	return &entryRepo{store: m}
}

// ReceiptRepo returns a receipt counter over the committed state
func (m *Store) ReceiptRepo() cashdesk.ReceiptCounterRepository {
	return &receiptRepo{store: m}
}

func (m *Store) read(fn func(v *view) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&view{state: &m.state})
}

func (m *Store) write(fn func(v *view) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.state.clone()
	if err := fn(&view{state: &staged}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

var _ appcashdesk.TransactionScope = (*Store)(nil)
var _ appcashdesk.TransactionalRepositories = (*Store)(nil)

// view implements the repositories against one state value; the caller holds the store lock
type view struct {
	state *state
}

func (v *view) SessionRepo() cashdesk.CashSessionRepository {
	return &sessionRepo{view: v}
}

func (v *view) EntryRepo() cashdesk.LedgerEntryRepository {
	return &entryRepo{view: v}
}

func (v *view) ReceiptRepo() cashdesk.ReceiptCounterRepository {
	return &receiptRepo{view: v}
}

// ===================== copies =====================

func copySession(s cashdesk.CashSession) cashdesk.CashSession {
	s.Incidents = append([]cashdesk.Incident(nil), s.Incidents...)
	s.ChangeLog = append([]cashdesk.ChangeRecord(nil), s.ChangeLog...)
	s.EntryIDs = append([]uuid.UUID(nil), s.EntryIDs...)
	s.Breakdown = append(cashdesk.Breakdown(nil), s.Breakdown...)
	s.ClearDomainEvents()
	return s
}

func copyEntry(e cashdesk.LedgerEntry) cashdesk.LedgerEntry {
	e.Attachments = append([]string{}, e.Attachments...)
	e.ClearDomainEvents()
	return e
}

// ===================== view operations =====================

func (v *view) session(tenantID, id uuid.UUID) (*cashdesk.CashSession, error) {
	s, ok := v.state.sessions[id]
	if !ok || s.TenantID != tenantID {
		return nil, cashdesk.ErrSessionNotFound(id)
	}
	out := copySession(s)
	return &out, nil
}

func (v *view) openConflict(s *cashdesk.CashSession) bool {
	if !s.IsOpen() {
		return false
	}
	for id, other := range v.state.sessions {
		if id != s.ID && other.TenantID == s.TenantID && other.Site == s.Site &&
			other.BusinessDate.Equal(s.BusinessDate) && other.IsOpen() {
			return true
		}
	}
	return false
}

func (v *view) sessionsWhere(match func(s *cashdesk.CashSession) bool) []cashdesk.CashSession {
	out := make([]cashdesk.CashSession, 0)
	for _, s := range v.state.sessions {
		if match(&s) {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BusinessDate.Equal(out[j].BusinessDate) {
			return out[i].BusinessDate.After(out[j].BusinessDate)
		}
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	return out
}

func (v *view) entriesWhere(match func(e *cashdesk.LedgerEntry) bool) []cashdesk.LedgerEntry {
	out := make([]cashdesk.LedgerEntry, 0)
	for _, e := range v.state.entries {
		if match(&e) {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out
}

// ===================== session repository =====================

type sessionRepo struct {
	store *Store
	view  *view
}

func (r *sessionRepo) do(write bool, fn func(v *view) error) error {
	if r.view != nil {
		return fn(r.view)
	}
	if write {
		return r.store.write(fn)
	}
	return r.store.read(fn)
}

func (r *sessionRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*cashdesk.CashSession, error) {
	var out *cashdesk.CashSession
	err := r.do(false, func(v *view) error {
		var err error
		out, err = v.session(tenantID, id)
		return err
	})
	return out, err
}

func (r *sessionRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*cashdesk.CashSession, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *sessionRepo) FindOpen(_ context.Context, tenantID uuid.UUID, site string, businessDate time.Time) (*cashdesk.CashSession, error) {
	day := cashdesk.BusinessDay(businessDate, time.UTC)
	var out *cashdesk.CashSession
	err := r.do(false, func(v *view) error {
		found := v.sessionsWhere(func(s *cashdesk.CashSession) bool {
			return s.TenantID == tenantID && s.Site == site && s.IsOpen() && s.BusinessDate.Equal(day)
		})
		if len(found) == 0 {
			return shared.ErrNotFound
		}
		out = &found[0]
		return nil
	})
	return out, err
}

func (r *sessionRepo) FindOpenBySite(_ context.Context, tenantID uuid.UUID, site string) ([]cashdesk.CashSession, error) {
	var out []cashdesk.CashSession
	err := r.do(false, func(v *view) error {
		out = v.sessionsWhere(func(s *cashdesk.CashSession) bool {
			return s.TenantID == tenantID && s.Site == site && s.IsOpen()
		})
		return nil
	})
	return out, err
}

func (r *sessionRepo) FindLastClosed(_ context.Context, tenantID uuid.UUID, site string) (*cashdesk.CashSession, error) {
	var out *cashdesk.CashSession
	err := r.do(false, func(v *view) error {
		closed := v.sessionsWhere(func(s *cashdesk.CashSession) bool {
			return s.TenantID == tenantID && s.Site == site && !s.IsOpen() && s.ClosedAt != nil
		})
		if len(closed) == 0 {
			return shared.ErrNotFound
		}
		sort.SliceStable(closed, func(i, j int) bool { return closed[i].ClosedAt.After(*closed[j].ClosedAt) })
		out = &closed[0]
		return nil
	})
	return out, err
}

func (r *sessionRepo) FindAll(_ context.Context, tenantID uuid.UUID, filter cashdesk.SessionFilter) ([]cashdesk.CashSession, int64, error) {
	var (
		out   []cashdesk.CashSession
		total int64
	)
	err := r.do(false, func(v *view) error {
		all := v.sessionsWhere(func(s *cashdesk.CashSession) bool {
			if s.TenantID != tenantID {
				return false
			}
			if filter.Site != "" && s.Site != filter.Site {
				return false
			}
			if filter.State != nil && s.State != *filter.State {
				return false
			}
			if filter.From != nil && s.BusinessDate.Before(cashdesk.BusinessDay(*filter.From, time.UTC)) {
				return false
			}
			if filter.To != nil && s.BusinessDate.After(cashdesk.BusinessDay(*filter.To, time.UTC)) {
				return false
			}
			return true
		})
		total = int64(len(all))
		start := filter.Offset()
		if start > len(all) {
			start = len(all)
		}
		end := len(all)
		if filter.PageSize > 0 && start+filter.PageSize < end {
			end = start + filter.PageSize
		}
		out = all[start:end]
		return nil
	})
	return out, total, err
}

func (r *sessionRepo) FindInRange(_ context.Context, tenantID uuid.UUID, from, to time.Time, site string) ([]cashdesk.CashSession, error) {
	var out []cashdesk.CashSession
	err := r.do(false, func(v *view) error {
		out = v.sessionsWhere(func(s *cashdesk.CashSession) bool {
			return s.TenantID == tenantID && (site == "" || s.Site == site) &&
				!s.BusinessDate.Before(from) && !s.BusinessDate.After(to)
		})
		return nil
	})
	return out, err
}

func (r *sessionRepo) Create(_ context.Context, session *cashdesk.CashSession) error {
	return r.do(true, func(v *view) error {
		if _, exists := v.state.sessions[session.ID]; exists {
			return shared.ErrAlreadyExists
		}
		if v.openConflict(session) {
			return cashdesk.ErrSessionAlreadyOpen(session.Site)
		}
		v.state.sessions[session.ID] = copySession(*session)
		return nil
	})
}

func (r *sessionRepo) SaveWithLock(_ context.Context, session *cashdesk.CashSession) error {
	return r.do(true, func(v *view) error {
		stored, ok := v.state.sessions[session.ID]
		if !ok || stored.TenantID != session.TenantID {
			return cashdesk.ErrSessionNotFound(session.ID)
		}
		if stored.Version != session.Version {
			return shared.ErrConcurrencyConflict
		}
		if v.openConflict(session) {
			return cashdesk.ErrSessionAlreadyOpen(session.Site)
		}
		session.IncrementVersion()
		v.state.sessions[session.ID] = copySession(*session)
		return nil
	})
}

// ===================== entry repository =====================

type entryRepo struct {
	store *Store
	view  *view
}

func (r *entryRepo) do(write bool, fn func(v *view) error) error {
	if r.view != nil {
		return fn(r.view)
	}
	if write {
		return r.store.write(fn)
	}
	return r.store.read(fn)
}

func (r *entryRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*cashdesk.LedgerEntry, error) {
	var out *cashdesk.LedgerEntry
	err := r.do(false, func(v *view) error {
		e, ok := v.state.entries[id]
		if !ok || e.TenantID != tenantID {
			return cashdesk.ErrEntryNotFound(id)
		}
		c := copyEntry(e)
		out = &c
		return nil
	})
	return out, err
}

func (r *entryRepo) FindByIdempotencyKey(_ context.Context, tenantID uuid.UUID, key string) (*cashdesk.LedgerEntry, error) {
	var out *cashdesk.LedgerEntry
	err := r.do(false, func(v *view) error {
		found := v.entriesWhere(func(e *cashdesk.LedgerEntry) bool {
			return e.TenantID == tenantID && key != "" && e.IdempotencyKey == key
		})
		if len(found) == 0 {
			return shared.ErrNotFound
		}
		out = &found[0]
		return nil
	})
	return out, err
}

func (r *entryRepo) FindBySession(_ context.Context, tenantID, sessionID uuid.UUID) ([]cashdesk.LedgerEntry, error) {
	var out []cashdesk.LedgerEntry
	err := r.do(false, func(v *view) error {
		out = v.entriesWhere(func(e *cashdesk.LedgerEntry) bool {
			return e.TenantID == tenantID && e.SessionID == sessionID
		})
		return nil
	})
	return out, err
}

func (r *entryRepo) Find(_ context.Context, tenantID uuid.UUID, filter cashdesk.EntryFilter) ([]cashdesk.LedgerEntry, error) {
	var out []cashdesk.LedgerEntry
	err := r.do(false, func(v *view) error {
		out = v.entriesWhere(func(e *cashdesk.LedgerEntry) bool {
			switch {
			case e.TenantID != tenantID:
				return false
			case !filter.IncludeVoided && !e.IsPosted():
				return false
			case filter.Site != "" && e.Site != filter.Site:
				return false
			case filter.Kind != nil && e.Kind != *filter.Kind:
				return false
			case filter.SessionID != nil && e.SessionID != *filter.SessionID:
				return false
			case filter.From != nil && e.RecordedAt.Before(*filter.From):
				return false
			case filter.To != nil && !e.RecordedAt.Before(*filter.To):
				return false
			}
			return true
		})
		return nil
	})
	return out, err
}

func (r *entryRepo) Create(_ context.Context, entry *cashdesk.LedgerEntry) error {
	return r.do(true, func(v *view) error {
		if _, exists := v.state.entries[entry.ID]; exists {
			return shared.ErrAlreadyExists
		}
		for _, other := range v.state.entries {
			if other.TenantID != entry.TenantID {
				continue
			}
			if entry.IdempotencyKey != "" && other.IdempotencyKey == entry.IdempotencyKey {
				return shared.NewConflictError("DUPLICATE_IDEMPOTENCY_KEY", "An entry with this idempotency key already exists")
			}
			if entry.ReceiptNumber != "" && other.ReceiptNumber == entry.ReceiptNumber {
				return shared.NewConflictError("DUPLICATE_RECEIPT_NUMBER", "Receipt number already issued")
			}
		}
		v.state.entries[entry.ID] = copyEntry(*entry)
		return nil
	})
}

func (r *entryRepo) Save(_ context.Context, entry *cashdesk.LedgerEntry) error {
	return r.do(true, func(v *view) error {
		stored, ok := v.state.entries[entry.ID]
		if !ok || stored.TenantID != entry.TenantID {
			return cashdesk.ErrEntryNotFound(entry.ID)
		}
		if stored.Version != entry.Version {
			return shared.ErrConcurrencyConflict
		}
		entry.IncrementVersion()
		v.state.entries[entry.ID] = copyEntry(*entry)
		return nil
	})
}

// ===================== receipt counter =====================

type receiptRepo struct {
	store *Store
	view  *view
}

func (r *receiptRepo) Next(_ context.Context, tenantID uuid.UUID, year int) (int, error) {
	var n int
	fn := func(v *view) error {
		k := counterKey{tenantID: tenantID, year: year}
		v.state.counters[k]++
		n = v.state.counters[k]
		return nil
	}
	var err error
	if r.view != nil {
		err = fn(r.view)
	} else {
		err = r.store.write(fn)
	}
	return n, err
}
