package cashdesk

import (
	"context"
	"sync"
	"time"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher collects published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockSessionRepository is a mock implementation of cashdesk.CashSessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*cashdesk.CashSession, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cashdesk.CashSession), args.Error(1)
}

func (m *MockSessionRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*cashdesk.CashSession, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cashdesk.CashSession), args.Error(1)
}

func (m *MockSessionRepository) FindOpen(ctx context.Context, tenantID uuid.UUID, site string, businessDate time.Time) (*cashdesk.CashSession, error) {
	args := m.Called(ctx, tenantID, site, businessDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cashdesk.CashSession), args.Error(1)
}

func (m *MockSessionRepository) FindOpenBySite(ctx context.Context, tenantID uuid.UUID, site string) ([]cashdesk.CashSession, error) {
	args := m.Called(ctx, tenantID, site)
	return args.Get(0).([]cashdesk.CashSession), args.Error(1)
}

func (m *MockSessionRepository) FindLastClosed(ctx context.Context, tenantID uuid.UUID, site string) (*cashdesk.CashSession, error) {
	args := m.Called(ctx, tenantID, site)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cashdesk.CashSession), args.Error(1)
}

func (m *MockSessionRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter cashdesk.SessionFilter) ([]cashdesk.CashSession, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]cashdesk.CashSession), args.Get(1).(int64), args.Error(2)
}

func (m *MockSessionRepository) FindInRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time, site string) ([]cashdesk.CashSession, error) {
	args := m.Called(ctx, tenantID, from, to, site)
	return args.Get(0).([]cashdesk.CashSession), args.Error(1)
}

func (m *MockSessionRepository) Create(ctx context.Context, session *cashdesk.CashSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) SaveWithLock(ctx context.Context, session *cashdesk.CashSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

// MockEntryRepository is a mock implementation of cashdesk.LedgerEntryRepository
type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*cashdesk.LedgerEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cashdesk.LedgerEntry), args.Error(1)
}

func (m *MockEntryRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*cashdesk.LedgerEntry, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cashdesk.LedgerEntry), args.Error(1)
}

func (m *MockEntryRepository) FindBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]cashdesk.LedgerEntry, error) {
	args := m.Called(ctx, tenantID, sessionID)
	return args.Get(0).([]cashdesk.LedgerEntry), args.Error(1)
}

func (m *MockEntryRepository) Find(ctx context.Context, tenantID uuid.UUID, filter cashdesk.EntryFilter) ([]cashdesk.LedgerEntry, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]cashdesk.LedgerEntry), args.Error(1)
}

func (m *MockEntryRepository) Create(ctx context.Context, entry *cashdesk.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEntryRepository) Save(ctx context.Context, entry *cashdesk.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockReceiptRepository is a mock implementation of cashdesk.ReceiptCounterRepository
type MockReceiptRepository struct {
	mock.Mock
}

func (m *MockReceiptRepository) Next(ctx context.Context, tenantID uuid.UUID, year int) (int, error) {
	args := m.Called(ctx, tenantID, year)
	return args.Int(0), args.Error(1)
}

// MockAttachmentStorage is a mock implementation of AttachmentStorage
type MockAttachmentStorage struct {
	mock.Mock
}

func (m *MockAttachmentStorage) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	args := m.Called(ctx, storageKey, data, contentType)
	return args.Error(0)
}

func (m *MockAttachmentStorage) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, storageKey, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockAttachmentStorage) DeleteObject(ctx context.Context, storageKey string) error {
	args := m.Called(ctx, storageKey)
	return args.Error(0)
}

// MockMetricsRecorder is a mock implementation of MetricsRecorder
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordSessionClosed(ctx context.Context, site string, discrepancy decimal.Decimal) {
	m.Called(ctx, site, discrepancy)
}

func (m *MockMetricsRecorder) RecordIncidentRaised(ctx context.Context, site, kind string) {
	m.Called(ctx, site, kind)
}

func (m *MockMetricsRecorder) RecordEntryPosted(ctx context.Context, site, kind, method string, amount decimal.Decimal) {
	m.Called(ctx, site, kind, method, amount)
}

func (m *MockMetricsRecorder) RecordEntryVoided(ctx context.Context, site, kind string) {
	m.Called(ctx, site, kind)
}

// mapIdempotencyStore is a minimal shared.IdempotencyStore
type mapIdempotencyStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMapIdempotencyStore() *mapIdempotencyStore {
	return &mapIdempotencyStore{values: make(map[string]string)}
}

func (s *mapIdempotencyStore) Remember(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value
	return true, nil
}

func (s *mapIdempotencyStore) Lookup(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *mapIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *mapIdempotencyStore) Close() error { return nil }

// countingLocker records the keys it was asked to lock
type countingLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *countingLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return func() {}, nil
}

type serviceFixture struct {
	tenantID    uuid.UUID
	userID      uuid.UUID
	sessionRepo *MockSessionRepository
	entryRepo   *MockEntryRepository
	receiptRepo *MockReceiptRepository
	txScope     *NoOpTransactionScope
	locker      *countingLocker
	publisher   *MockEventPublisher
	opts        Options
}

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		tenantID:    uuid.New(),
		userID:      uuid.New(),
		sessionRepo: new(MockSessionRepository),
		entryRepo:   new(MockEntryRepository),
		receiptRepo: new(MockReceiptRepository),
		locker:      &countingLocker{},
		publisher:   NewMockEventPublisher(),
	}
	f.txScope = NewNoOpTransactionScope(f.sessionRepo, f.entryRepo, f.receiptRepo)
	f.opts = DefaultOptions()
	f.opts.Now = func() time.Time { return fixedNow }
	return f
}

func (f *serviceFixture) sessionService() *SessionService {
	svc := NewSessionService(f.txScope, f.sessionRepo, f.entryRepo, f.locker, f.opts)
	svc.SetEventPublisher(f.publisher)
	return svc
}

func (f *serviceFixture) entryService() *EntryService {
	svc := NewEntryService(f.txScope, f.sessionRepo, f.entryRepo, f.locker, f.opts)
	svc.SetEventPublisher(f.publisher)
	return svc
}

func (f *serviceFixture) openSession(opening string) *cashdesk.CashSession {
	s, err := cashdesk.NewCashSession(cashdesk.OpenSessionParams{
		TenantID:       f.tenantID,
		Site:           "main",
		BusinessDate:   fixedNow,
		OpeningBalance: decimal.RequireFromString(opening),
		OpenedBy:       f.userID,
	})
	if err != nil {
		panic(err)
	}
	s.ClearDomainEvents()
	return s
}

func (f *serviceFixture) postedEntry(s *cashdesk.CashSession, kind cashdesk.EntryKind, category cashdesk.Category, amount string) *cashdesk.LedgerEntry {
	patient := "P-1"
	e, err := cashdesk.NewLedgerEntry(cashdesk.NewEntryParams{
		TenantID:      f.tenantID,
		Session:       s,
		Kind:          kind,
		Category:      category,
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: cashdesk.PaymentMethodCash,
		PatientRef:    &patient,
		CreatedBy:     f.userID,
	})
	if err != nil {
		panic(err)
	}
	if err := s.LinkEntry(e); err != nil {
		panic(err)
	}
	e.ClearDomainEvents()
	return e
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
