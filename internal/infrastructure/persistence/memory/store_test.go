package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	appcashdesk "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var businessDate = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

func openSession(t *testing.T, tenantID uuid.UUID, site string) *cashdesk.CashSession {
	t.Helper()
	s, err := cashdesk.NewCashSession(cashdesk.OpenSessionParams{
		TenantID:       tenantID,
		Site:           site,
		BusinessDate:   businessDate,
		OpeningBalance: decimal.NewFromInt(100),
		OpenedBy:       uuid.New(),
	})
	require.NoError(t, err)
	return s
}

func TestStore_OneOpenSessionPerSiteAndDay(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tenantID := uuid.New()

	require.NoError(t, store.SessionRepo().Create(ctx, openSession(t, tenantID, "centro")))
	err := store.SessionRepo().Create(ctx, openSession(t, tenantID, "centro"))
	assert.True(t, shared.IsKind(err, shared.KindConflict))

	require.NoError(t, store.SessionRepo().Create(ctx, openSession(t, tenantID, "norte")))
	require.NoError(t, store.SessionRepo().Create(ctx, openSession(t, uuid.New(), "centro")))
}

func TestStore_SiteFiltersMatchExactly(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tenantID := uuid.New()
	require.NoError(t, store.SessionRepo().Create(ctx, openSession(t, tenantID, "Centro")))

	list, total, err := store.SessionRepo().FindAll(ctx, tenantID, cashdesk.SessionFilter{Site: "centro"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
	inRange, err := store.SessionRepo().FindInRange(ctx, tenantID, businessDate, businessDate, "centro")
	require.NoError(t, err)
	assert.Empty(t, inRange)

	list, total, err = store.SessionRepo().FindAll(ctx, tenantID, cashdesk.SessionFilter{Site: "Centro"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
	inRange, err = store.SessionRepo().FindInRange(ctx, tenantID, businessDate, businessDate, "Centro")
	require.NoError(t, err)
	assert.Len(t, inRange, 1)
}

func TestStore_SaveWithLockDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tenantID := uuid.New()
	s := openSession(t, tenantID, "centro")
	require.NoError(t, store.SessionRepo().Create(ctx, s))

	first, err := store.SessionRepo().FindByID(ctx, tenantID, s.ID)
	require.NoError(t, err)
	second, err := store.SessionRepo().FindByID(ctx, tenantID, s.ID)
	require.NoError(t, err)

	require.NoError(t, store.SessionRepo().SaveWithLock(ctx, first))
	assert.Equal(t, 2, first.Version)

	err = store.SessionRepo().SaveWithLock(ctx, second)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.True(t, shared.IsRetryable(err))
}

func TestStore_ExecuteRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tenantID := uuid.New()
	s := openSession(t, tenantID, "centro")
	boom := errors.New("boom")

	err := store.Execute(ctx, func(repos appcashdesk.TransactionalRepositories) error {
		require.NoError(t, repos.SessionRepo().Create(ctx, s))
		n, err := repos.ReceiptRepo().Next(ctx, tenantID, 2024)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.SessionRepo().FindByID(ctx, tenantID, s.ID)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
	n, err := store.ReceiptRepo().Next(ctx, tenantID, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "rolled back counter increments must not leave gaps")
}

func TestStore_ReturnedAggregatesAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tenantID := uuid.New()
	s := openSession(t, tenantID, "centro")
	require.NoError(t, store.SessionRepo().Create(ctx, s))

	loaded, err := store.SessionRepo().FindByID(ctx, tenantID, s.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.GetDomainEvents())
	loaded.ChangeLog[0].Action = "TAMPERED"
	loaded.TotalIncome = decimal.NewFromInt(999)

	again, err := store.SessionRepo().FindByID(ctx, tenantID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, cashdesk.ChangeActionOpened, again.ChangeLog[0].Action)
	assert.True(t, again.TotalIncome.IsZero())
}

func TestStore_EntryQueries(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tenantID := uuid.New()
	s := openSession(t, tenantID, "centro")
	require.NoError(t, store.SessionRepo().Create(ctx, s))

	patient := "p-1"
	mk := func(kind cashdesk.EntryKind, category cashdesk.Category, amount int64, key string) *cashdesk.LedgerEntry {
		e, err := cashdesk.NewLedgerEntry(cashdesk.NewEntryParams{
			TenantID: tenantID, Session: s, Kind: kind, Category: category,
			Amount: decimal.NewFromInt(amount), PaymentMethod: cashdesk.PaymentMethodCash,
			PatientRef: &patient, CreatedBy: uuid.New(), IdempotencyKey: key,
		})
		require.NoError(t, err)
		return e
	}
	income := mk(cashdesk.EntryKindIncome, cashdesk.CategoryServices, 40, "k-1")
	expense := mk(cashdesk.EntryKindExpense, cashdesk.CategoryRent, 10, "")
	voided := mk(cashdesk.EntryKindIncome, cashdesk.CategoryDeposit, 5, "")
	require.NoError(t, voided.Void("typo", uuid.New()))
	for _, e := range []*cashdesk.LedgerEntry{income, expense, voided} {
		require.NoError(t, store.EntryRepo().Create(ctx, e))
	}

	dup := mk(cashdesk.EntryKindIncome, cashdesk.CategoryServices, 40, "k-1")
	assert.True(t, shared.IsKind(store.EntryRepo().Create(ctx, dup), shared.KindConflict))

	found, err := store.EntryRepo().FindByIdempotencyKey(ctx, tenantID, "k-1")
	require.NoError(t, err)
	assert.Equal(t, income.ID, found.ID)

	all, err := store.EntryRepo().FindBySession(ctx, tenantID, s.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	posted, err := store.EntryRepo().Find(ctx, tenantID, cashdesk.EntryFilter{Site: "centro"})
	require.NoError(t, err)
	assert.Len(t, posted, 2)

	kind := cashdesk.EntryKindExpense
	expenses, err := store.EntryRepo().Find(ctx, tenantID, cashdesk.EntryFilter{Kind: &kind, IncludeVoided: true})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, expense.ID, expenses[0].ID)
}
