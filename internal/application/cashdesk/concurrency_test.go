package cashdesk_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	appcashdesk "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/clinicdesk/backend/internal/infrastructure/cache"
	"github.com/clinicdesk/backend/internal/infrastructure/persistence/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type harness struct {
	tenantID uuid.UUID
	userID   uuid.UUID
	store    *memory.Store
	sessions *appcashdesk.SessionService
	entries  *appcashdesk.EntryService
	reports  *appcashdesk.ReportService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	locker := cache.NewInMemorySessionLocker()
	opts := appcashdesk.DefaultOptions()
	opts.Now = func() time.Time { return time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC) }

	idem := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idem.Close() })

	entries := appcashdesk.NewEntryService(store, store.SessionRepo(), store.EntryRepo(), locker, opts)
	entries.SetIdempotencyStore(idem)
	return &harness{
		tenantID: uuid.New(),
		userID:   uuid.New(),
		store:    store,
		sessions: appcashdesk.NewSessionService(store, store.SessionRepo(), store.EntryRepo(), locker, opts),
		entries:  entries,
		reports:  appcashdesk.NewReportService(store.SessionRepo(), store.EntryRepo(), opts),
	}
}

func (h *harness) open(t *testing.T, site, opening string) *appcashdesk.SessionResponse {
	t.Helper()
	balance := decimal.RequireFromString(opening)
	resp, err := h.sessions.Open(context.Background(), h.tenantID, appcashdesk.OpenSessionRequest{
		Site:           site,
		OpeningBalance: &balance,
		OpenedBy:       h.userID,
	})
	require.NoError(t, err)
	return resp
}

func (h *harness) income(site, amount, key string) appcashdesk.CreateEntryRequest {
	patient := "P-1"
	return appcashdesk.CreateEntryRequest{
		Site:           site,
		Kind:           "INCOME",
		Category:       "SERVICES",
		Amount:         decimal.RequireFromString(amount),
		PaymentMethod:  "CASH",
		PatientRef:     &patient,
		CreatedBy:      h.userID,
		IdempotencyKey: key,
	}
}

func TestConcurrentEntriesKeepTotalsExact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "main", "100")

	const workers, perWorker = 8, 25
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				if _, err := h.entries.Create(ctx, h.tenantID, h.income("main", "10", "")); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	current, err := h.sessions.GetByID(ctx, h.tenantID, session.ID)
	require.NoError(t, err)
	expected := decimal.NewFromInt(workers * perWorker * 10)
	assert.True(t, current.TotalIncome.Equal(expected), "total income %s", current.TotalIncome)
	assert.True(t, current.TheoreticalBalance.Equal(expected.Add(decimal.NewFromInt(100))))
	assert.Equal(t, workers*perWorker, current.EntryCount)

	list, err := h.entries.ListBySession(ctx, h.tenantID, session.ID)
	require.NoError(t, err)
	receipts := make(map[string]struct{}, len(list))
	for _, e := range list {
		receipts[e.ReceiptNumber] = struct{}{}
	}
	assert.Len(t, receipts, workers*perWorker)
	assert.Contains(t, receipts, "R-2024-001")
	assert.Contains(t, receipts, fmt.Sprintf("R-2024-%03d", workers*perWorker))
}

func TestConcurrentOpensHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wins, conflicts int32
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := h.sessions.Open(ctx, h.tenantID, appcashdesk.OpenSessionRequest{Site: "main", OpenedBy: h.userID})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case shared.IsKind(err, shared.KindConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(15), conflicts)
}

func TestConcurrentRetriesWithOneIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "main", "0")

	ids := make([]uuid.UUID, 10)
	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			resp, err := h.entries.Create(ctx, h.tenantID, h.income("main", "25", "retry-1"))
			if err != nil {
				return err
			}
			ids[i] = resp.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	current, err := h.sessions.GetByID(ctx, h.tenantID, session.ID)
	require.NoError(t, err)
	assert.True(t, current.TotalIncome.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, 1, current.EntryCount)
}

func TestCloseRacingEntriesStaysConsistent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.open(t, "main", "50")

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := h.entries.Create(ctx, h.tenantID, h.income("main", "5", ""))
			if err != nil && !shared.IsKind(err, shared.KindPrecondition) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		declared := decimal.NewFromInt(50)
		_, err := h.sessions.Close(ctx, h.tenantID, session.ID, appcashdesk.CloseSessionRequest{
			DeclaredBalance: &declared,
			ClosedBy:        h.userID,
		})
		return err
	})
	require.NoError(t, g.Wait())

	closed, err := h.sessions.GetByID(ctx, h.tenantID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, string(cashdesk.SessionStateClosed), closed.State)

	list, err := h.entries.ListBySession(ctx, h.tenantID, session.ID)
	require.NoError(t, err)
	assert.Len(t, list, closed.EntryCount)
	assert.True(t, closed.TotalIncome.Equal(decimal.NewFromInt(int64(5*len(list)))))
	assert.True(t, closed.Discrepancy.Equal(decimal.NewFromInt(int64(-5*len(list)))))
}

func TestVoidThenReportExcludesEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.open(t, "main", "0")

	kept, err := h.entries.Create(ctx, h.tenantID, h.income("main", "40", ""))
	require.NoError(t, err)
	voided, err := h.entries.Create(ctx, h.tenantID, h.income("main", "15", ""))
	require.NoError(t, err)
	_, err = h.entries.Void(ctx, h.tenantID, voided.ID, appcashdesk.VoidEntryRequest{Reason: "wrong patient", VoidedBy: h.userID})
	require.NoError(t, err)

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	daily, err := h.reports.DailyEntrySummary(ctx, h.tenantID, day, "main")
	require.NoError(t, err)
	require.Equal(t, 1, daily.Income.Count)
	assert.Equal(t, kept.ID, daily.Income.Entries[0].ID)
	assert.True(t, daily.Net.Equal(decimal.NewFromInt(40)))

	summary, err := h.reports.SummaryByDateRange(ctx, h.tenantID, day, day, "")
	require.NoError(t, err)
	assert.True(t, summary.Totals.TotalIncome.Equal(decimal.NewFromInt(40)))
}
