package handler

import (
	"net/http"
	"testing"

	cashdeskapp "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDay(t *testing.T, api *testAPI) {
	t.Helper()
	api.openSession(t, "100")
	api.income(t, "80")
	voided := api.income(t, "20")
	w := api.do(http.MethodPost, "/entries/"+voided.ID.String()+"/void", map[string]any{"reason": "typo"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(http.MethodPost, "/entries", map[string]any{
		"kind":           "EXPENSE",
		"category":       "PETTY_CASH",
		"amount":         "15",
		"payment_method": "CASH",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestReportHandler_DailyEntrySummary(t *testing.T) {
	api := newTestAPI(t)
	seedDay(t, api)

	for _, query := range []string{"?date=2024-06-03&site=main", ""} {
		w := api.do(http.MethodGet, "/reports/entries/daily"+query, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		summary := envelope[cashdeskapp.DailyEntrySummaryResponse](t, w)

		assert.Equal(t, "2024-06-03", summary.Date)
		assert.Equal(t, 1, summary.Income.Count)
		assert.True(t, summary.Income.Total.Equal(decimal.NewFromInt(80)))
		assert.Equal(t, 1, summary.Expense.Count)
		assert.True(t, summary.Net.Equal(decimal.NewFromInt(65)))
	}

	w := api.do(http.MethodGet, "/reports/entries/daily?date=03/06/2024", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	info := errorInfo(t, w)
	assert.Equal(t, dto.ErrCodeValidation, info.Code)
	require.Len(t, info.Details, 1)
	assert.Equal(t, "date", info.Details[0].Field)
}

func TestReportHandler_RangeEntrySummary(t *testing.T) {
	api := newTestAPI(t)
	seedDay(t, api)

	w := api.do(http.MethodGet, "/reports/entries?from=2024-06-01&to=2024-06-03", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := envelope[cashdeskapp.RangeEntrySummaryResponse](t, w)
	assert.Len(t, summary.Entries, 2)
	assert.Equal(t, 1, summary.IncomeCount)
	assert.Equal(t, 1, summary.ExpenseCount)
	assert.True(t, summary.TotalExpense.Equal(decimal.NewFromInt(15)))

	w = api.do(http.MethodGet, "/reports/entries?from=2024-06-01&to=2024-06-03&kind=expense", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary = envelope[cashdeskapp.RangeEntrySummaryResponse](t, w)
	require.Len(t, summary.Entries, 1)
	assert.Equal(t, "EXPENSE", summary.Entries[0].Kind)

	w = api.do(http.MethodGet, "/reports/entries?from=2024-06-03&to=2024-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, cashdesk.CodeInvalidDateRange, errorInfo(t, w).Code)

	w = api.do(http.MethodGet, "/reports/entries?to=2024-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, cashdesk.CodeInvalidDateRange, errorInfo(t, w).Code)

	w = api.do(http.MethodGet, "/reports/entries?from=2024-06-01&to=2024-06-03&kind=TRANSFER", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, cashdesk.CodeInvalidEntryKind, errorInfo(t, w).Code)
}

func TestReportHandler_SessionSummary(t *testing.T) {
	api := newTestAPI(t)
	s := api.openSession(t, "100")
	api.income(t, "50")
	w := api.do(http.MethodPost, "/sessions/"+s.ID.String()+"/close", map[string]any{"declared_balance": "140"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/reports/sessions?from=2024-06-01&to=2024-06-30&site=main", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := envelope[cashdeskapp.SessionSummaryResponse](t, w)
	assert.Equal(t, "2024-06-01", summary.From)
	assert.Equal(t, 1, summary.Totals.Sessions)
	assert.Equal(t, 0, summary.Totals.OpenSessions)
	assert.True(t, summary.Totals.TotalIncome.Equal(decimal.NewFromInt(50)))
	assert.True(t, summary.Totals.TotalDiscrepancy.Equal(decimal.NewFromInt(-10)))
	require.Len(t, summary.Sites, 1)
	assert.Equal(t, "main", summary.Sites[0].Site)
}
