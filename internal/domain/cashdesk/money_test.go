package cashdesk

import (
	"testing"
	"time"

	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMoney(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"0", true},
		{"12.3456", true},
		{"12.34560000", true},
		{"-40.5", true},
		{"1000000000000", true},
		{"0.00001", false},
		{"12.34567", false},
		{"1000000000000.0001", false},
		{"-100000000000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := CheckMoney("Amount", decimal.RequireFromString(tt.value))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, shared.IsKind(err, shared.KindValidation))
			assert.False(t, shared.IsRetryable(err))
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, CodeInvalidAmount, de.Code)
		})
	}
}

func TestNewCashSession_RejectsUnstorableOpeningBalance(t *testing.T) {
	for _, v := range []string{"0.00001", "100000000000000"} {
		_, err := NewCashSession(OpenSessionParams{
			TenantID:       uuid.New(),
			Site:           "norte",
			BusinessDate:   time.Now(),
			OpeningBalance: decimal.RequireFromString(v),
			OpenedBy:       uuid.New(),
		})
		assert.True(t, shared.IsKind(err, shared.KindValidation), v)
	}
}

func TestCashSession_CloseRejectsUnstorableCounts(t *testing.T) {
	policy := DefaultReconciliationPolicy()

	t.Run("declared balance with too many decimals", func(t *testing.T) {
		s := newTestSession(t, 0)
		declared := decimal.RequireFromString("0.00001")
		_, err := s.Close(CloseParams{DeclaredBalance: &declared, ClosedBy: uuid.New(), Policy: policy})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.True(t, s.IsOpen())
	})

	t.Run("declared balance above maximum", func(t *testing.T) {
		s := newTestSession(t, 0)
		declared := decimal.New(1, 14)
		_, err := s.Close(CloseParams{DeclaredBalance: &declared, ClosedBy: uuid.New(), Policy: policy})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.True(t, s.IsOpen())
	})

	t.Run("denomination with too many decimals", func(t *testing.T) {
		s := newTestSession(t, 0)
		breakdown := Breakdown{{Value: decimal.RequireFromString("0.00005"), Count: 2}}
		_, err := s.Close(CloseParams{Breakdown: breakdown, ClosedBy: uuid.New(), Policy: policy})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.True(t, s.IsOpen())
	})

	t.Run("breakdown total above maximum", func(t *testing.T) {
		s := newTestSession(t, 0)
		breakdown := Breakdown{{Value: decimal.NewFromInt(500), Count: 1 << 31}}
		_, err := s.Close(CloseParams{Breakdown: breakdown, ClosedBy: uuid.New(), Policy: policy})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.True(t, s.IsOpen())
	})
}

func TestCashSession_LinkEntryRejectsTotalOverflow(t *testing.T) {
	s := newTestSession(t, 0)
	entry := newTestEntry(t, s, EntryKindIncome, CategoryDeposit, 10, PaymentMethodCash)
	s.TotalIncome = maxTotal.Sub(decimal.NewFromInt(5))

	err := s.LinkEntry(entry)
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	assert.True(t, s.TotalIncome.Equal(maxTotal.Sub(decimal.NewFromInt(5))))
	assert.False(t, s.IsLinked(entry.ID))
	assert.True(t, s.TotalsByMethod.Cash.IsZero())
}

func TestCashSession_AddIncidentRejectsUnstorableAmount(t *testing.T) {
	s := newTestSession(t, 0)
	amount := decimal.RequireFromString("3.141592")
	_, err := s.AddIncident(IncidentKindSurplus, "coins", &amount, uuid.New())
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	assert.Empty(t, s.Incidents)
}
