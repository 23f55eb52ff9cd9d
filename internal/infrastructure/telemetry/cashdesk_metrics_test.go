package telemetry_test

import (
	"context"
	"testing"

	appcashdesk "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var _ appcashdesk.MetricsRecorder = (*telemetry.CashdeskMetrics)(nil)

func TestCashdeskMetrics_SessionClosedOutcome(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	m, err := telemetry.NewCashdeskMetrics(mp, decimal.NewFromInt(5))
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordSessionClosed(ctx, "downtown", decimal.Zero)
	m.RecordSessionClosed(ctx, "downtown", decimal.NewFromInt(5))
	m.RecordSessionClosed(ctx, "downtown", decimal.NewFromInt(-60))

	rm := collect(t, reader)
	site := telemetry.AttrSite.String("downtown")
	assert.Equal(t, int64(2), sumFor(t, rm, "cashdesk_sessions_closed_total",
		site, telemetry.AttrOutcome.String(telemetry.OutcomeBalanced)))
	assert.Equal(t, int64(1), sumFor(t, rm, "cashdesk_sessions_closed_total",
		site, telemetry.AttrOutcome.String(telemetry.OutcomeIncident)))

	hm, ok := findMetric(rm, "cashdesk_closing_discrepancy")
	require.True(t, ok)
	hist := hm.Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(3), hist.DataPoints[0].Count)
	assert.InDelta(t, 65.0, hist.DataPoints[0].Sum, 1e-9)
}

func TestCashdeskMetrics_Entries(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	m, err := telemetry.NewCashdeskMetrics(mp, decimal.NewFromInt(5))
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordEntryPosted(ctx, "north", "INCOME", "CASH", decimal.RequireFromString("120.50"))
	m.RecordEntryPosted(ctx, "north", "INCOME", "CARD", decimal.NewFromInt(80))
	m.RecordEntryPosted(ctx, "north", "EXPENSE", "CASH", decimal.NewFromInt(15))
	m.RecordEntryVoided(ctx, "north", "INCOME")
	m.RecordIncidentRaised(ctx, "north", "shortfall")

	rm := collect(t, reader)
	site := telemetry.AttrSite.String("north")
	assert.Equal(t, int64(3), sumFor(t, rm, "cashdesk_entries_posted_total"))
	assert.Equal(t, int64(1), sumFor(t, rm, "cashdesk_entries_posted_total",
		site, telemetry.AttrEntryKind.String("INCOME"), telemetry.AttrPaymentMethod.String("CARD")))
	assert.Equal(t, int64(1), sumFor(t, rm, "cashdesk_entries_voided_total",
		site, telemetry.AttrEntryKind.String("INCOME")))
	assert.Equal(t, int64(1), sumFor(t, rm, "cashdesk_incidents_raised_total",
		site, telemetry.AttrIncidentKind.String("shortfall")))

	_, ok := findMetric(rm, "cashdesk_entry_amount")
	assert.True(t, ok)
}
