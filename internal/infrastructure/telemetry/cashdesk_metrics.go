package telemetry

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const cashdeskMeterName = "cashdesk"

// Outcome values recorded on cashdesk_sessions_closed_total.
const (
	OutcomeBalanced = "balanced"
	OutcomeIncident = "incident"
)

// CashdeskMetrics records business measurements of the cash desk. It satisfies the
// application's MetricsRecorder port and is fed from domain events.
type CashdeskMetrics struct {
	sessionsClosed   *Counter
	incidentsRaised  *Counter
	entriesPosted    *Counter
	entriesVoided    *Counter
	discrepancy      *Histogram
	entryAmount      *Histogram
	materialityLimit decimal.Decimal
}

// NewCashdeskMetrics creates the instruments. materiality is the absolute discrepancy
// above which a closing is counted as an incident.
func NewCashdeskMetrics(mp *MeterProvider, materiality decimal.Decimal) (*CashdeskMetrics, error) {
	meter := mp.Meter(cashdeskMeterName)
	m := &CashdeskMetrics{materialityLimit: materiality.Abs()}

	var err error
	if m.sessionsClosed, err = NewCounter(meter, "cashdesk_sessions_closed_total",
		"Number of cash sessions closed", "{session}"); err != nil {
		return nil, err
	}
	if m.incidentsRaised, err = NewCounter(meter, "cashdesk_incidents_raised_total",
		"Number of incidents raised on cash sessions", "{incident}"); err != nil {
		return nil, err
	}
	if m.entriesPosted, err = NewCounter(meter, "cashdesk_entries_posted_total",
		"Number of ledger entries posted", "{entry}"); err != nil {
		return nil, err
	}
	if m.entriesVoided, err = NewCounter(meter, "cashdesk_entries_voided_total",
		"Number of ledger entries voided", "{entry}"); err != nil {
		return nil, err
	}
	if m.discrepancy, err = NewHistogram(meter, HistogramOpts{
		Name:        "cashdesk_closing_discrepancy",
		Description: "Absolute difference between declared and theoretical balance at closing",
		Unit:        "{currency}",
		Boundaries:  DiscrepancyBuckets,
	}); err != nil {
		return nil, err
	}
	if m.entryAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "cashdesk_entry_amount",
		Description: "Amount of posted ledger entries",
		Unit:        "{currency}",
		Boundaries:  AmountBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordSessionClosed counts a closing and records its absolute discrepancy.
func (m *CashdeskMetrics) RecordSessionClosed(ctx context.Context, site string, discrepancy decimal.Decimal) {
	abs := discrepancy.Abs()
	outcome := OutcomeBalanced
	if abs.GreaterThan(m.materialityLimit) {
		outcome = OutcomeIncident
	}
	m.sessionsClosed.Inc(ctx, AttrSite.String(site), AttrOutcome.String(outcome))
	m.discrepancy.Record(ctx, abs.InexactFloat64(), AttrSite.String(site))
}

// RecordIncidentRaised counts an incident by kind.
func (m *CashdeskMetrics) RecordIncidentRaised(ctx context.Context, site, kind string) {
	m.incidentsRaised.Inc(ctx, AttrSite.String(site), AttrIncidentKind.String(kind))
}

// RecordEntryPosted counts a posted entry and records its amount.
func (m *CashdeskMetrics) RecordEntryPosted(ctx context.Context, site, kind, method string, amount decimal.Decimal) {
	attrs := []attribute.KeyValue{
		AttrSite.String(site),
		AttrEntryKind.String(kind),
		AttrPaymentMethod.String(method),
	}
	m.entriesPosted.Inc(ctx, attrs...)
	m.entryAmount.Record(ctx, amount.InexactFloat64(), attrs...)
}

// RecordEntryVoided counts a voided entry.
func (m *CashdeskMetrics) RecordEntryVoided(ctx context.Context, site, kind string) {
	m.entriesVoided.Inc(ctx, AttrSite.String(site), AttrEntryKind.String(kind))
}

