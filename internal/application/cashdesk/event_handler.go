package cashdesk

import (
	"context"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ActivityMonitor turns cash desk events into business metrics and discrepancy alerts in the log
type ActivityMonitor struct {
	logger  *zap.Logger
	metrics MetricsRecorder
}

// NewActivityMonitor creates a new ActivityMonitor. metrics may be nil.
func NewActivityMonitor(logger *zap.Logger, metrics MetricsRecorder) *ActivityMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityMonitor{logger: logger, metrics: metrics}
}

// EventTypes returns the event types this handler is interested in
func (h *ActivityMonitor) EventTypes() []string {
	return []string{
		cashdesk.EventTypeCashSessionClosed,
		cashdesk.EventTypeCashSessionReopened,
		cashdesk.EventTypeDiscrepancyIncidentRaised,
		cashdesk.EventTypeLedgerEntryPosted,
		cashdesk.EventTypeLedgerEntryVoided,
	}
}

// Handle processes one event
func (h *ActivityMonitor) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *cashdesk.CashSessionClosedEvent:
		if h.metrics != nil {
			h.metrics.RecordSessionClosed(ctx, e.Site, e.Discrepancy)
		}
	case *cashdesk.CashSessionReopenedEvent:
		h.logger.Warn("Cash session reopened",
			zap.String("tenant_id", e.TenantID().String()),
			zap.String("session_id", e.SessionID.String()),
			zap.String("site", e.Site),
			zap.String("reason", e.Reason))
	case *cashdesk.DiscrepancyIncidentRaisedEvent:
		h.logger.Warn("Cash discrepancy incident raised",
			zap.String("tenant_id", e.TenantID().String()),
			zap.String("session_id", e.SessionID.String()),
			zap.String("incident_id", e.IncidentID.String()),
			zap.String("site", e.Site),
			zap.String("kind", string(e.Kind)),
			zap.String("discrepancy", e.Discrepancy.String()))
		if h.metrics != nil {
			h.metrics.RecordIncidentRaised(ctx, e.Site, string(e.Kind))
		}
	case *cashdesk.LedgerEntryPostedEvent:
		if h.metrics != nil {
			h.metrics.RecordEntryPosted(ctx, e.Site, string(e.Kind), string(e.PaymentMethod), e.Amount)
		}
	case *cashdesk.LedgerEntryVoidedEvent:
		if h.metrics != nil {
			h.metrics.RecordEntryVoided(ctx, e.Site, string(e.Kind))
		}
	default:
		h.logger.Debug("Ignoring event", zap.String("event_type", event.EventType()))
	}
	return nil
}

var _ shared.EventHandler = (*ActivityMonitor)(nil)
