package cashdesk

import (
	"context"
	"strings"
	"time"

	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

// SessionLocker serialises the mutations of one site
type SessionLocker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases the lock.
	Lock(ctx context.Context, key string) (func(), error)
}

// LockKey returns the lock key of a site within a tenant
func LockKey(tenantID uuid.UUID, site string) string {
	return "cashdesk:site:" + tenantID.String() + ":" + strings.TrimSpace(site)
}

// AttachmentStorage stores files attached to ledger entries
type AttachmentStorage interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
	DeleteObject(ctx context.Context, storageKey string) error
}

// MetricsRecorder receives business measurements derived from domain events
type MetricsRecorder interface {
	RecordSessionClosed(ctx context.Context, site string, discrepancy decimal.Decimal)
	RecordIncidentRaised(ctx context.Context, site, kind string)
	RecordEntryPosted(ctx context.Context, site, kind, method string, amount decimal.Decimal)
	RecordEntryVoided(ctx context.Context, site, kind string)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// withRetry re-runs fn while it fails with an optimistic-lock conflict
func withRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !shared.IsKind(err, shared.KindConcurrency) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		telemetry.AddEvent(trace.SpanFromContext(ctx), "optimistic_lock_retry", telemetry.SpanAttrAttempt, i+1)
	}
	return err
}

func isNotFound(err error) bool {
	return shared.IsKind(err, shared.KindNotFound)
}

// publish hands the pending events of the aggregates to the publisher after commit.
// Publishing errors are logged by the event bus and never fail the operation.
func publish(ctx context.Context, publisher shared.EventPublisher, aggregates ...shared.AggregateRoot) {
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		events := agg.GetDomainEvents()
		agg.ClearDomainEvents()
		if publisher == nil || len(events) == 0 {
			continue
		}
		_ = publisher.Publish(ctx, events...)
	}
}
