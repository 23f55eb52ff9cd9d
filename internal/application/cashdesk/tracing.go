package cashdesk

import (
	"context"

	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
)

// traced runs a retried unit of work inside one "cashdesk.<op>" span.
// CPU samples taken inside it carry the operation and site as profiler labels.
func traced(ctx context.Context, op, site string, attempts int, fn func(ctx context.Context) error) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "cashdesk", op,
		telemetry.WithAttribute(telemetry.SpanAttrSite, site))
	defer span.End()

	var err error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(op, site), func(ctx context.Context) {
		err = withRetry(ctx, attempts, func() error { return fn(ctx) })
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetOK(span)
	return nil
}
