package middleware

import (
	"net/http"

	"github.com/clinicdesk/backend/internal/infrastructure/logger"
	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing wraps otelgin. Spans are named "METHOD route" and only server errors mark
// the span as failed; 4xx are the caller's problem.
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	base := otelgin.Middleware(cfg.ServiceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)
	return func(c *gin.Context) {
		base(c)
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// TracingAttributeInjector tags the active span with the request id and the operator.
// Place it after Identity.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			attrs := make([]attribute.KeyValue, 0, 4)
			if id := c.GetString(logger.RequestIDKey); id != "" {
				attrs = append(attrs, attribute.String("request_id", id))
			}
			if op, ok := GetOperator(c); ok {
				attrs = append(attrs,
					telemetry.AttrTenantID.String(op.TenantID.String()),
					attribute.String("enduser.id", op.UserID.String()),
				)
				if op.Site != "" {
					attrs = append(attrs, telemetry.AttrSite.String(op.Site))
				}
			}
			span.SetAttributes(attrs...)
		}
		c.Next()
	}
}
