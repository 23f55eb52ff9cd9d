package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/clinicdesk/backend/internal/infrastructure/auth"
	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func withOperator(op *auth.Operator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(OperatorKey, op)
		c.Next()
	}
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, zap.NewNop())

	r := gin.New()
	r.Use(HTTPMetrics(mp, zap.NewNop()))
	r.GET("/api/v1/cashdesk/sessions/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for range 2 {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/cashdesk/sessions/"+uuid.NewString(), nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_server_request_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				route, _ := dp.Attributes.Value(telemetry.AttrHTTPRoute)
				counts[route.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), counts["/api/v1/cashdesk/sessions/:id"])
	assert.Equal(t, int64(1), counts["unknown"])
}

func TestHTTPMetrics_DisabledProvider(t *testing.T) {
	var mp *telemetry.MeterProvider
	r := gin.New()
	r.Use(HTTPMetrics(mp, nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	op := &auth.Operator{TenantID: uuid.New(), UserID: uuid.New(), Site: "north"}
	r := gin.New()
	r.Use(RequestID(), Tracing(TracingConfig{ServiceName: "cashdesk", Enabled: true}), withOperator(op), TracingAttributeInjector())
	r.POST("/sessions/:id/close", func(c *gin.Context) { c.Status(http.StatusConflict) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sessions/1/close", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	closeSpan := spans[0]
	assert.Equal(t, "POST /sessions/:id/close", closeSpan.Name())
	assert.NotEqual(t, codes.Error, closeSpan.Status().Code)
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range closeSpan.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, op.TenantID.String(), attrs[telemetry.AttrTenantID].AsString())
	assert.Equal(t, "north", attrs[telemetry.AttrSite].AsString())
	assert.NotEmpty(t, attrs["request_id"].AsString())

	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestProfilingLabels(t *testing.T) {
	op := &auth.Operator{TenantID: uuid.New(), UserID: uuid.New(), Site: "north"}
	var labels map[string]string

	r := gin.New()
	r.Use(withOperator(op), Profiling(true))
	r.POST("/api/v1/cashdesk/entries/:id/void", func(c *gin.Context) {
		labels = map[string]string{}
		pprof.ForLabels(c.Request.Context(), func(k, v string) bool {
			labels[k] = v
			return true
		})
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/cashdesk/entries/42/void", nil))

	assert.Equal(t, "POST", labels[telemetry.ProfilingLabelMethod])
	assert.Equal(t, "entries", labels[telemetry.ProfilingLabelController])
	assert.Equal(t, "north", labels[telemetry.ProfilingLabelSite])
	assert.Equal(t, op.TenantID.String(), labels[telemetry.ProfilingLabelTenantID])
}

func TestControllerFromRoute(t *testing.T) {
	assert.Equal(t, "sessions", controllerFromRoute("/api/v1/cashdesk/sessions/:id/close"))
	assert.Equal(t, "reports", controllerFromRoute("/api/v1/cashdesk/reports/entries/daily"))
	assert.Equal(t, "health", controllerFromRoute("/health"))
	assert.Equal(t, "", controllerFromRoute("/:id"))
	assert.Equal(t, "", controllerFromRoute(""))
}

func TestSwaggerProtection(t *testing.T) {
	build := func(cfg SwaggerConfig) *gin.Engine {
		r := gin.New()
		r.GET("/swagger/*any", SwaggerProtection(cfg, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}
	get := func(r *gin.Engine, remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNotFound, get(build(SwaggerConfig{}), "10.0.0.1:1234"))

	open := build(SwaggerConfig{Enabled: true})
	assert.Equal(t, http.StatusOK, get(open, "203.0.113.9:1234"))

	restricted := build(SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8", "192.168.1.5"}})
	assert.Equal(t, http.StatusOK, get(restricted, "10.2.3.4:1234"))
	assert.Equal(t, http.StatusOK, get(restricted, "192.168.1.5:1234"))
	assert.Equal(t, http.StatusForbidden, get(restricted, "192.168.1.6:1234"))
}
