package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cashdeskapp "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/clinicdesk/backend/internal/infrastructure/auth"
	"github.com/clinicdesk/backend/internal/infrastructure/cache"
	"github.com/clinicdesk/backend/internal/infrastructure/persistence/memory"
	"github.com/clinicdesk/backend/internal/infrastructure/storage"
	"github.com/clinicdesk/backend/internal/interfaces/http/dto"
	"github.com/clinicdesk/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

type testAPI struct {
	engine *gin.Engine
	op     *auth.Operator
	store  *memory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	store := memory.NewStore()
	locker := cache.NewInMemorySessionLocker()
	opts := cashdeskapp.DefaultOptions()
	opts.Now = func() time.Time { return testNow }

	idem := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idem.Close() })

	sessions := cashdeskapp.NewSessionService(store, store.SessionRepo(), store.EntryRepo(), locker, opts)
	entries := cashdeskapp.NewEntryService(store, store.SessionRepo(), store.EntryRepo(), locker, opts)
	entries.SetIdempotencyStore(idem)
	entries.SetAttachmentStorage(storage.NewMemoryAttachmentStorage())
	reports := cashdeskapp.NewReportService(store.SessionRepo(), store.EntryRepo(), opts)

	api := &testAPI{
		op:    &auth.Operator{TenantID: uuid.New(), UserID: uuid.New(), Username: "ana", Site: "main"},
		store: store,
	}

	sh := NewSessionHandler(sessions, entries)
	eh := NewEntryHandler(entries, 1<<10)
	rh := NewReportHandler(reports)
	rh.now = func() time.Time { return testNow }

	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		if api.op != nil {
			c.Set(middleware.OperatorKey, api.op)
		}
		c.Next()
	})
	g := r.Group("/api/v1/cashdesk")
	g.POST("/sessions", sh.Open)
	g.GET("/sessions", sh.List)
	g.GET("/sessions/current", sh.GetCurrent)
	g.GET("/sessions/:id", sh.GetByID)
	g.GET("/sessions/:id/entries", sh.ListEntries)
	g.POST("/sessions/:id/close", sh.Close)
	g.POST("/sessions/:id/reopen", sh.Reopen)
	g.POST("/sessions/:id/incidents", sh.AddIncident)
	g.POST("/sessions/:id/incidents/:incident_id/resolve", sh.ResolveIncident)
	g.POST("/entries", eh.Create)
	g.GET("/entries/:id", eh.GetByID)
	g.PATCH("/entries/:id", eh.Update)
	g.POST("/entries/:id/void", eh.Void)
	g.POST("/entries/:id/attachments", eh.Attach)
	g.GET("/entries/:id/attachments/url", eh.AttachmentURL)
	g.GET("/reports/sessions", rh.SessionSummary)
	g.GET("/reports/entries/daily", rh.DailyEntrySummary)
	g.GET("/reports/entries", rh.RangeEntrySummary)
	api.engine = r
	return api
}

func (a *testAPI) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "/api/v1/cashdesk"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

// envelope decodes the data part of a success response into T
func envelope[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Success bool      `json:"success"`
		Data    T         `json:"data"`
		Meta    *dto.Meta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.True(t, resp.Success, w.Body.String())
	return resp.Data
}

func errorInfo(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func (a *testAPI) openSession(t *testing.T, opening string) cashdeskapp.SessionResponse {
	t.Helper()
	w := a.do(http.MethodPost, "/sessions", map[string]any{"site": "main", "opening_balance": opening})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return envelope[cashdeskapp.SessionResponse](t, w)
}

func (a *testAPI) income(t *testing.T, amount string, headers ...string) cashdeskapp.EntryResponse {
	t.Helper()
	w := a.do(http.MethodPost, "/entries", map[string]any{
		"kind":           "INCOME",
		"category":       "SERVICES",
		"amount":         amount,
		"payment_method": "CASH",
		"patient_ref":    "P-100",
	}, headers...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return envelope[cashdeskapp.EntryResponse](t, w)
}

func multipartFile(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type failingScope struct{}

func (failingScope) Execute(context.Context, func(cashdeskapp.TransactionalRepositories) error) error {
	return shared.NewInfrastructureError("begin transaction", errors.New("connection refused"))
}

func jsonUnmarshal(w *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}
