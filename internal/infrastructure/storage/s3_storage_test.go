package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/clinicdesk/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeS3 answers the handful of path-style S3 calls the storage makes
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) object(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[path]
	return b, ok
}

func testStorageConfig(endpoint string) *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:            "cashdesk-test",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		Region:            "us-east-1",
		Endpoint:          endpoint,
		UsePathStyle:      true,
		PresignExpiration: 15 * time.Minute,
	}
}

func TestNewS3AttachmentStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3AttachmentStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3AttachmentStorage(&config.StorageConfig{AccessKey: "k", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing credentials return error", func(t *testing.T) {
		_, err := NewS3AttachmentStorage(&config.StorageConfig{Bucket: "b", AccessKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "credentials are required")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		s, err := NewS3AttachmentStorage(testStorageConfig("http://localhost:9000"))
		require.NoError(t, err)
		assert.Equal(t, "cashdesk-test", s.Bucket())
		assert.Equal(t, 15*time.Minute, s.expiry)
	})

	t.Run("default presign expiration", func(t *testing.T) {
		cfg := testStorageConfig("localhost:9000")
		cfg.PresignExpiration = 0
		s, err := NewS3AttachmentStorage(cfg)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, s.expiry)
	})

	t.Run("options override defaults", func(t *testing.T) {
		s, err := NewS3AttachmentStorage(testStorageConfig("http://localhost:9000"),
			WithLogger(zaptest.NewLogger(t)),
			WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, s.expiry)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"", false, "http://localhost:9000"},
		{"minio:9000", false, "http://minio:9000"},
		{"s3.example.com", true, "https://s3.example.com"},
		{"https://s3.example.com", false, "https://s3.example.com"},
	}
	for _, tt := range tests {
		got, err := normalizeEndpoint(tt.in, tt.useSSL)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestS3AttachmentStorage_EmptyKey(t *testing.T) {
	s, err := NewS3AttachmentStorage(testStorageConfig("http://localhost:9000"))
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, s.Upload(ctx, "", []byte("x"), "text/plain"), ErrEmptyKey)
	assert.ErrorIs(t, s.DeleteObject(ctx, ""), ErrEmptyKey)
	_, _, err = s.GenerateDownloadURL(ctx, "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, err = s.ObjectExists(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestS3AttachmentStorage_GenerateDownloadURL(t *testing.T) {
	s, err := NewS3AttachmentStorage(testStorageConfig("http://localhost:9000"))
	require.NoError(t, err)

	url, expiresAt, err := s.GenerateDownloadURL(context.Background(), "entries/t/e/receipt.pdf", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "localhost:9000")
	assert.Contains(t, url, "cashdesk-test")
	assert.Contains(t, url, "X-Amz-Signature")
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	_, expiresAt, err = s.GenerateDownloadURL(context.Background(), "entries/t/e/receipt.pdf", 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)
}

func TestS3AttachmentStorage_RoundTrip(t *testing.T) {
	fake, srv := newFakeS3(t)
	s, err := NewS3AttachmentStorage(testStorageConfig(srv.URL))
	require.NoError(t, err)
	ctx := context.Background()
	key := "entries/tenant/entry/receipt.txt"

	require.NoError(t, s.Upload(ctx, key, []byte("paid in cash"), "text/plain"))

	body, ok := fake.object("cashdesk-test/" + key)
	require.True(t, ok)
	assert.Contains(t, string(body), "paid in cash")

	exists, err := s.ObjectExists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DeleteObject(ctx, key))

	exists, err = s.ObjectExists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestS3AttachmentStorage_FailuresAreRetryable(t *testing.T) {
	fake, srv := newFakeS3(t)
	fake.fail = true
	s, err := NewS3AttachmentStorage(testStorageConfig(srv.URL))
	require.NoError(t, err)

	err = s.Upload(context.Background(), "entries/a", []byte("x"), "text/plain")
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
}
