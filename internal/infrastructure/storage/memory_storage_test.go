package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAttachmentStorage(t *testing.T) {
	s := NewMemoryAttachmentStorage()
	ctx := context.Background()

	t.Run("upload keeps a copy", func(t *testing.T) {
		data := []byte("scan")
		require.NoError(t, s.Upload(ctx, "entries/a/scan.png", data, "image/png"))
		data[0] = 'X'

		obj, ok := s.Get("entries/a/scan.png")
		require.True(t, ok)
		assert.Equal(t, "scan", string(obj.Data))
		assert.Equal(t, "image/png", obj.ContentType)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("download url carries key and expiry", func(t *testing.T) {
		url, expiresAt, err := s.GenerateDownloadURL(ctx, "entries/a/scan.png", time.Minute)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, s.BaseURL+"/"))
		assert.Contains(t, url, "expires=")
		assert.True(t, expiresAt.After(time.Now()))
	})

	t.Run("delete removes the object", func(t *testing.T) {
		require.NoError(t, s.DeleteObject(ctx, "entries/a/scan.png"))
		_, ok := s.Get("entries/a/scan.png")
		assert.False(t, ok)
		require.NoError(t, s.DeleteObject(ctx, "entries/a/scan.png"))
	})

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, s.Upload(ctx, "", nil, ""), ErrEmptyKey)
		assert.ErrorIs(t, s.DeleteObject(ctx, ""), ErrEmptyKey)
		_, _, err := s.GenerateDownloadURL(ctx, "", time.Minute)
		assert.ErrorIs(t, err, ErrEmptyKey)
	})
}

func TestMemoryAttachmentStorage_Open(t *testing.T) {
	s := NewMemoryAttachmentStorage()
	ctx := context.Background()
	key := "cashdesk/t1/entries/e1/0badf00d-scan.pdf"
	require.NoError(t, s.Upload(ctx, key, []byte("%PDF"), "application/pdf"))

	link, expiresAt, err := s.GenerateDownloadURL(ctx, key, time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, MemoryAttachmentRoute+"/"+key, u.Path)
	expires, signature := u.Query().Get("expires"), u.Query().Get("signature")

	obj, err := s.Open(key, expires, signature, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(obj.Data))
	assert.Equal(t, "application/pdf", obj.ContentType)

	_, err = s.Open(key, expires, signature, expiresAt.Add(2*time.Second))
	assert.ErrorIs(t, err, ErrLinkInvalid)

	_, err = s.Open(key, expires, strings.Repeat("0", len(signature)), time.Now())
	assert.ErrorIs(t, err, ErrLinkInvalid)

	_, err = s.Open("cashdesk/t2/entries/e2/0badf00d-scan.pdf", expires, signature, time.Now())
	assert.ErrorIs(t, err, ErrLinkInvalid)

	other := NewMemoryAttachmentStorage()
	_, err = other.Open(key, expires, signature, time.Now())
	assert.ErrorIs(t, err, ErrLinkInvalid)

	require.NoError(t, s.DeleteObject(ctx, key))
	_, err = s.Open(key, expires, signature, time.Now())
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
