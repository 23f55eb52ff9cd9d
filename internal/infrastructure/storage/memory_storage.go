package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"time"

	appcashdesk "github.com/clinicdesk/backend/internal/application/cashdesk"
)

var _ appcashdesk.AttachmentStorage = (*MemoryAttachmentStorage)(nil)

// MemoryAttachmentRoute is the path the server mounts MemoryAttachmentStorage downloads on
const MemoryAttachmentRoute = "/_attachments"

var (
	// ErrLinkInvalid is returned for a download link with a bad signature or a passed expiry
	ErrLinkInvalid = errors.New("download link is invalid or expired")
	// ErrObjectNotFound is returned when the linked object no longer exists
	ErrObjectNotFound = errors.New("object not found")
)

// StoredObject is an attachment held by MemoryAttachmentStorage
type StoredObject struct {
	Data        []byte
	ContentType string
}

// MemoryAttachmentStorage keeps attachments in process memory.
// Used in development when no bucket is configured, and in tests.
// Download links are signed with a per-process key and served by Open.
type MemoryAttachmentStorage struct {
	// BaseURL prefixes generated download links
	BaseURL string

	secret  []byte
	mu      sync.RWMutex
	objects map[string]StoredObject
}

// NewMemoryAttachmentStorage creates an empty in-memory storage
func NewMemoryAttachmentStorage() *MemoryAttachmentStorage {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return &MemoryAttachmentStorage{
		BaseURL: MemoryAttachmentRoute,
		secret:  secret,
		objects: make(map[string]StoredObject),
	}
}

// Upload stores a copy of data
func (s *MemoryAttachmentStorage) Upload(_ context.Context, storageKey string, data []byte, contentType string) error {
	if storageKey == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storageKey] = StoredObject{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
	}
	return nil
}

// GenerateDownloadURL returns a signed link under BaseURL that carries its expiry
func (s *MemoryAttachmentStorage) GenerateDownloadURL(
	_ context.Context,
	storageKey string,
	expiresIn time.Duration,
) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, ErrEmptyKey
	}
	expiresAt := time.Now().Add(expiresIn).Truncate(time.Second)
	expires := strconv.FormatInt(expiresAt.Unix(), 10)
	query := url.Values{
		"expires":   {expires},
		"signature": {s.sign(storageKey, expires)},
	}
	link := s.BaseURL + "/" + url.PathEscape(storageKey) + "?" + query.Encode()
	return link, expiresAt, nil
}

// Open returns the object behind a link issued by GenerateDownloadURL
func (s *MemoryAttachmentStorage) Open(storageKey, expires, signature string, now time.Time) (StoredObject, error) {
	if storageKey == "" {
		return StoredObject{}, ErrEmptyKey
	}
	if !hmac.Equal([]byte(signature), []byte(s.sign(storageKey, expires))) {
		return StoredObject{}, ErrLinkInvalid
	}
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || now.Unix() > unix {
		return StoredObject{}, ErrLinkInvalid
	}
	obj, ok := s.Get(storageKey)
	if !ok {
		return StoredObject{}, ErrObjectNotFound
	}
	return obj, nil
}

func (s *MemoryAttachmentStorage) sign(storageKey, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(storageKey + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// DeleteObject removes the object if present
func (s *MemoryAttachmentStorage) DeleteObject(_ context.Context, storageKey string) error {
	if storageKey == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, storageKey)
	return nil
}

// Get returns the stored object
func (s *MemoryAttachmentStorage) Get(storageKey string) (StoredObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[storageKey]
	return obj, ok
}

// Len returns the number of stored objects
func (s *MemoryAttachmentStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
