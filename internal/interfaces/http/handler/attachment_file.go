package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/clinicdesk/backend/internal/infrastructure/storage"
	"github.com/gin-gonic/gin"
)

// AttachmentFiles opens objects behind links issued by the in-process attachment storage
type AttachmentFiles interface {
	Open(storageKey, expires, signature string, now time.Time) (storage.StoredObject, error)
}

// AttachmentFileHandler serves download links when attachments are kept in memory.
// It stands in for the object store's presigned URLs, so it sits outside the API group.
type AttachmentFileHandler struct {
	BaseHandler
	files AttachmentFiles
	now   func() time.Time
}

// NewAttachmentFileHandler creates a new AttachmentFileHandler
func NewAttachmentFileHandler(files AttachmentFiles) *AttachmentFileHandler {
	return &AttachmentFileHandler{files: files, now: time.Now}
}

// Download streams the linked attachment. Tampered and expired links are refused.
func (h *AttachmentFileHandler) Download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	obj, err := h.files.Open(key, c.Query("expires"), c.Query("signature"), h.now())
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrObjectNotFound):
		h.Error(c, http.StatusNotFound, "ATTACHMENT_NOT_FOUND", "Attachment not found")
		return
	default:
		h.Error(c, http.StatusForbidden, "INVALID_DOWNLOAD_LINK", "Download link is invalid or expired")
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, contentType, obj.Data)
}
