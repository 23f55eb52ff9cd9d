package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	cashdeskapp "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/interfaces/http/dto"
	"github.com/clinicdesk/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// maxIdempotencyKeyLength caps the Idempotency-Key header
const maxIdempotencyKeyLength = 128

// EntryHandler handles ledger entry endpoints
type EntryHandler struct {
	BaseHandler
	entryService *cashdeskapp.EntryService
	maxFileSize  int64
}

// NewEntryHandler creates a new EntryHandler. maxFileSize bounds multipart uploads.
func NewEntryHandler(entryService *cashdeskapp.EntryService, maxFileSize int64) *EntryHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &EntryHandler{
		entryService: entryService,
		maxFileSize:  maxFileSize,
	}
}

// Create godoc
// @ID           createLedgerEntry
//
//	@Summary		Record a ledger entry
//	@Description	Records an income or expense against the open session of the site. Incomes of patient-billable categories receive a receipt number.
//	@Tags			ledger-entries
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string							false	"Client key that makes retries safe"
//	@Param			request			body		cashdeskapp.CreateEntryRequest	true	"Entry"
//	@Success		201				{object}	APIResponse[cashdeskapp.EntryResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		401				{object}	ErrorResponse
//	@Failure		422				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/entries [post]
func (h *EntryHandler) Create(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}

	key := strings.TrimSpace(c.GetHeader(middleware.IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLength {
		h.ValidationError(c, []dto.ValidationDetail{{
			Field:   middleware.IdempotencyKeyHeader,
			Message: "Must be at most 128 characters",
		}})
		return
	}

	var req cashdeskapp.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if strings.TrimSpace(req.Site) == "" {
		req.Site = op.Site
	}
	req.CreatedBy = op.UserID
	req.IdempotencyKey = key

	entry, err := h.entryService.Create(c.Request.Context(), op.TenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, entry)
}

// GetByID godoc
// @ID           getLedgerEntry
//
//	@Summary		Get a ledger entry
//	@Tags			ledger-entries
//	@Produce		json
//	@Param			id	path		string	true	"Entry ID"	format(uuid)
//	@Success		200	{object}	APIResponse[cashdeskapp.EntryResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/entries/{id} [get]
func (h *EntryHandler) GetByID(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	entry, err := h.entryService.GetByID(c.Request.Context(), op.TenantID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, entry)
}

// Update godoc
// @ID           updateLedgerEntry
//
//	@Summary		Update entry annotations
//	@Description	Changes description, notes or attachments. Amount, kind, category and payment method are immutable.
//	@Tags			ledger-entries
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Entry ID"	format(uuid)
//	@Param			request	body		cashdeskapp.UpdateEntryRequest	true	"Patch"
//	@Success		200		{object}	APIResponse[cashdeskapp.EntryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/entries/{id} [patch]
func (h *EntryHandler) Update(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	var req cashdeskapp.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	entry, err := h.entryService.Update(c.Request.Context(), op.TenantID, id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, entry)
}

// Void godoc
// @ID           voidLedgerEntry
//
//	@Summary		Void a ledger entry
//	@Description	Marks a posted entry VOIDED and reverses it from its session's totals. Entries of closed sessions cannot be voided.
//	@Tags			ledger-entries
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Entry ID"	format(uuid)
//	@Param			request	body		cashdeskapp.VoidEntryRequest	true	"Void request"
//	@Success		200		{object}	APIResponse[cashdeskapp.EntryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/entries/{id}/void [post]
func (h *EntryHandler) Void(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	var req cashdeskapp.VoidEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.VoidedBy = op.UserID

	entry, err := h.entryService.Void(c.Request.Context(), op.TenantID, id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, entry)
}

// Attach godoc
// @ID           attachLedgerEntryFile
//
//	@Summary		Attach a file to an entry
//	@Tags			ledger-entries
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string	true	"Entry ID"	format(uuid)
//	@Param			file	formData	file	true	"File to attach"
//	@Success		201		{object}	APIResponse[cashdeskapp.EntryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/entries/{id}/attachments [post]
func (h *EntryHandler) Attach(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Request body too large")
			return
		}
		h.BadRequest(c, "Multipart field 'file' is required")
		return
	}
	if fh.Size > h.maxFileSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Attachment is too large")
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.BadRequest(c, "Unable to read uploaded file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxFileSize+1))
	if err != nil {
		h.BadRequest(c, "Unable to read uploaded file")
		return
	}
	if int64(len(data)) > h.maxFileSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Attachment is too large")
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	entry, err := h.entryService.Attach(c.Request.Context(), op.TenantID, id, cashdeskapp.AttachFileRequest{
		FileName:    fh.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, entry)
}

// AttachmentURL godoc
// @ID           getLedgerEntryAttachmentURL
//
//	@Summary		Get a download link for an attachment
//	@Description	Returns a short-lived presigned URL for one of the entry's attachments
//	@Tags			ledger-entries
//	@Produce		json
//	@Param			id	path		string	true	"Entry ID"	format(uuid)
//	@Param			key	query		string	true	"Attachment storage key"
//	@Success		200	{object}	APIResponse[cashdeskapp.AttachmentURLResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/entries/{id}/attachments/url [get]
func (h *EntryHandler) AttachmentURL(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	key := c.Query("key")
	if key == "" {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "key", Message: "This field is required"}})
		return
	}

	link, err := h.entryService.AttachmentURL(c.Request.Context(), op.TenantID, id, key)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, link)
}
