package handler

import (
	"strings"

	cashdeskapp "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SessionHandler handles cash session endpoints
type SessionHandler struct {
	BaseHandler
	sessionService *cashdeskapp.SessionService
	entryService   *cashdeskapp.EntryService
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessionService *cashdeskapp.SessionService, entryService *cashdeskapp.EntryService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		entryService:   entryService,
	}
}

// Open godoc
// @ID           openCashSession
//
//	@Summary		Open a cash session
//	@Description	Opens the register of a site for the current business day. Without an opening balance the last declared balance is carried forward.
//	@Tags			cash-sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		cashdeskapp.OpenSessionRequest	true	"Open request"
//	@Success		201		{object}	APIResponse[cashdeskapp.SessionResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}

	var req cashdeskapp.OpenSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	if strings.TrimSpace(req.Site) == "" {
		req.Site = op.Site
	}
	req.OpenedBy = op.UserID

	session, err := h.sessionService.Open(c.Request.Context(), op.TenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, session)
}

// List godoc
// @ID           listCashSessions
//
//	@Summary		List cash sessions
//	@Description	Lists sessions newest business date first, filtered by site, state and date range
//	@Tags			cash-sessions
//	@Produce		json
//	@Param			site		query		string	false	"Site"
//	@Param			state		query		string	false	"State"	Enums(OPEN, CLOSED)
//	@Param			from		query		string	false	"First business date (YYYY-MM-DD)"
//	@Param			to			query		string	false	"Last business date (YYYY-MM-DD)"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)	maximum(100)
//	@Success		200			{object}	APIResponse[[]cashdeskapp.SessionResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}

	var filter cashdeskapp.SessionListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page := dto.PageRequest{Page: filter.Page, PageSize: filter.PageSize}.Normalize()
	filter.Page, filter.PageSize = page.Page, page.PageSize

	result, err := h.sessionService.List(c.Request.Context(), op.TenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetCurrent godoc
// @ID           getCurrentCashSession
//
//	@Summary		Get the open session of a site
//	@Description	Returns the OPEN session of the site, defaulting to the operator's site
//	@Tags			cash-sessions
//	@Produce		json
//	@Param			site	query		string	false	"Site"
//	@Success		200		{object}	APIResponse[cashdeskapp.SessionResponse]
//	@Failure		401		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/sessions/current [get]
func (h *SessionHandler) GetCurrent(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}

	site := c.DefaultQuery("site", op.Site)
	session, err := h.sessionService.GetCurrent(c.Request.Context(), op.TenantID, site)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, session)
}

// GetByID godoc
// @ID           getCashSession
//
//	@Summary		Get a cash session
//	@Tags			cash-sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"	format(uuid)
//	@Success		200	{object}	APIResponse[cashdeskapp.SessionResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/sessions/{id} [get]
func (h *SessionHandler) GetByID(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	session, err := h.sessionService.GetByID(c.Request.Context(), op.TenantID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, session)
}

// ListEntries godoc
// @ID           listCashSessionEntries
//
//	@Summary		List the entries of a session
//	@Description	Returns every entry linked to the session, voided ones included, in recording order
//	@Tags			cash-sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"	format(uuid)
//	@Success		200	{object}	APIResponse[[]cashdeskapp.EntryResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/sessions/{id}/entries [get]
func (h *SessionHandler) ListEntries(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	entries, err := h.entryService.ListBySession(c.Request.Context(), op.TenantID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, entries)
}

// Close godoc
// @ID           closeCashSession
//
//	@Summary		Close a cash session
//	@Description	Declares the counted cash, computes the discrepancy and raises an incident when it is material
//	@Tags			cash-sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Session ID"	format(uuid)
//	@Param			request	body		cashdeskapp.CloseSessionRequest	true	"Close request"
//	@Success		200		{object}	APIResponse[cashdeskapp.CloseSessionResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/sessions/{id}/close [post]
func (h *SessionHandler) Close(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	var req cashdeskapp.CloseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.ClosedBy = op.UserID

	result, err := h.sessionService.Close(c.Request.Context(), op.TenantID, id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Reopen godoc
// @ID           reopenCashSession
//
//	@Summary		Reopen a closed cash session
//	@Description	Returns a CLOSED session to OPEN, clearing its declared balance and discrepancy
//	@Tags			cash-sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string								true	"Session ID"	format(uuid)
//	@Param			request	body		cashdeskapp.ReopenSessionRequest	true	"Reopen request"
//	@Success		200		{object}	APIResponse[cashdeskapp.SessionResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/sessions/{id}/reopen [post]
func (h *SessionHandler) Reopen(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	var req cashdeskapp.ReopenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.ReopenedBy = op.UserID

	session, err := h.sessionService.Reopen(c.Request.Context(), op.TenantID, id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, session)
}

// AddIncident godoc
// @ID           addCashSessionIncident
//
//	@Summary		Record an incident
//	@Tags			cash-sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Session ID"	format(uuid)
//	@Param			request	body		cashdeskapp.AddIncidentRequest	true	"Incident"
//	@Success		201		{object}	APIResponse[cashdeskapp.IncidentResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/sessions/{id}/incidents [post]
func (h *SessionHandler) AddIncident(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	var req cashdeskapp.AddIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.CreatedBy = op.UserID

	incident, err := h.sessionService.AddIncident(c.Request.Context(), op.TenantID, id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, incident)
}

// ResolveIncident godoc
// @ID           resolveCashSessionIncident
//
//	@Summary		Resolve an incident
//	@Tags			cash-sessions
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string								true	"Session ID"	format(uuid)
//	@Param			incident_id	path		string								true	"Incident ID"	format(uuid)
//	@Param			request		body		cashdeskapp.ResolveIncidentRequest	true	"Resolution"
//	@Success		200			{object}	APIResponse[cashdeskapp.IncidentResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/sessions/{id}/incidents/{incident_id}/resolve [post]
func (h *SessionHandler) ResolveIncident(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	incidentID, ok := h.pathUUID(c, "incident_id")
	if !ok {
		return
	}

	var req cashdeskapp.ResolveIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.ResolvedBy = op.UserID

	incident, err := h.sessionService.ResolveIncident(c.Request.Context(), op.TenantID, id, incidentID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, incident)
}
