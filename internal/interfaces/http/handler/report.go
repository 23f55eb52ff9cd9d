package handler

import (
	"time"

	cashdeskapp "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/gin-gonic/gin"
)

// ReportHandler handles cash desk report endpoints
type ReportHandler struct {
	BaseHandler
	reportService *cashdeskapp.ReportService
	now           func() time.Time
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *cashdeskapp.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		now:           time.Now,
	}
}

// dateRange reads the mandatory from/to query pair
func (h *ReportHandler) dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, ok := h.queryDate(c, "from")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := h.queryDate(c, "to")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// SessionSummary godoc
// @ID           getCashSessionSummary
//
//	@Summary		Session summary by date range
//	@Description	Aggregates the sessions of [from, to] per site: counts by state, opening, income, expense, declared and discrepancy totals
//	@Tags			cashdesk-reports
//	@Produce		json
//	@Param			from	query		string	true	"First business date (YYYY-MM-DD)"
//	@Param			to		query		string	true	"Last business date (YYYY-MM-DD)"
//	@Param			site	query		string	false	"Site"
//	@Success		200		{object}	APIResponse[cashdeskapp.SessionSummaryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/reports/sessions [get]
func (h *ReportHandler) SessionSummary(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}

	summary, err := h.reportService.SummaryByDateRange(c.Request.Context(), op.TenantID, from, to, c.Query("site"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

// DailyEntrySummary godoc
// @ID           getDailyEntrySummary
//
//	@Summary		Daily entry summary
//	@Description	Groups one day's posted entries by kind. Voided entries are excluded.
//	@Tags			cashdesk-reports
//	@Produce		json
//	@Param			date	query		string	false	"Day (YYYY-MM-DD), defaults to today"
//	@Param			site	query		string	false	"Site"
//	@Success		200		{object}	APIResponse[cashdeskapp.DailyEntrySummaryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/reports/entries/daily [get]
func (h *ReportHandler) DailyEntrySummary(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	date, ok := h.queryDate(c, "date")
	if !ok {
		return
	}
	if date.IsZero() {
		date = h.now()
	}

	summary, err := h.reportService.DailyEntrySummary(c.Request.Context(), op.TenantID, date, c.Query("site"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

// RangeEntrySummary godoc
// @ID           getRangeEntrySummary
//
//	@Summary		Entry summary by date range
//	@Description	Lists the posted entries of [from, to] with income and expense totals, optionally of one kind
//	@Tags			cashdesk-reports
//	@Produce		json
//	@Param			from	query		string	true	"First day (YYYY-MM-DD)"
//	@Param			to		query		string	true	"Last day (YYYY-MM-DD)"
//	@Param			site	query		string	false	"Site"
//	@Param			kind	query		string	false	"Entry kind"	Enums(INCOME, EXPENSE)
//	@Success		200		{object}	APIResponse[cashdeskapp.RangeEntrySummaryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cashdesk/reports/entries [get]
func (h *ReportHandler) RangeEntrySummary(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}

	summary, err := h.reportService.RangeEntrySummary(c.Request.Context(), op.TenantID, from, to, c.Query("site"), c.Query("kind"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}
