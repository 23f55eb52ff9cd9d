package cashdesk

import (
	"time"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ===================== Requests =====================

// OpenSessionRequest opens the register of a site for today
type OpenSessionRequest struct {
	Site           string           `json:"site" binding:"max=64"`
	OpeningBalance *decimal.Decimal `json:"opening_balance"`
	Observations   string           `json:"observations" binding:"max=2000"`
	OpenedBy       uuid.UUID        `json:"-"`
}

// DenominationRequest is one line of a cash count
type DenominationRequest struct {
	Value decimal.Decimal `json:"value" binding:"required"`
	Count int             `json:"count" binding:"gte=0"`
}

// CloseSessionRequest declares the counted cash. DeclaredBalance may be omitted when a breakdown is given.
type CloseSessionRequest struct {
	DeclaredBalance *decimal.Decimal      `json:"declared_balance"`
	Observations    string                `json:"observations" binding:"max=2000"`
	Breakdown       []DenominationRequest `json:"breakdown" binding:"omitempty,dive"`
	ClosedBy        uuid.UUID             `json:"-"`
}

// ReopenSessionRequest returns a closed session to OPEN
type ReopenSessionRequest struct {
	Reason     string    `json:"reason" binding:"required,max=500"`
	ReopenedBy uuid.UUID `json:"-"`
}

// AddIncidentRequest records a manual incident
type AddIncidentRequest struct {
	Kind        string           `json:"kind" binding:"required,incident_kind"`
	Description string           `json:"description" binding:"required,max=1000"`
	Amount      *decimal.Decimal `json:"amount"`
	CreatedBy   uuid.UUID        `json:"-"`
}

// ResolveIncidentRequest closes an incident with a solution
type ResolveIncidentRequest struct {
	Solution   string    `json:"solution" binding:"required,max=1000"`
	ResolvedBy uuid.UUID `json:"-"`
}

// SessionListFilter filters session listings
type SessionListFilter struct {
	Site     string     `form:"site"`
	State    string     `form:"state" binding:"omitempty,oneof=OPEN CLOSED"`
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// CreateEntryRequest records an income or expense against the open session of a site
type CreateEntryRequest struct {
	Site           string          `json:"site" binding:"max=64"`
	Kind           string          `json:"kind" binding:"required,oneof=INCOME EXPENSE"`
	Category       string          `json:"category" binding:"required,cashdesk_category"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	PaymentMethod  string          `json:"payment_method" binding:"required,payment_method"`
	PatientRef     *string         `json:"patient_ref" binding:"omitempty,max=128"`
	Description    string          `json:"description" binding:"max=1000"`
	CreatedBy      uuid.UUID       `json:"-"`
	IdempotencyKey string          `json:"-"`
}

// UpdateEntryRequest patches an entry. Financial fields are accepted only to be rejected.
type UpdateEntryRequest struct {
	Description   *string          `json:"description"`
	Notes         *string          `json:"notes"`
	Attachments   *[]string        `json:"attachments"`
	Amount        *decimal.Decimal `json:"amount"`
	Kind          *string          `json:"kind"`
	Category      *string          `json:"category"`
	PaymentMethod *string          `json:"payment_method"`
}

// VoidEntryRequest voids a posted entry
type VoidEntryRequest struct {
	Reason   string    `json:"reason" binding:"required,max=500"`
	VoidedBy uuid.UUID `json:"-"`
}

// AttachFileRequest carries an uploaded file
type AttachFileRequest struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ===================== Responses =====================

// IncidentResponse represents an incident in API responses
type IncidentResponse struct {
	ID          uuid.UUID        `json:"id"`
	Kind        string           `json:"kind"`
	Description string           `json:"description"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CreatedBy   *uuid.UUID       `json:"created_by,omitempty"`
	Resolved    bool             `json:"resolved"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
	Solution    string           `json:"solution,omitempty"`
	ResolvedBy  *uuid.UUID       `json:"resolved_by,omitempty"`
}

// ChangeRecordResponse represents a change log row
type ChangeRecordResponse struct {
	ID            uuid.UUID `json:"id"`
	At            time.Time `json:"at"`
	Action        string    `json:"action"`
	PreviousValue string    `json:"previous_value,omitempty"`
	NewValue      string    `json:"new_value"`
	ActingUser    uuid.UUID `json:"acting_user"`
}

// SessionResponse represents a cash session in API responses
type SessionResponse struct {
	ID                 uuid.UUID              `json:"id"`
	TenantID           uuid.UUID              `json:"tenant_id"`
	Site               string                 `json:"site"`
	BusinessDate       string                 `json:"business_date"`
	State              string                 `json:"state"`
	OpenedBy           uuid.UUID              `json:"opened_by"`
	OpenedAt           time.Time              `json:"opened_at"`
	ClosedBy           *uuid.UUID             `json:"closed_by,omitempty"`
	ClosedAt           *time.Time             `json:"closed_at,omitempty"`
	OpeningBalance     decimal.Decimal        `json:"opening_balance"`
	TotalIncome        decimal.Decimal        `json:"total_income"`
	TotalExpense       decimal.Decimal        `json:"total_expense"`
	TotalsByMethod     cashdesk.MethodTotals  `json:"totals_by_method"`
	TheoreticalBalance decimal.Decimal        `json:"theoretical_balance"`
	DeclaredBalance    *decimal.Decimal       `json:"declared_balance,omitempty"`
	Discrepancy        *decimal.Decimal       `json:"discrepancy,omitempty"`
	Observations       string                 `json:"observations,omitempty"`
	Breakdown          cashdesk.Breakdown     `json:"breakdown,omitempty"`
	ReopenCount        int                    `json:"reopen_count"`
	EntryCount         int                    `json:"entry_count"`
	Incidents          []IncidentResponse     `json:"incidents"`
	ChangeLog          []ChangeRecordResponse `json:"change_log"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	Version            int                    `json:"version"`
}

// CloseSessionResponse is the closed session and the incident raised for a material discrepancy
type CloseSessionResponse struct {
	Session  SessionResponse   `json:"session"`
	Incident *IncidentResponse `json:"incident,omitempty"`
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	SessionID     uuid.UUID       `json:"session_id"`
	Site          string          `json:"site"`
	RecordedAt    time.Time       `json:"recorded_at"`
	Kind          string          `json:"kind"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	PatientRef    *string         `json:"patient_ref,omitempty"`
	Description   string          `json:"description,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Attachments   []string        `json:"attachments"`
	State         string          `json:"state"`
	ReceiptNumber string          `json:"receipt_number,omitempty"`
	VoidReason    string          `json:"void_reason,omitempty"`
	VoidedBy      *uuid.UUID      `json:"voided_by,omitempty"`
	VoidedAt      *time.Time      `json:"voided_at,omitempty"`
	CreatedBy     *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// AttachmentURLResponse is a presigned download link
type AttachmentURLResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// KindSummaryResponse is the per-kind part of a daily summary
type KindSummaryResponse struct {
	Kind    string          `json:"kind"`
	Total   decimal.Decimal `json:"total"`
	Count   int             `json:"count"`
	Entries []EntryResponse `json:"entries"`
}

// DailyEntrySummaryResponse groups one day's entries by kind
type DailyEntrySummaryResponse struct {
	Date    string              `json:"date"`
	Site    string              `json:"site,omitempty"`
	Income  KindSummaryResponse `json:"income"`
	Expense KindSummaryResponse `json:"expense"`
	Net     decimal.Decimal     `json:"net"`
}

// RangeEntrySummaryResponse lists the entries of a range with derived totals
type RangeEntrySummaryResponse struct {
	From         string          `json:"from"`
	To           string          `json:"to"`
	Site         string          `json:"site,omitempty"`
	Kind         string          `json:"kind,omitempty"`
	Entries      []EntryResponse `json:"entries"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	IncomeCount  int             `json:"income_count"`
	ExpenseCount int             `json:"expense_count"`
	Net          decimal.Decimal `json:"net"`
}

// SessionSummaryResponse is the site-grouped session summary of a date range
type SessionSummaryResponse struct {
	From   string                        `json:"from"`
	To     string                        `json:"to"`
	Totals cashdesk.SiteSessionSummary   `json:"totals"`
	Sites  []cashdesk.SiteSessionSummary `json:"sites"`
}

// ===================== Conversions =====================

func toIncidentResponse(i *cashdesk.Incident) IncidentResponse {
	return IncidentResponse{
		ID:          i.ID,
		Kind:        string(i.Kind),
		Description: i.Description,
		Amount:      i.Amount,
		CreatedAt:   i.CreatedAt,
		CreatedBy:   i.CreatedBy,
		Resolved:    i.Resolved,
		ResolvedAt:  i.ResolvedAt,
		Solution:    i.Solution,
		ResolvedBy:  i.ResolvedBy,
	}
}

func toSessionResponse(s *cashdesk.CashSession) *SessionResponse {
	incidents := make([]IncidentResponse, len(s.Incidents))
	for i := range s.Incidents {
		incidents[i] = toIncidentResponse(&s.Incidents[i])
	}
	changes := make([]ChangeRecordResponse, len(s.ChangeLog))
	for i, c := range s.ChangeLog {
		changes[i] = ChangeRecordResponse{
			ID:            c.ID,
			At:            c.At,
			Action:        string(c.Action),
			PreviousValue: c.PreviousValue,
			NewValue:      c.NewValue,
			ActingUser:    c.ActingUser,
		}
	}
	return &SessionResponse{
		ID:                 s.ID,
		TenantID:           s.TenantID,
		Site:               s.Site,
		BusinessDate:       s.BusinessDate.Format(dateLayout),
		State:              string(s.State),
		OpenedBy:           s.OpenedBy,
		OpenedAt:           s.OpenedAt,
		ClosedBy:           s.ClosedBy,
		ClosedAt:           s.ClosedAt,
		OpeningBalance:     s.OpeningBalance,
		TotalIncome:        s.TotalIncome,
		TotalExpense:       s.TotalExpense,
		TotalsByMethod:     s.TotalsByMethod,
		TheoreticalBalance: s.TheoreticalBalance,
		DeclaredBalance:    s.DeclaredBalance,
		Discrepancy:        s.Discrepancy,
		Observations:       s.Observations,
		Breakdown:          s.Breakdown,
		ReopenCount:        s.ReopenCount,
		EntryCount:         len(s.EntryIDs),
		Incidents:          incidents,
		ChangeLog:          changes,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		Version:            s.Version,
	}
}

func toEntryResponse(e *cashdesk.LedgerEntry) *EntryResponse {
	attachments := e.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return &EntryResponse{
		ID:            e.ID,
		TenantID:      e.TenantID,
		SessionID:     e.SessionID,
		Site:          e.Site,
		RecordedAt:    e.RecordedAt,
		Kind:          string(e.Kind),
		Category:      string(e.Category),
		Amount:        e.Amount,
		PaymentMethod: string(e.PaymentMethod),
		PatientRef:    e.PatientRef,
		Description:   e.Description,
		Notes:         e.Notes,
		Attachments:   attachments,
		State:         string(e.State),
		ReceiptNumber: e.ReceiptNumber,
		VoidReason:    e.VoidReason,
		VoidedBy:      e.VoidedBy,
		VoidedAt:      e.VoidedAt,
		CreatedBy:     e.CreatedBy,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Version:       e.Version,
	}
}

func toEntryResponses(entries []cashdesk.LedgerEntry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i := range entries {
		out[i] = *toEntryResponse(&entries[i])
	}
	return out
}

func toKindSummaryResponse(k cashdesk.KindSummary) KindSummaryResponse {
	return KindSummaryResponse{
		Kind:    string(k.Kind),
		Total:   k.Total,
		Count:   k.Count,
		Entries: toEntryResponses(k.Entries),
	}
}

// toPatch converts the request into a domain patch, keeping financial fields so they can be rejected
func (r UpdateEntryRequest) toPatch() cashdesk.EntryPatch {
	patch := cashdesk.EntryPatch{
		Description: r.Description,
		Notes:       r.Notes,
		Attachments: r.Attachments,
		Amount:      r.Amount,
	}
	if r.Kind != nil {
		kind := cashdesk.EntryKind(*r.Kind)
		patch.Kind = &kind
	}
	if r.Category != nil {
		category := cashdesk.Category(*r.Category)
		patch.Category = &category
	}
	if r.PaymentMethod != nil {
		method := cashdesk.PaymentMethod(*r.PaymentMethod)
		patch.PaymentMethod = &method
	}
	return patch
}

func (r CloseSessionRequest) breakdown() cashdesk.Breakdown {
	if len(r.Breakdown) == 0 {
		return nil
	}
	out := make(cashdesk.Breakdown, len(r.Breakdown))
	for i, d := range r.Breakdown {
		out[i] = cashdesk.Denomination{Value: d.Value, Count: d.Count}
	}
	return out
}
