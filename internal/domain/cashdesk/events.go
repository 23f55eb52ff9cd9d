package cashdesk

import (
	"time"

	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type names
const (
	AggregateTypeCashSession = "CashSession"
	AggregateTypeLedgerEntry = "LedgerEntry"
)

// Event type names
const (
	EventTypeCashSessionOpened         = "CashSessionOpened"
	EventTypeCashSessionClosed         = "CashSessionClosed"
	EventTypeCashSessionReopened       = "CashSessionReopened"
	EventTypeDiscrepancyIncidentRaised = "DiscrepancyIncidentRaised"
	EventTypeIncidentResolved          = "IncidentResolved"
	EventTypeLedgerEntryPosted         = "LedgerEntryPosted"
	EventTypeLedgerEntryVoided         = "LedgerEntryVoided"
)

// CashSessionOpenedEvent is raised when a session is opened
type CashSessionOpenedEvent struct {
	shared.BaseDomainEvent
	SessionID      uuid.UUID       `json:"session_id"`
	Site           string          `json:"site"`
	BusinessDate   time.Time       `json:"business_date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	OpenedBy       uuid.UUID       `json:"opened_by"`
}

// NewCashSessionOpenedEvent creates a new CashSessionOpenedEvent
func NewCashSessionOpenedEvent(s *CashSession) *CashSessionOpenedEvent {
	return &CashSessionOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCashSessionOpened, AggregateTypeCashSession, s.ID, s.TenantID),
		SessionID:       s.ID,
		Site:            s.Site,
		BusinessDate:    s.BusinessDate,
		OpeningBalance:  s.OpeningBalance,
		OpenedBy:        s.OpenedBy,
	}
}

// CashSessionClosedEvent is raised when a session is reconciled and closed
type CashSessionClosedEvent struct {
	shared.BaseDomainEvent
	SessionID          uuid.UUID       `json:"session_id"`
	Site               string          `json:"site"`
	TheoreticalBalance decimal.Decimal `json:"theoretical_balance"`
	DeclaredBalance    decimal.Decimal `json:"declared_balance"`
	Discrepancy        decimal.Decimal `json:"discrepancy"`
	ClosedBy           uuid.UUID       `json:"closed_by"`
}

// NewCashSessionClosedEvent creates a new CashSessionClosedEvent
func NewCashSessionClosedEvent(s *CashSession) *CashSessionClosedEvent {
	e := &CashSessionClosedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeCashSessionClosed, AggregateTypeCashSession, s.ID, s.TenantID),
		SessionID:          s.ID,
		Site:               s.Site,
		TheoreticalBalance: s.TheoreticalBalance,
	}
	if s.DeclaredBalance != nil {
		e.DeclaredBalance = *s.DeclaredBalance
	}
	if s.Discrepancy != nil {
		e.Discrepancy = *s.Discrepancy
	}
	if s.ClosedBy != nil {
		e.ClosedBy = *s.ClosedBy
	}
	return e
}

// CashSessionReopenedEvent is raised when a closed session is reopened
type CashSessionReopenedEvent struct {
	shared.BaseDomainEvent
	SessionID  uuid.UUID `json:"session_id"`
	Site       string    `json:"site"`
	ReopenedBy uuid.UUID `json:"reopened_by"`
	Reason     string    `json:"reason"`
}

// NewCashSessionReopenedEvent creates a new CashSessionReopenedEvent
func NewCashSessionReopenedEvent(s *CashSession, by uuid.UUID, reason string) *CashSessionReopenedEvent {
	return &CashSessionReopenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCashSessionReopened, AggregateTypeCashSession, s.ID, s.TenantID),
		SessionID:       s.ID,
		Site:            s.Site,
		ReopenedBy:      by,
		Reason:          reason,
	}
}

// DiscrepancyIncidentRaisedEvent is raised when closing produced a material discrepancy
type DiscrepancyIncidentRaisedEvent struct {
	shared.BaseDomainEvent
	SessionID   uuid.UUID       `json:"session_id"`
	IncidentID  uuid.UUID       `json:"incident_id"`
	Site        string          `json:"site"`
	Kind        IncidentKind    `json:"kind"`
	Discrepancy decimal.Decimal `json:"discrepancy"`
}

// NewDiscrepancyIncidentRaisedEvent creates a new DiscrepancyIncidentRaisedEvent
func NewDiscrepancyIncidentRaisedEvent(s *CashSession, incident *Incident) *DiscrepancyIncidentRaisedEvent {
	e := &DiscrepancyIncidentRaisedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDiscrepancyIncidentRaised, AggregateTypeCashSession, s.ID, s.TenantID),
		SessionID:       s.ID,
		IncidentID:      incident.ID,
		Site:            s.Site,
		Kind:            incident.Kind,
	}
	if incident.Amount != nil {
		e.Discrepancy = *incident.Amount
	}
	return e
}

// IncidentResolvedEvent is raised when an incident is resolved
type IncidentResolvedEvent struct {
	shared.BaseDomainEvent
	SessionID  uuid.UUID    `json:"session_id"`
	IncidentID uuid.UUID    `json:"incident_id"`
	Kind       IncidentKind `json:"kind"`
	ResolvedBy uuid.UUID    `json:"resolved_by"`
}

// NewIncidentResolvedEvent creates a new IncidentResolvedEvent
func NewIncidentResolvedEvent(s *CashSession, incident *Incident) *IncidentResolvedEvent {
	e := &IncidentResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeIncidentResolved, AggregateTypeCashSession, s.ID, s.TenantID),
		SessionID:       s.ID,
		IncidentID:      incident.ID,
		Kind:            incident.Kind,
	}
	if incident.ResolvedBy != nil {
		e.ResolvedBy = *incident.ResolvedBy
	}
	return e
}

// LedgerEntryPostedEvent is raised when an entry is recorded
type LedgerEntryPostedEvent struct {
	shared.BaseDomainEvent
	EntryID       uuid.UUID       `json:"entry_id"`
	SessionID     uuid.UUID       `json:"session_id"`
	Site          string          `json:"site"`
	Kind          EntryKind       `json:"kind"`
	Category      Category        `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
}

// NewLedgerEntryPostedEvent creates a new LedgerEntryPostedEvent
func NewLedgerEntryPostedEvent(entry *LedgerEntry) *LedgerEntryPostedEvent {
	return &LedgerEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryPosted, AggregateTypeLedgerEntry, entry.ID, entry.TenantID),
		EntryID:         entry.ID,
		SessionID:       entry.SessionID,
		Site:            entry.Site,
		Kind:            entry.Kind,
		Category:        entry.Category,
		Amount:          entry.Amount,
		PaymentMethod:   entry.PaymentMethod,
	}
}

// LedgerEntryVoidedEvent is raised when an entry is voided
type LedgerEntryVoidedEvent struct {
	shared.BaseDomainEvent
	EntryID   uuid.UUID       `json:"entry_id"`
	SessionID uuid.UUID       `json:"session_id"`
	Site      string          `json:"site"`
	Kind      EntryKind       `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

// NewLedgerEntryVoidedEvent creates a new LedgerEntryVoidedEvent
func NewLedgerEntryVoidedEvent(entry *LedgerEntry) *LedgerEntryVoidedEvent {
	return &LedgerEntryVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryVoided, AggregateTypeLedgerEntry, entry.ID, entry.TenantID),
		EntryID:         entry.ID,
		SessionID:       entry.SessionID,
		Site:            entry.Site,
		Kind:            entry.Kind,
		Amount:          entry.Amount,
		Reason:          entry.VoidReason,
	}
}
