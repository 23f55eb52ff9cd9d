package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JSONColumn stores a value as JSON text (jsonb on PostgreSQL)
type JSONColumn[T any] struct {
	Data T
}

// Value implements driver.Valuer
func (c JSONColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (c *JSONColumn[T]) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into JSONColumn", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &c.Data)
}

// CashSessionModel is the persistence model for the CashSession aggregate root.
// At most one OPEN row may exist per tenant, site and business date (see CashdeskIndexes).
type CashSessionModel struct {
	TenantAggregateModel
	Site               string                         `gorm:"type:varchar(100);not null;index:idx_cash_sessions_site_date,priority:2"`
	BusinessDate       time.Time                      `gorm:"type:date;not null;index:idx_cash_sessions_site_date,priority:3"`
	State              cashdesk.SessionState          `gorm:"type:varchar(10);not null;index"`
	OpenedBy           uuid.UUID                      `gorm:"type:uuid;not null"`
	OpenedAt           time.Time                      `gorm:"not null"`
	ClosedBy           *uuid.UUID                     `gorm:"type:uuid"`
	ClosedAt           *time.Time                     `gorm:"index"`
	OpeningBalance     decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	TotalIncome        decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	TotalExpense       decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	CashTotal          decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	CardTotal          decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	TransferTotal      decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	DigitalWalletTotal decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	FinancingTotal     decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	TheoreticalBalance decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	DeclaredBalance    *decimal.Decimal               `gorm:"type:decimal(18,4)"`
	Discrepancy        *decimal.Decimal               `gorm:"type:decimal(18,4)"`
	Observations       string                         `gorm:"type:text"`
	Breakdown          JSONColumn[cashdesk.Breakdown] `gorm:"type:jsonb"`
	ReopenCount        int                            `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (CashSessionModel) TableName() string {
	return "cash_sessions"
}

// FromDomain populates the session row; incidents, change log and entry links have their own tables
func (m *CashSessionModel) FromDomain(s *cashdesk.CashSession) {
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	m.Site = s.Site
	m.BusinessDate = cashdesk.BusinessDay(s.BusinessDate, time.UTC)
	m.State = s.State
	m.OpenedBy = s.OpenedBy
	m.OpenedAt = s.OpenedAt.UTC()
	m.ClosedBy = s.ClosedBy
	m.ClosedAt = utcPtr(s.ClosedAt)
	m.OpeningBalance = s.OpeningBalance
	m.TotalIncome = s.TotalIncome
	m.TotalExpense = s.TotalExpense
	m.CashTotal = s.TotalsByMethod.Cash
	m.CardTotal = s.TotalsByMethod.Card
	m.TransferTotal = s.TotalsByMethod.Transfer
	m.DigitalWalletTotal = s.TotalsByMethod.DigitalWallet
	m.FinancingTotal = s.TotalsByMethod.Financing
	m.TheoreticalBalance = s.TheoreticalBalance
	m.DeclaredBalance = s.DeclaredBalance
	m.Discrepancy = s.Discrepancy
	m.Observations = s.Observations
	m.Breakdown = JSONColumn[cashdesk.Breakdown]{Data: s.Breakdown}
	m.ReopenCount = s.ReopenCount
}

// ToDomain converts the session row; the caller attaches the child collections
func (m *CashSessionModel) ToDomain() *cashdesk.CashSession {
	totals := cashdesk.MethodTotals{
		Cash:          m.CashTotal,
		Card:          m.CardTotal,
		Transfer:      m.TransferTotal,
		DigitalWallet: m.DigitalWalletTotal,
		Financing:     m.FinancingTotal,
	}
	s := &cashdesk.CashSession{
		Site:               m.Site,
		BusinessDate:       cashdesk.BusinessDay(m.BusinessDate, time.UTC),
		State:              m.State,
		OpenedBy:           m.OpenedBy,
		OpenedAt:           m.OpenedAt,
		ClosedBy:           m.ClosedBy,
		ClosedAt:           m.ClosedAt,
		OpeningBalance:     m.OpeningBalance,
		TotalIncome:        m.TotalIncome,
		TotalExpense:       m.TotalExpense,
		TotalsByMethod:     totals,
		TheoreticalBalance: m.TheoreticalBalance,
		DeclaredBalance:    m.DeclaredBalance,
		Discrepancy:        m.Discrepancy,
		Observations:       m.Observations,
		Breakdown:          m.Breakdown.Data,
		ReopenCount:        m.ReopenCount,
		Incidents:          []cashdesk.Incident{},
		ChangeLog:          []cashdesk.ChangeRecord{},
		EntryIDs:           []uuid.UUID{},
	}
	m.PopulateTenantAggregateRoot(&s.TenantAggregateRoot)
	return s
}

// CashIncidentModel is an incident row of a session
type CashIncidentModel struct {
	ID          uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	SessionID   uuid.UUID             `gorm:"type:uuid;not null;index"`
	Seq         int                   `gorm:"not null"`
	Kind        cashdesk.IncidentKind `gorm:"type:varchar(20);not null;index"`
	Description string                `gorm:"type:text;not null"`
	Amount      *decimal.Decimal      `gorm:"type:decimal(18,4)"`
	CreatedAt   time.Time             `gorm:"not null"`
	CreatedBy   *uuid.UUID            `gorm:"type:uuid"`
	Resolved    bool                  `gorm:"not null;default:false;index"`
	ResolvedAt  *time.Time
	Solution    string     `gorm:"type:text"`
	ResolvedBy  *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (CashIncidentModel) TableName() string {
	return "cash_session_incidents"
}

// CashIncidentModelFromDomain creates the row of an incident
func CashIncidentModelFromDomain(tenantID uuid.UUID, seq int, i *cashdesk.Incident) *CashIncidentModel {
	return &CashIncidentModel{
		ID:          i.ID,
		TenantID:    tenantID,
		SessionID:   i.SessionID,
		Seq:         seq,
		Kind:        i.Kind,
		Description: i.Description,
		Amount:      i.Amount,
		CreatedAt:   i.CreatedAt.UTC(),
		CreatedBy:   i.CreatedBy,
		Resolved:    i.Resolved,
		ResolvedAt:  utcPtr(i.ResolvedAt),
		Solution:    i.Solution,
		ResolvedBy:  i.ResolvedBy,
	}
}

// ToDomain converts the row to a domain Incident
func (m *CashIncidentModel) ToDomain() cashdesk.Incident {
	return cashdesk.Incident{
		ID:          m.ID,
		SessionID:   m.SessionID,
		Kind:        m.Kind,
		Description: m.Description,
		Amount:      m.Amount,
		CreatedAt:   m.CreatedAt,
		CreatedBy:   m.CreatedBy,
		Resolved:    m.Resolved,
		ResolvedAt:  m.ResolvedAt,
		Solution:    m.Solution,
		ResolvedBy:  m.ResolvedBy,
	}
}

// CashChangeRecordModel is an append-only audit row of a session
type CashChangeRecordModel struct {
	ID            uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	SessionID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	Seq           int                   `gorm:"not null"`
	At            time.Time             `gorm:"column:changed_at;not null"`
	Action        cashdesk.ChangeAction `gorm:"type:varchar(30);not null"`
	PreviousValue string                `gorm:"type:text"`
	NewValue      string                `gorm:"type:text"`
	ActingUser    uuid.UUID             `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (CashChangeRecordModel) TableName() string {
	return "cash_session_changes"
}

// CashChangeRecordModelFromDomain creates the row of a change record
func CashChangeRecordModelFromDomain(tenantID uuid.UUID, seq int, c *cashdesk.ChangeRecord) *CashChangeRecordModel {
	return &CashChangeRecordModel{
		ID:            c.ID,
		TenantID:      tenantID,
		SessionID:     c.SessionID,
		Seq:           seq,
		At:            c.At.UTC(),
		Action:        c.Action,
		PreviousValue: c.PreviousValue,
		NewValue:      c.NewValue,
		ActingUser:    c.ActingUser,
	}
}

// ToDomain converts the row to a domain ChangeRecord
func (m *CashChangeRecordModel) ToDomain() cashdesk.ChangeRecord {
	return cashdesk.ChangeRecord{
		ID:            m.ID,
		SessionID:     m.SessionID,
		At:            m.At,
		Action:        m.Action,
		PreviousValue: m.PreviousValue,
		NewValue:      m.NewValue,
		ActingUser:    m.ActingUser,
	}
}

// CashSessionEntryModel links a ledger entry to the session whose totals include it
type CashSessionEntryModel struct {
	SessionID uuid.UUID `gorm:"type:uuid;primaryKey"`
	EntryID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Seq       int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CashSessionEntryModel) TableName() string {
	return "cash_session_entries"
}

// LedgerEntryModel is the persistence model for the LedgerEntry aggregate root.
// Receipt numbers and idempotency keys are nullable so that only set values are unique per tenant.
type LedgerEntryModel struct {
	TenantAggregateModel
	SessionID      uuid.UUID              `gorm:"type:uuid;not null;index"`
	Site           string                 `gorm:"type:varchar(100);not null;index"`
	RecordedAt     time.Time              `gorm:"not null;index"`
	Kind           cashdesk.EntryKind     `gorm:"type:varchar(10);not null;index"`
	Category       cashdesk.Category      `gorm:"type:varchar(40);not null"`
	Amount         decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	PaymentMethod  cashdesk.PaymentMethod `gorm:"type:varchar(20);not null"`
	PatientRef     *string                `gorm:"type:varchar(100)"`
	Description    string                 `gorm:"type:text"`
	Notes          string                 `gorm:"type:text"`
	Attachments    JSONColumn[[]string]   `gorm:"type:jsonb"`
	State          cashdesk.EntryState    `gorm:"type:varchar(10);not null;index"`
	ReceiptNumber  *string                `gorm:"type:varchar(30)"`
	VoidReason     string                 `gorm:"type:text"`
	VoidedBy       *uuid.UUID             `gorm:"type:uuid"`
	VoidedAt       *time.Time
	IdempotencyKey *string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// FromDomain populates the persistence model from a domain LedgerEntry
func (m *LedgerEntryModel) FromDomain(e *cashdesk.LedgerEntry) {
	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	m.SessionID = e.SessionID
	m.Site = e.Site
	m.RecordedAt = e.RecordedAt.UTC()
	m.Kind = e.Kind
	m.Category = e.Category
	m.Amount = e.Amount
	m.PaymentMethod = e.PaymentMethod
	m.PatientRef = e.PatientRef
	m.Description = e.Description
	m.Notes = e.Notes
	m.Attachments = JSONColumn[[]string]{Data: append([]string{}, e.Attachments...)}
	m.State = e.State
	m.ReceiptNumber = nullableString(e.ReceiptNumber)
	m.VoidReason = e.VoidReason
	m.VoidedBy = e.VoidedBy
	m.VoidedAt = utcPtr(e.VoidedAt)
	m.IdempotencyKey = nullableString(e.IdempotencyKey)
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() *cashdesk.LedgerEntry {
	e := &cashdesk.LedgerEntry{
		SessionID:     m.SessionID,
		Site:          m.Site,
		RecordedAt:    m.RecordedAt,
		Kind:          m.Kind,
		Category:      m.Category,
		Amount:        m.Amount,
		PaymentMethod: m.PaymentMethod,
		PatientRef:    m.PatientRef,
		Description:   m.Description,
		Notes:         m.Notes,
		Attachments:   m.Attachments.Data,
		State:         m.State,
		VoidReason:    m.VoidReason,
		VoidedBy:      m.VoidedBy,
		VoidedAt:      m.VoidedAt,
	}
	if e.Attachments == nil {
		e.Attachments = []string{}
	}
	if m.ReceiptNumber != nil {
		e.ReceiptNumber = *m.ReceiptNumber
	}
	if m.IdempotencyKey != nil {
		e.IdempotencyKey = *m.IdempotencyKey
	}
	m.PopulateTenantAggregateRoot(&e.TenantAggregateRoot)
	return e
}

// LedgerEntryModelFromDomain creates a new persistence model from a domain LedgerEntry
func LedgerEntryModelFromDomain(e *cashdesk.LedgerEntry) *LedgerEntryModel {
	m := &LedgerEntryModel{}
	m.FromDomain(e)
	return m
}

// ReceiptCounterModel holds the last receipt sequence issued per tenant and year
type ReceiptCounterModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Year      int       `gorm:"primaryKey;autoIncrement:false"`
	LastValue int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReceiptCounterModel) TableName() string {
	return "receipt_counters"
}

// CashdeskModels lists the cash desk tables for AutoMigrate in tests and local runs
func CashdeskModels() []any {
	return []any{
		&CashSessionModel{},
		&CashIncidentModel{},
		&CashChangeRecordModel{},
		&CashSessionEntryModel{},
		&LedgerEntryModel{},
		&ReceiptCounterModel{},
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
