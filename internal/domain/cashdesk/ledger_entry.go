package cashdesk

import (
	"fmt"
	"strings"
	"time"

	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryState represents the lifecycle state of a ledger entry
type EntryState string

const (
	EntryStatePosted EntryState = "POSTED"
	EntryStateVoided EntryState = "VOIDED"
)

// String returns the string representation of EntryState
func (s EntryState) String() string {
	return string(s)
}

// ReceiptPrefix is the leading segment of receipt numbers
const ReceiptPrefix = "R"

// FormatReceiptNumber renders the receipt number for the n-th income entry of year
func FormatReceiptNumber(prefix string, year, n int) string {
	if prefix == "" {
		prefix = ReceiptPrefix
	}
	return fmt.Sprintf("%s-%04d-%03d", prefix, year, n)
}

// LedgerEntry is a single income or expense movement recorded against an open cash session.
// Amount, kind, category and payment method never change after creation.
type LedgerEntry struct {
	shared.TenantAggregateRoot
	SessionID      uuid.UUID
	Site           string
	RecordedAt     time.Time
	Kind           EntryKind
	Category       Category
	Amount         decimal.Decimal
	PaymentMethod  PaymentMethod
	PatientRef     *string
	Description    string
	Notes          string
	Attachments    []string
	State          EntryState
	ReceiptNumber  string
	VoidReason     string
	VoidedBy       *uuid.UUID
	VoidedAt       *time.Time
	IdempotencyKey string
}

// NewEntryParams carries the input of NewLedgerEntry
type NewEntryParams struct {
	TenantID       uuid.UUID
	Session        *CashSession
	Kind           EntryKind
	Category       Category
	Amount         decimal.Decimal
	PaymentMethod  PaymentMethod
	PatientRef     *string
	Description    string
	CreatedBy      uuid.UUID
	IdempotencyKey string
}

// NewLedgerEntry validates and creates a posted entry for an open session.
// Income entries receive their receipt number through AssignReceipt.
func NewLedgerEntry(p NewEntryParams) (*LedgerEntry, error) {
	if p.Session == nil || !p.Session.IsOpen() {
		site := ""
		if p.Session != nil {
			site = p.Session.Site
		}
		return nil, ErrNoOpenSession(site)
	}
	if !p.Kind.IsValid() {
		return nil, ErrInvalidEntryKind(p.Kind)
	}
	if err := ValidateCategory(p.Kind, p.Category); err != nil {
		return nil, err
	}
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount(p.Amount)
	}
	if err := CheckMoney("Amount", p.Amount); err != nil {
		return nil, err
	}
	if !p.PaymentMethod.IsValid() {
		return nil, ErrInvalidPaymentMethod(string(p.PaymentMethod))
	}

	var patient *string
	if p.PatientRef != nil {
		if ref := strings.TrimSpace(*p.PatientRef); ref != "" {
			patient = &ref
		}
	}
	if p.Kind == EntryKindIncome && p.Category.RequiresPatient() && patient == nil {
		return nil, shared.NewValidationError(CodePatientRequired, "A patient reference is required for service income")
	}

	now := time.Now()
	entry := &LedgerEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(p.TenantID, p.CreatedBy),
		SessionID:           p.Session.ID,
		Site:                p.Session.Site,
		RecordedAt:          now,
		Kind:                p.Kind,
		Category:            p.Category,
		Amount:              p.Amount,
		PaymentMethod:       p.PaymentMethod,
		PatientRef:          patient,
		Description:         strings.TrimSpace(p.Description),
		Attachments:         []string{},
		State:               EntryStatePosted,
		IdempotencyKey:      strings.TrimSpace(p.IdempotencyKey),
	}
	entry.AddDomainEvent(NewLedgerEntryPostedEvent(entry))
	return entry, nil
}

// NeedsReceipt reports whether the entry is income without a receipt number yet
func (e *LedgerEntry) NeedsReceipt() bool {
	return e.Kind == EntryKindIncome && e.ReceiptNumber == ""
}

// AssignReceipt stamps the receipt number of an income entry
func (e *LedgerEntry) AssignReceipt(number string) error {
	if e.Kind != EntryKindIncome {
		return shared.NewValidationError("RECEIPT_NOT_APPLICABLE", "Only income entries carry receipt numbers")
	}
	if e.ReceiptNumber != "" {
		return shared.NewConflictError("RECEIPT_ALREADY_ASSIGNED", "Receipt number already assigned")
	}
	e.ReceiptNumber = number
	return nil
}

// IsPosted reports whether the entry still counts towards its session
func (e *LedgerEntry) IsPosted() bool {
	return e.State == EntryStatePosted
}

// Void moves the entry to VOIDED. The session compensation is applied by the caller through
// CashSession.ReverseEntry in the same unit of work.
func (e *LedgerEntry) Void(reason string, by uuid.UUID) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewValidationError(CodeReasonRequired, "A reason is required to void an entry")
	}
	if !e.IsPosted() {
		return shared.NewPreconditionError(CodeEntryNotPosted, "Only posted entries can be voided")
	}
	now := time.Now()
	e.State = EntryStateVoided
	e.VoidReason = reason
	e.VoidedBy = &by
	e.VoidedAt = &now
	e.UpdatedAt = now
	e.AddDomainEvent(NewLedgerEntryVoidedEvent(e))
	return nil
}

// EntryPatch lists the fields a caller asked to change. Financial fields are present
// only so that attempts to change them can be rejected.
type EntryPatch struct {
	Description *string
	Notes       *string
	Attachments *[]string

	Amount        *decimal.Decimal
	Kind          *EntryKind
	Category      *Category
	PaymentMethod *PaymentMethod
}

// ApplyPatch updates the non-financial fields of the entry
func (e *LedgerEntry) ApplyPatch(p EntryPatch) error {
	var immutable []string
	if p.Amount != nil {
		immutable = append(immutable, "amount")
	}
	if p.Kind != nil {
		immutable = append(immutable, "kind")
	}
	if p.Category != nil {
		immutable = append(immutable, "category")
	}
	if p.PaymentMethod != nil {
		immutable = append(immutable, "payment_method")
	}
	if len(immutable) > 0 {
		return shared.NewValidationError(CodeImmutableField,
			"Financial fields cannot be changed: "+strings.Join(immutable, ", "))
	}

	var keys []string
	if p.Attachments != nil {
		keys = make([]string, 0, len(*p.Attachments))
		for _, k := range *p.Attachments {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			if !e.OwnsAttachment(k) {
				return ErrAttachmentNotOwned(k)
			}
			keys = append(keys, k)
		}
	}

	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Notes != nil {
		e.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Attachments != nil {
		e.Attachments = keys
	}
	e.UpdatedAt = time.Now()
	return nil
}

// AttachmentPrefix is the storage prefix under which the files of one entry are kept
func AttachmentPrefix(tenantID, entryID uuid.UUID) string {
	return fmt.Sprintf("cashdesk/%s/entries/%s/", tenantID, entryID)
}

// OwnsAttachment reports whether key names a file stored directly under the entry's prefix
func (e *LedgerEntry) OwnsAttachment(key string) bool {
	name, ok := strings.CutPrefix(key, AttachmentPrefix(e.TenantID, e.ID))
	return ok && name != "" && !strings.Contains(name, "/")
}

// AddAttachment appends a storage key to the entry's attachments
func (e *LedgerEntry) AddAttachment(key string) error {
	keys := append(append([]string{}, e.Attachments...), key)
	return e.ApplyPatch(EntryPatch{Attachments: &keys})
}
