package cashdesk

import (
	"fmt"

	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes returned by the cash desk domain
const (
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeInvalidEntryKind     = "INVALID_ENTRY_KIND"
	CodeCategoryNotAllowed   = "CATEGORY_NOT_ALLOWED"
	CodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
	CodePatientRequired      = "PATIENT_REQUIRED"
	CodeInvalidSite          = "INVALID_SITE"
	CodeReasonRequired       = "REASON_REQUIRED"
	CodeImmutableField       = "IMMUTABLE_FIELD"
	CodeInvalidIncidentKind  = "INVALID_INCIDENT_KIND"
	CodeDescriptionRequired  = "DESCRIPTION_REQUIRED"
	CodeSolutionRequired     = "SOLUTION_REQUIRED"
	CodeBreakdownMismatch    = "BREAKDOWN_MISMATCH"
	CodeInvalidBreakdown     = "INVALID_BREAKDOWN"
	CodeDeclaredRequired     = "DECLARED_BALANCE_REQUIRED"
	CodeInvalidDateRange     = "INVALID_DATE_RANGE"
	CodeInvalidBusinessDate  = "INVALID_BUSINESS_DATE"
	CodeForeignAttachment    = "FOREIGN_ATTACHMENT"

	CodeSessionAlreadyOpen   = "SESSION_ALREADY_OPEN"
	CodeSessionAlreadyClosed = "SESSION_ALREADY_CLOSED"
	CodeReopenCollision      = "REOPEN_COLLISION"

	CodeNoOpenSession        = "NO_OPEN_SESSION"
	CodeSessionNotOpen       = "SESSION_NOT_OPEN"
	CodeEntryNotPosted       = "ENTRY_NOT_POSTED"
	CodeEntrySessionMismatch = "ENTRY_SESSION_MISMATCH"

	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeEntryNotFound    = "ENTRY_NOT_FOUND"
	CodeIncidentNotFound = "INCIDENT_NOT_FOUND"
)

// ErrInvalidAmount is returned for zero or negative amounts
func ErrInvalidAmount(amount decimal.Decimal) error {
	return shared.NewValidationError(CodeInvalidAmount, fmt.Sprintf("Amount must be positive, got %s", amount.String()))
}

// ErrAttachmentNotOwned is returned for an attachment key outside the entry's storage prefix
func ErrAttachmentNotOwned(key string) error {
	return shared.NewValidationError(CodeForeignAttachment,
		fmt.Sprintf("Attachment %q does not belong to this entry", key))
}

// ErrInvalidEntryKind is returned for an unknown entry kind
func ErrInvalidEntryKind(kind EntryKind) error {
	return shared.NewValidationError(CodeInvalidEntryKind, fmt.Sprintf("Unknown entry kind %q", string(kind)))
}

// ErrCategoryNotAllowed is returned when the category belongs to another kind or is unknown
func ErrCategoryNotAllowed(kind EntryKind, category Category) error {
	return shared.NewValidationError(CodeCategoryNotAllowed,
		fmt.Sprintf("Category %q is not allowed for %s entries", string(category), string(kind)))
}

// ErrInvalidPaymentMethod is returned for an unsupported payment method
func ErrInvalidPaymentMethod(raw string) error {
	return shared.NewValidationError(CodeInvalidPaymentMethod, fmt.Sprintf("Unsupported payment method %q", raw))
}

// ErrSessionAlreadyOpen is returned when a site already has an open session for the day
func ErrSessionAlreadyOpen(site string) error {
	return shared.NewConflictError(CodeSessionAlreadyOpen,
		fmt.Sprintf("A cash session is already open for site %q today", site))
}

// ErrNoOpenSession is returned when an entry targets a site without an open session
func ErrNoOpenSession(site string) error {
	return shared.NewPreconditionError(CodeNoOpenSession,
		fmt.Sprintf("No open cash session for site %q", site))
}

// ErrSessionNotFound is returned for an unknown session id
func ErrSessionNotFound(id uuid.UUID) error {
	return shared.NewNotFoundError(CodeSessionNotFound, fmt.Sprintf("Cash session %s not found", id))
}

// ErrEntryNotFound is returned for an unknown ledger entry id
func ErrEntryNotFound(id uuid.UUID) error {
	return shared.NewNotFoundError(CodeEntryNotFound, fmt.Sprintf("Ledger entry %s not found", id))
}

// ErrIncidentNotFound is returned for an unknown or already resolved incident
func ErrIncidentNotFound(id uuid.UUID) error {
	return shared.NewNotFoundError(CodeIncidentNotFound, fmt.Sprintf("Open incident %s not found", id))
}
