package cashdesk

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChangeAction names an audited session transition
type ChangeAction string

const (
	ChangeActionOpened           ChangeAction = "OPENED"
	ChangeActionClosed           ChangeAction = "CLOSED"
	ChangeActionReopened         ChangeAction = "REOPENED"
	ChangeActionIncidentAdded    ChangeAction = "INCIDENT_ADDED"
	ChangeActionIncidentResolved ChangeAction = "INCIDENT_RESOLVED"
	ChangeActionEntryVoided      ChangeAction = "ENTRY_VOIDED"
	ChangeActionTotalsResynced   ChangeAction = "TOTALS_RESYNCED"
)

// ChangeRecord is an append-only audit entry of a session
type ChangeRecord struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	At            time.Time
	Action        ChangeAction
	PreviousValue string
	NewValue      string
	ActingUser    uuid.UUID
}

// snapshot is the audited view of a session's mutable state
type snapshot struct {
	State           SessionState `json:"state"`
	TotalIncome     string       `json:"total_income"`
	TotalExpense    string       `json:"total_expense"`
	Theoretical     string       `json:"theoretical_balance"`
	DeclaredBalance *string      `json:"declared_balance,omitempty"`
	Discrepancy     *string      `json:"discrepancy,omitempty"`
	ClosedBy        *uuid.UUID   `json:"closed_by,omitempty"`
	Reference       string       `json:"reference,omitempty"`
}

func (s snapshot) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}
