package cashdesk

import (
	"strings"
	"time"

	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IncidentKind classifies a recorded anomaly
type IncidentKind string

const (
	IncidentKindDifference  IncidentKind = "difference"
	IncidentKindShortfall   IncidentKind = "shortfall"
	IncidentKindSurplus     IncidentKind = "surplus"
	IncidentKindSystemError IncidentKind = "system_error"
	IncidentKindOther       IncidentKind = "other"
)

// IsValid checks if the incident kind is known
func (k IncidentKind) IsValid() bool {
	switch k {
	case IncidentKindDifference, IncidentKindShortfall, IncidentKindSurplus,
		IncidentKindSystemError, IncidentKindOther:
		return true
	}
	return false
}

// Incident is an anomaly attached to a cash session. It moves from open to resolved once.
type Incident struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Kind        IncidentKind
	Description string
	Amount      *decimal.Decimal
	CreatedAt   time.Time
	CreatedBy   *uuid.UUID
	Resolved    bool
	ResolvedAt  *time.Time
	Solution    string
	ResolvedBy  *uuid.UUID
}

func newIncident(sessionID uuid.UUID, kind IncidentKind, description string, amount *decimal.Decimal, by *uuid.UUID, now time.Time) (*Incident, error) {
	if !kind.IsValid() {
		return nil, shared.NewValidationError(CodeInvalidIncidentKind, "Unknown incident kind: "+string(kind))
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, shared.NewValidationError(CodeDescriptionRequired, "Incident description cannot be empty")
	}
	if amount != nil {
		if err := CheckMoney("Incident amount", *amount); err != nil {
			return nil, err
		}
	}
	return &Incident{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Kind:        kind,
		Description: description,
		Amount:      amount,
		CreatedAt:   now,
		CreatedBy:   by,
	}, nil
}

// IsOpen reports whether the incident still awaits resolution
func (i *Incident) IsOpen() bool {
	return !i.Resolved
}

func (i *Incident) resolve(solution string, by uuid.UUID, now time.Time) error {
	if i.Resolved {
		return ErrIncidentNotFound(i.ID)
	}
	solution = strings.TrimSpace(solution)
	if solution == "" {
		return shared.NewValidationError(CodeSolutionRequired, "Solution text cannot be empty")
	}
	i.Resolved = true
	i.ResolvedAt = &now
	i.Solution = solution
	i.ResolvedBy = &by
	return nil
}
