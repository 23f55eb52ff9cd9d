package cashdesk

import (
	"fmt"
	"strings"
	"time"

	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionState represents the lifecycle state of a cash session
type SessionState string

const (
	SessionStateOpen   SessionState = "OPEN"
	SessionStateClosed SessionState = "CLOSED"
)

// IsValid checks if the state is known
func (s SessionState) IsValid() bool {
	return s == SessionStateOpen || s == SessionStateClosed
}

// String returns the string representation of SessionState
func (s SessionState) String() string {
	return string(s)
}

// BusinessDay returns the calendar day of t in loc, as midnight UTC
func BusinessDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Denomination is one line of a physical cash count
type Denomination struct {
	Value decimal.Decimal `json:"value"`
	Count int             `json:"count"`
}

// Breakdown is the denomination count declared at close
type Breakdown []Denomination

// Total returns the sum of value * count
func (b Breakdown) Total() decimal.Decimal {
	total := decimal.Zero
	for _, d := range b {
		total = total.Add(d.Value.Mul(decimal.NewFromInt(int64(d.Count))))
	}
	return total
}

// Validate rejects non-positive denominations and negative counts
func (b Breakdown) Validate() error {
	for _, d := range b {
		if !d.Value.IsPositive() || d.Count < 0 {
			return shared.NewValidationError(CodeInvalidBreakdown,
				fmt.Sprintf("Invalid denomination line %s x %d", d.Value.String(), d.Count))
		}
		if err := CheckMoney("Denomination", d.Value); err != nil {
			return err
		}
	}
	return CheckMoney("Breakdown total", b.Total())
}

// CashSession is one register shift of a site on a business day.
// It owns the running totals, incidents and change log; every mutation goes through its methods.
type CashSession struct {
	shared.TenantAggregateRoot
	Site               string
	BusinessDate       time.Time
	State              SessionState
	OpenedBy           uuid.UUID
	OpenedAt           time.Time
	ClosedBy           *uuid.UUID
	ClosedAt           *time.Time
	OpeningBalance     decimal.Decimal
	TotalIncome        decimal.Decimal
	TotalExpense       decimal.Decimal
	TotalsByMethod     MethodTotals
	TheoreticalBalance decimal.Decimal
	DeclaredBalance    *decimal.Decimal
	Discrepancy        *decimal.Decimal
	Observations       string
	Breakdown          Breakdown
	ReopenCount        int
	Incidents          []Incident
	ChangeLog          []ChangeRecord
	EntryIDs           []uuid.UUID
}

// OpenSessionParams carries the input of NewCashSession
type OpenSessionParams struct {
	TenantID       uuid.UUID
	Site           string
	BusinessDate   time.Time
	OpeningBalance decimal.Decimal
	OpenedBy       uuid.UUID
	Observations   string
}

// NewCashSession opens a session. Uniqueness per site and day is enforced by the store.
func NewCashSession(p OpenSessionParams) (*CashSession, error) {
	site := strings.TrimSpace(p.Site)
	if site == "" {
		return nil, shared.NewValidationError(CodeInvalidSite, "Site cannot be empty")
	}
	if p.OpeningBalance.IsNegative() {
		return nil, shared.NewValidationError(CodeInvalidAmount, "Opening balance cannot be negative")
	}
	if err := CheckMoney("Opening balance", p.OpeningBalance); err != nil {
		return nil, err
	}
	if p.BusinessDate.IsZero() {
		return nil, shared.NewValidationError(CodeInvalidBusinessDate, "Business date is required")
	}

	now := time.Now()
	s := &CashSession{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(p.TenantID, p.OpenedBy),
		Site:                site,
		BusinessDate:        BusinessDay(p.BusinessDate, time.UTC),
		State:               SessionStateOpen,
		OpenedBy:            p.OpenedBy,
		OpenedAt:            now,
		OpeningBalance:      p.OpeningBalance,
		TheoreticalBalance:  p.OpeningBalance,
		Observations:        strings.TrimSpace(p.Observations),
	}
	s.record(ChangeActionOpened, snapshot{}, p.OpenedBy, now)
	s.AddDomainEvent(NewCashSessionOpenedEvent(s))
	return s, nil
}

// IsOpen reports whether entries may still be linked
func (s *CashSession) IsOpen() bool {
	return s.State == SessionStateOpen
}

// IsLinked reports whether the entry already contributed to the totals
func (s *CashSession) IsLinked(entryID uuid.UUID) bool {
	for _, id := range s.EntryIDs {
		if id == entryID {
			return true
		}
	}
	return false
}

// LinkEntry adds a posted entry to the running totals. Linking the same entry twice is a no-op.
func (s *CashSession) LinkEntry(entry *LedgerEntry) error {
	if !s.IsOpen() {
		return shared.NewPreconditionError(CodeSessionNotOpen, "Entries can only be linked to an open cash session")
	}
	if entry.SessionID != s.ID {
		return shared.NewPreconditionError(CodeEntrySessionMismatch, "Entry belongs to another cash session")
	}
	if !entry.IsPosted() {
		return shared.NewPreconditionError(CodeEntryNotPosted, "Only posted entries can be linked")
	}
	if s.IsLinked(entry.ID) {
		return nil
	}

	switch entry.Kind {
	case EntryKindIncome:
		total := s.TotalIncome.Add(entry.Amount)
		if err := checkTotal("Total income", total); err != nil {
			return err
		}
		s.TotalIncome = total
	case EntryKindExpense:
		total := s.TotalExpense.Add(entry.Amount)
		if err := checkTotal("Total expense", total); err != nil {
			return err
		}
		s.TotalExpense = total
	default:
		return ErrInvalidEntryKind(entry.Kind)
	}
	s.TotalsByMethod.Add(entry.PaymentMethod, entry.Amount)
	s.EntryIDs = append(s.EntryIDs, entry.ID)
	s.refreshTheoretical()
	s.UpdatedAt = time.Now()
	return nil
}

// ReverseEntry applies the compensating update of a voided entry.
// Totals are floored at zero so earlier drift cannot turn them negative.
func (s *CashSession) ReverseEntry(entry *LedgerEntry, by uuid.UUID) error {
	if !s.IsOpen() {
		return shared.NewPreconditionError(CodeSessionNotOpen, "Entries of a closed cash session cannot be voided")
	}
	if entry.SessionID != s.ID {
		return shared.NewPreconditionError(CodeEntrySessionMismatch, "Entry belongs to another cash session")
	}
	before := s.snapshot()

	switch entry.Kind {
	case EntryKindIncome:
		s.TotalIncome = floorZero(s.TotalIncome.Sub(entry.Amount))
	case EntryKindExpense:
		s.TotalExpense = floorZero(s.TotalExpense.Sub(entry.Amount))
	default:
		return ErrInvalidEntryKind(entry.Kind)
	}
	s.TotalsByMethod.Sub(entry.PaymentMethod, entry.Amount)
	s.refreshTheoretical()

	after := s.snapshot()
	after.Reference = entry.ID.String()
	now := time.Now()
	s.recordChange(ChangeActionEntryVoided, before, after, by, now)
	s.UpdatedAt = now
	return nil
}

// CloseParams carries the input of Close
type CloseParams struct {
	DeclaredBalance *decimal.Decimal
	ClosedBy        uuid.UUID
	Observations    string
	Breakdown       Breakdown
	Policy          ReconciliationPolicy
	// Ledger, when set, is the independently summed ledger used as the consistency reference
	Ledger *LedgerTotals
}

// Close reconciles the declared count against the theoretical balance and closes the session.
// It returns the incident raised for a material discrepancy, if any.
func (s *CashSession) Close(p CloseParams) (*Incident, error) {
	if !s.IsOpen() {
		return nil, shared.NewConflictError(CodeSessionAlreadyClosed, "Cash session is already closed")
	}
	declared, err := resolveDeclared(p.DeclaredBalance, p.Breakdown)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	closedBy := p.ClosedBy
	before := s.snapshot()

	s.resyncTotals(p.Ledger, closedBy, now)
	theoretical := ComputeTheoretical(s.OpeningBalance, s.TotalIncome, s.TotalExpense)
	if !theoretical.Equal(s.TheoreticalBalance) {
		s.raise(IncidentKindSystemError,
			fmt.Sprintf("Maintained theoretical balance %s differed from recomputed %s",
				s.TheoreticalBalance.String(), theoretical.String()), nil, &closedBy, now)
		s.TheoreticalBalance = theoretical
	}
	discrepancy := ComputeDiscrepancy(declared, theoretical)

	s.State = SessionStateClosed
	s.DeclaredBalance = &declared
	s.Discrepancy = &discrepancy
	s.ClosedBy = &closedBy
	s.ClosedAt = &now
	if obs := strings.TrimSpace(p.Observations); obs != "" {
		s.Observations = obs
	}
	if len(p.Breakdown) > 0 {
		s.Breakdown = p.Breakdown
	}
	s.UpdatedAt = now
	s.recordChange(ChangeActionClosed, before, s.snapshot(), closedBy, now)

	var raised *Incident
	if kind, material := p.Policy.Classify(discrepancy); material {
		amount := discrepancy
		raised = s.raise(kind,
			fmt.Sprintf("Discrepancy of %s at close (declared %s, theoretical %s)",
				discrepancy.String(), declared.String(), theoretical.String()),
			&amount, &closedBy, now)
	}

	s.AddDomainEvent(NewCashSessionClosedEvent(s))
	if raised != nil {
		s.AddDomainEvent(NewDiscrepancyIncidentRaisedEvent(s, raised))
	}
	return raised, nil
}

// resyncTotals aligns the maintained totals with the ledger when they drifted apart
func (s *CashSession) resyncTotals(ledger *LedgerTotals, by uuid.UUID, now time.Time) {
	if ledger == nil {
		return
	}
	if ledger.Income.Equal(s.TotalIncome) && ledger.Expense.Equal(s.TotalExpense) && ledger.ByMethod.Equal(s.TotalsByMethod) {
		return
	}
	before := s.snapshot()
	s.raise(IncidentKindSystemError,
		fmt.Sprintf("Session totals (income %s, expense %s) differed from ledger (income %s, expense %s)",
			s.TotalIncome.String(), s.TotalExpense.String(), ledger.Income.String(), ledger.Expense.String()),
		nil, &by, now)
	s.TotalIncome = ledger.Income
	s.TotalExpense = ledger.Expense
	s.TotalsByMethod = ledger.ByMethod
	s.refreshTheoretical()
	s.recordChange(ChangeActionTotalsResynced, before, s.snapshot(), by, now)
}

func resolveDeclared(declared *decimal.Decimal, breakdown Breakdown) (decimal.Decimal, error) {
	if len(breakdown) > 0 {
		if err := breakdown.Validate(); err != nil {
			return decimal.Zero, err
		}
		counted := breakdown.Total()
		if declared == nil {
			return counted, nil
		}
		if !counted.Equal(*declared) {
			return decimal.Zero, shared.NewValidationError(CodeBreakdownMismatch,
				fmt.Sprintf("Breakdown total %s does not match declared balance %s", counted.String(), declared.String()))
		}
	}
	if declared == nil {
		return decimal.Zero, shared.NewValidationError(CodeDeclaredRequired, "Declared balance is required to close a session")
	}
	if declared.IsNegative() {
		return decimal.Zero, shared.NewValidationError(CodeInvalidAmount, "Declared balance cannot be negative")
	}
	if err := CheckMoney("Declared balance", *declared); err != nil {
		return decimal.Zero, err
	}
	return *declared, nil
}

// Reopen returns a closed session to OPEN. The cleared close figures stay in the change log.
// The caller guarantees that no other open session exists for the site.
func (s *CashSession) Reopen(by uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewValidationError(CodeReasonRequired, "A reason is required to reopen a cash session")
	}
	if s.IsOpen() {
		return shared.NewConflictError(CodeSessionAlreadyOpen, "Cash session is already open")
	}

	now := time.Now()
	before := s.snapshot()

	s.State = SessionStateOpen
	s.DeclaredBalance = nil
	s.Discrepancy = nil
	s.ClosedBy = nil
	s.ClosedAt = nil
	s.ReopenCount++
	s.UpdatedAt = now

	after := s.snapshot()
	after.Reference = reason
	s.recordChange(ChangeActionReopened, before, after, by, now)
	s.raise(IncidentKindOther, "Session reopened: "+reason, nil, &by, now)
	s.AddDomainEvent(NewCashSessionReopenedEvent(s, by, reason))
	return nil
}

// AddIncident records a manual incident in any state
func (s *CashSession) AddIncident(kind IncidentKind, description string, amount *decimal.Decimal, by uuid.UUID) (*Incident, error) {
	now := time.Now()
	incident, err := newIncident(s.ID, kind, description, amount, &by, now)
	if err != nil {
		return nil, err
	}
	s.Incidents = append(s.Incidents, *incident)
	s.recordChange(ChangeActionIncidentAdded, snapshot{}, snapshot{State: s.State, Reference: incident.ID.String()}, by, now)
	s.UpdatedAt = now
	return &s.Incidents[len(s.Incidents)-1], nil
}

// ResolveIncident resolves an open incident. Unknown and already resolved ids are not found.
func (s *CashSession) ResolveIncident(incidentID uuid.UUID, solution string, by uuid.UUID) (*Incident, error) {
	for i := range s.Incidents {
		incident := &s.Incidents[i]
		if incident.ID != incidentID {
			continue
		}
		now := time.Now()
		if err := incident.resolve(solution, by, now); err != nil {
			return nil, err
		}
		s.recordChange(ChangeActionIncidentResolved, snapshot{State: s.State, Reference: incidentID.String()},
			snapshot{State: s.State, Reference: incident.Solution}, by, now)
		s.UpdatedAt = now
		s.AddDomainEvent(NewIncidentResolvedEvent(s, incident))
		return incident, nil
	}
	return nil, ErrIncidentNotFound(incidentID)
}

// OpenIncidents returns the incidents still awaiting resolution
func (s *CashSession) OpenIncidents() []Incident {
	out := make([]Incident, 0)
	for _, inc := range s.Incidents {
		if inc.IsOpen() {
			out = append(out, inc)
		}
	}
	return out
}

func (s *CashSession) raise(kind IncidentKind, description string, amount *decimal.Decimal, by *uuid.UUID, now time.Time) *Incident {
	incident := Incident{
		ID:          uuid.New(),
		SessionID:   s.ID,
		Kind:        kind,
		Description: description,
		Amount:      amount,
		CreatedAt:   now,
		CreatedBy:   by,
	}
	s.Incidents = append(s.Incidents, incident)
	return &s.Incidents[len(s.Incidents)-1]
}

func (s *CashSession) refreshTheoretical() {
	s.TheoreticalBalance = ComputeTheoretical(s.OpeningBalance, s.TotalIncome, s.TotalExpense)
}

func (s *CashSession) snapshot() snapshot {
	snap := snapshot{
		State:        s.State,
		TotalIncome:  s.TotalIncome.String(),
		TotalExpense: s.TotalExpense.String(),
		Theoretical:  s.TheoreticalBalance.String(),
		ClosedBy:     s.ClosedBy,
	}
	if s.DeclaredBalance != nil {
		v := s.DeclaredBalance.String()
		snap.DeclaredBalance = &v
	}
	if s.Discrepancy != nil {
		v := s.Discrepancy.String()
		snap.Discrepancy = &v
	}
	return snap
}

func (s *CashSession) record(action ChangeAction, before snapshot, by uuid.UUID, now time.Time) {
	s.recordChange(action, before, s.snapshot(), by, now)
}

func (s *CashSession) recordChange(action ChangeAction, before, after snapshot, by uuid.UUID, now time.Time) {
	prev := ""
	if before != (snapshot{}) {
		prev = before.String()
	}
	s.ChangeLog = append(s.ChangeLog, ChangeRecord{
		ID:            uuid.New(),
		SessionID:     s.ID,
		At:            now,
		Action:        action,
		PreviousValue: prev,
		NewValue:      after.String(),
		ActingUser:    by,
	})
}
