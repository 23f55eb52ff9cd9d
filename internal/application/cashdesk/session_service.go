package cashdesk

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SessionService runs the cash session state machine: open, close, reopen and the incident workflow
type SessionService struct {
	txScope        TransactionScope
	sessionRepo    cashdesk.CashSessionRepository
	entryRepo      cashdesk.LedgerEntryRepository
	locker         SessionLocker
	eventPublisher shared.EventPublisher
	opts           Options
	logger         *zap.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(
	txScope TransactionScope,
	sessionRepo cashdesk.CashSessionRepository,
	entryRepo cashdesk.LedgerEntryRepository,
	locker SessionLocker,
	opts Options,
) *SessionService {
	if locker == nil {
		locker = noopLocker{}
	}
	return &SessionService{
		txScope:     txScope,
		sessionRepo: sessionRepo,
		entryRepo:   entryRepo,
		locker:      locker,
		opts:        opts.normalized(),
		logger:      zap.NewNop(),
	}
}

// SetEventPublisher sets the publisher that receives domain events after commit
func (s *SessionService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the service logger
func (s *SessionService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Open opens the register of a site for the current business day.
// A missing or zero opening balance carries forward the declared balance of the last closed session.
func (s *SessionService) Open(ctx context.Context, tenantID uuid.UUID, req OpenSessionRequest) (*SessionResponse, error) {
	site := strings.TrimSpace(req.Site)
	if site == "" {
		return nil, shared.NewValidationError(cashdesk.CodeInvalidSite, "Site cannot be empty")
	}
	unlock, err := s.locker.Lock(ctx, LockKey(tenantID, site))
	if err != nil {
		return nil, err
	}
	defer unlock()

	businessDate := s.opts.today()
	var session *cashdesk.CashSession
	err = traced(ctx, "open_session", site, s.opts.MaxRetries, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			existing, err := repos.SessionRepo().FindOpen(ctx, tenantID, site, businessDate)
			if err != nil && !isNotFound(err) {
				return err
			}
			if existing != nil {
				return cashdesk.ErrSessionAlreadyOpen(site)
			}

			opening := decimal.Zero
			if req.OpeningBalance != nil {
				opening = *req.OpeningBalance
			}
			if opening.IsZero() {
				last, err := repos.SessionRepo().FindLastClosed(ctx, tenantID, site)
				switch {
				case err == nil && last.DeclaredBalance != nil:
					opening = *last.DeclaredBalance
				case err != nil && !isNotFound(err):
					return err
				}
			}

			session, err = cashdesk.NewCashSession(cashdesk.OpenSessionParams{
				TenantID:       tenantID,
				Site:           site,
				BusinessDate:   businessDate,
				OpeningBalance: opening,
				OpenedBy:       req.OpenedBy,
				Observations:   req.Observations,
			})
			if err != nil {
				return err
			}
			return repos.SessionRepo().Create(ctx, session)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cash session opened",
		zap.String("session_id", session.ID.String()),
		zap.String("site", session.Site),
		zap.String("business_date", session.BusinessDate.Format(dateLayout)),
		zap.String("opening_balance", session.OpeningBalance.String()))
	publish(ctx, s.eventPublisher, session)
	return toSessionResponse(session), nil
}

// GetByID returns a session with its incidents and change log
func (s *SessionService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*SessionResponse, error) {
	session, err := s.sessionRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(session), nil
}

// GetCurrent returns the open session of a site for the current business day
func (s *SessionService) GetCurrent(ctx context.Context, tenantID uuid.UUID, site string) (*SessionResponse, error) {
	site = strings.TrimSpace(site)
	if site == "" {
		return nil, shared.NewValidationError(cashdesk.CodeInvalidSite, "Site cannot be empty")
	}
	session, err := s.sessionRepo.FindOpen(ctx, tenantID, site, s.opts.today())
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError(cashdesk.CodeNoOpenSession,
				fmt.Sprintf("No open cash session for site %q", site))
		}
		return nil, err
	}
	return toSessionResponse(session), nil
}

// List returns a page of sessions
func (s *SessionService) List(ctx context.Context, tenantID uuid.UUID, filter SessionListFilter) (*shared.Paginated[SessionResponse], error) {
	domainFilter := cashdesk.SessionFilter{
		Filter: shared.DefaultFilter(),
		Site:   strings.TrimSpace(filter.Site),
		From:   filter.From,
		To:     filter.To,
	}
	domainFilter.OrderBy = "business_date"
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.State != "" {
		state := cashdesk.SessionState(strings.ToUpper(filter.State))
		if !state.IsValid() {
			return nil, shared.NewValidationError("INVALID_STATE_FILTER", "Unknown session state: "+filter.State)
		}
		domainFilter.State = &state
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, shared.NewValidationError(cashdesk.CodeInvalidDateRange, "'to' must not be before 'from'")
	}

	sessions, total, err := s.sessionRepo.FindAll(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}
	items := make([]SessionResponse, len(sessions))
	for i := range sessions {
		items[i] = *toSessionResponse(&sessions[i])
	}
	page := shared.NewPaginated(items, total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// Close reconciles the declared cash count and closes the session
func (s *SessionService) Close(ctx context.Context, tenantID, id uuid.UUID, req CloseSessionRequest) (*CloseSessionResponse, error) {
	var (
		session  *cashdesk.CashSession
		incident *cashdesk.Incident
	)
	err := s.mutate(ctx, "close_session", tenantID, id, func(repos TransactionalRepositories, current *cashdesk.CashSession) error {
		entries, err := repos.EntryRepo().FindBySession(ctx, tenantID, current.ID)
		if err != nil {
			return err
		}
		ledger := cashdesk.SumLedger(entries)
		incident, err = current.Close(cashdesk.CloseParams{
			DeclaredBalance: req.DeclaredBalance,
			ClosedBy:        req.ClosedBy,
			Observations:    req.Observations,
			Breakdown:       req.breakdown(),
			Policy:          s.opts.Policy,
			Ledger:          &ledger,
		})
		if err != nil {
			return err
		}
		session = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("session_id", session.ID.String()),
		zap.String("site", session.Site),
		zap.String("theoretical_balance", session.TheoreticalBalance.String()),
		zap.String("declared_balance", session.DeclaredBalance.String()),
		zap.String("discrepancy", session.Discrepancy.String()),
	}
	if incident != nil {
		s.logger.Warn("Cash session closed with discrepancy", append(fields, zap.String("incident_kind", string(incident.Kind)))...)
	} else {
		s.logger.Info("Cash session closed", fields...)
	}
	publish(ctx, s.eventPublisher, session)

	resp := &CloseSessionResponse{Session: *toSessionResponse(session)}
	if incident != nil {
		inc := toIncidentResponse(incident)
		resp.Incident = &inc
	}
	return resp, nil
}

// Reopen returns a closed session to OPEN. It fails when another session of the site is open.
func (s *SessionService) Reopen(ctx context.Context, tenantID, id uuid.UUID, req ReopenSessionRequest) (*SessionResponse, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, shared.NewValidationError(cashdesk.CodeReasonRequired, "A reason is required to reopen a cash session")
	}
	var session *cashdesk.CashSession
	err := s.mutate(ctx, "reopen_session", tenantID, id, func(repos TransactionalRepositories, current *cashdesk.CashSession) error {
		if current.IsOpen() {
			return shared.NewConflictError(cashdesk.CodeSessionAlreadyOpen, "Cash session is already open")
		}
		open, err := repos.SessionRepo().FindOpenBySite(ctx, tenantID, current.Site)
		if err != nil {
			return err
		}
		for _, other := range open {
			if other.ID != current.ID {
				return shared.NewConflictError(cashdesk.CodeReopenCollision,
					fmt.Sprintf("Site %q already has open cash session %s", current.Site, other.ID))
			}
		}
		if err := current.Reopen(req.ReopenedBy, req.Reason); err != nil {
			return err
		}
		session = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cash session reopened",
		zap.String("session_id", session.ID.String()),
		zap.String("site", session.Site),
		zap.Int("reopen_count", session.ReopenCount))
	publish(ctx, s.eventPublisher, session)
	return toSessionResponse(session), nil
}

// AddIncident records a manual incident on a session in any state
func (s *SessionService) AddIncident(ctx context.Context, tenantID, id uuid.UUID, req AddIncidentRequest) (*IncidentResponse, error) {
	var incident *cashdesk.Incident
	var session *cashdesk.CashSession
	err := s.mutate(ctx, "add_incident", tenantID, id, func(_ TransactionalRepositories, current *cashdesk.CashSession) error {
		var err error
		incident, err = current.AddIncident(cashdesk.IncidentKind(strings.ToLower(strings.TrimSpace(req.Kind))), req.Description, req.Amount, req.CreatedBy)
		session = current
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.eventPublisher, session)
	resp := toIncidentResponse(incident)
	return &resp, nil
}

// ResolveIncident resolves an open incident. Already resolved incidents are reported as not found.
func (s *SessionService) ResolveIncident(ctx context.Context, tenantID, sessionID, incidentID uuid.UUID, req ResolveIncidentRequest) (*IncidentResponse, error) {
	var incident *cashdesk.Incident
	var session *cashdesk.CashSession
	err := s.mutate(ctx, "resolve_incident", tenantID, sessionID, func(_ TransactionalRepositories, current *cashdesk.CashSession) error {
		var err error
		incident, err = current.ResolveIncident(incidentID, req.Solution, req.ResolvedBy)
		session = current
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.eventPublisher, session)
	resp := toIncidentResponse(incident)
	return &resp, nil
}

// mutate locks the session's site, loads the session for update inside a transaction,
// applies fn and saves with the optimistic version check, retrying lost races
func (s *SessionService) mutate(
	ctx context.Context,
	op string,
	tenantID, id uuid.UUID,
	fn func(repos TransactionalRepositories, session *cashdesk.CashSession) error,
) error {
	located, err := s.sessionRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	unlock, err := s.locker.Lock(ctx, LockKey(tenantID, located.Site))
	if err != nil {
		return err
	}
	defer unlock()

	return traced(ctx, op, located.Site, s.opts.MaxRetries, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			current, err := repos.SessionRepo().FindByIDForUpdate(ctx, tenantID, id)
			if err != nil {
				return err
			}
			telemetry.SetAttributes(trace.SpanFromContext(ctx), telemetry.SpanAttrSessionID, current.ID.String())
			if err := fn(repos, current); err != nil {
				return err
			}
			return repos.SessionRepo().SaveWithLock(ctx, current)
		})
	})
}
