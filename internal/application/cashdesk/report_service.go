package cashdesk

import (
	"context"
	"strings"
	"time"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ReportService answers read-only summaries. Voided entries never count.
type ReportService struct {
	sessionRepo cashdesk.CashSessionRepository
	entryRepo   cashdesk.LedgerEntryRepository
	opts        Options
}

// NewReportService creates a new ReportService
func NewReportService(
	sessionRepo cashdesk.CashSessionRepository,
	entryRepo cashdesk.LedgerEntryRepository,
	opts Options,
) *ReportService {
	return &ReportService{
		sessionRepo: sessionRepo,
		entryRepo:   entryRepo,
		opts:        opts.normalized(),
	}
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return shared.NewValidationError(cashdesk.CodeInvalidDateRange, "Both 'from' and 'to' are required")
	}
	if to.Before(from) {
		return shared.NewValidationError(cashdesk.CodeInvalidDateRange, "'to' must not be before 'from'")
	}
	return nil
}

// SummaryByDateRange summarises the sessions whose business date falls in [from, to], grouped by site
func (s *ReportService) SummaryByDateRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time, site string) (*SessionSummaryResponse, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	start := cashdesk.BusinessDay(from, time.UTC)
	end := cashdesk.BusinessDay(to, time.UTC)
	sessions, err := s.sessionRepo.FindInRange(ctx, tenantID, start, end, strings.TrimSpace(site))
	if err != nil {
		return nil, err
	}
	summary := cashdesk.SummarizeSessions(start, end, sessions)
	return &SessionSummaryResponse{
		From:   start.Format(dateLayout),
		To:     end.Format(dateLayout),
		Totals: summary.Totals,
		Sites:  summary.Sites,
	}, nil
}

// DailyEntrySummary groups the entries recorded on a local calendar day by kind
func (s *ReportService) DailyEntrySummary(ctx context.Context, tenantID uuid.UUID, date time.Time, site string) (*DailyEntrySummaryResponse, error) {
	if date.IsZero() {
		return nil, shared.NewValidationError(cashdesk.CodeInvalidDateRange, "'date' is required")
	}
	start, end := s.opts.dayBounds(date, date)
	site = strings.TrimSpace(site)
	entries, err := s.entryRepo.Find(ctx, tenantID, cashdesk.EntryFilter{Site: site, From: &start, To: &end})
	if err != nil {
		return nil, err
	}
	summary := cashdesk.SummarizeDay(start, entries)
	return &DailyEntrySummaryResponse{
		Date:    start.Format(dateLayout),
		Site:    site,
		Income:  toKindSummaryResponse(summary.Income),
		Expense: toKindSummaryResponse(summary.Expense),
		Net:     summary.Net,
	}, nil
}

// RangeEntrySummary lists the entries recorded between the local days from and to, optionally of one kind
func (s *ReportService) RangeEntrySummary(ctx context.Context, tenantID uuid.UUID, from, to time.Time, site, kind string) (*RangeEntrySummaryResponse, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	var kindFilter *cashdesk.EntryKind
	if kind = strings.ToUpper(strings.TrimSpace(kind)); kind != "" {
		k := cashdesk.EntryKind(kind)
		if !k.IsValid() {
			return nil, cashdesk.ErrInvalidEntryKind(k)
		}
		kindFilter = &k
	}
	start, end := s.opts.dayBounds(from, to)
	site = strings.TrimSpace(site)
	entries, err := s.entryRepo.Find(ctx, tenantID, cashdesk.EntryFilter{Site: site, Kind: kindFilter, From: &start, To: &end})
	if err != nil {
		return nil, err
	}
	summary := cashdesk.SummarizeRange(start, end, kindFilter, entries)
	return &RangeEntrySummaryResponse{
		From:         start.Format(dateLayout),
		To:           end.AddDate(0, 0, -1).Format(dateLayout),
		Site:         site,
		Kind:         kind,
		Entries:      toEntryResponses(summary.Entries),
		TotalIncome:  summary.TotalIncome,
		TotalExpense: summary.TotalExpense,
		IncomeCount:  summary.IncomeCount,
		ExpenseCount: summary.ExpenseCount,
		Net:          summary.Net,
	}, nil
}
