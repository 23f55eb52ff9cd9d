package cashdesk

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SiteSessionSummary aggregates the sessions of one site
type SiteSessionSummary struct {
	Site             string          `json:"site"`
	Sessions         int             `json:"sessions"`
	OpenSessions     int             `json:"open_sessions"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpense     decimal.Decimal `json:"total_expense"`
	TotalDiscrepancy decimal.Decimal `json:"total_discrepancy"`
}

func (s *SiteSessionSummary) add(session *CashSession) {
	s.Sessions++
	if session.IsOpen() {
		s.OpenSessions++
	}
	s.TotalIncome = s.TotalIncome.Add(session.TotalIncome)
	s.TotalExpense = s.TotalExpense.Add(session.TotalExpense)
	if session.Discrepancy != nil {
		s.TotalDiscrepancy = s.TotalDiscrepancy.Add(*session.Discrepancy)
	}
}

// SessionSummary is the result of a date-range summary over sessions
type SessionSummary struct {
	From   time.Time            `json:"from"`
	To     time.Time            `json:"to"`
	Totals SiteSessionSummary   `json:"totals"`
	Sites  []SiteSessionSummary `json:"sites"`
}

// SummarizeSessions groups sessions by site, sorted by site name
func SummarizeSessions(from, to time.Time, sessions []CashSession) SessionSummary {
	bySite := make(map[string]*SiteSessionSummary)
	summary := SessionSummary{From: from, To: to, Sites: []SiteSessionSummary{}}
	for i := range sessions {
		session := &sessions[i]
		row, ok := bySite[session.Site]
		if !ok {
			row = &SiteSessionSummary{Site: session.Site}
			bySite[session.Site] = row
		}
		row.add(session)
		summary.Totals.add(session)
	}
	for _, row := range bySite {
		summary.Sites = append(summary.Sites, *row)
	}
	sort.Slice(summary.Sites, func(i, j int) bool { return summary.Sites[i].Site < summary.Sites[j].Site })
	return summary
}

// KindSummary aggregates the posted entries of one kind
type KindSummary struct {
	Kind    EntryKind       `json:"kind"`
	Total   decimal.Decimal `json:"total"`
	Count   int             `json:"count"`
	Entries []LedgerEntry   `json:"-"`
}

// DailyEntrySummary is the per-kind view of one calendar day
type DailyEntrySummary struct {
	Date    time.Time       `json:"date"`
	Income  KindSummary     `json:"income"`
	Expense KindSummary     `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// SummarizeDay groups the posted entries of a day by kind. Voided entries are excluded.
func SummarizeDay(date time.Time, entries []LedgerEntry) DailyEntrySummary {
	out := DailyEntrySummary{
		Date:    date,
		Income:  KindSummary{Kind: EntryKindIncome, Entries: []LedgerEntry{}},
		Expense: KindSummary{Kind: EntryKindExpense, Entries: []LedgerEntry{}},
	}
	for _, e := range entries {
		if !e.IsPosted() {
			continue
		}
		target := &out.Income
		if e.Kind == EntryKindExpense {
			target = &out.Expense
		}
		target.Total = target.Total.Add(e.Amount)
		target.Count++
		target.Entries = append(target.Entries, e)
	}
	out.Net = out.Income.Total.Sub(out.Expense.Total)
	return out
}

// RangeEntrySummary is the filtered entry list of a date range with derived totals
type RangeEntrySummary struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Entries      []LedgerEntry   `json:"-"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	IncomeCount  int             `json:"income_count"`
	ExpenseCount int             `json:"expense_count"`
	Net          decimal.Decimal `json:"net"`
}

// SummarizeRange derives totals over posted entries, optionally restricted to one kind
func SummarizeRange(from, to time.Time, kind *EntryKind, entries []LedgerEntry) RangeEntrySummary {
	out := RangeEntrySummary{From: from, To: to, Entries: []LedgerEntry{}}
	for _, e := range entries {
		if !e.IsPosted() {
			continue
		}
		if kind != nil && e.Kind != *kind {
			continue
		}
		switch e.Kind {
		case EntryKindIncome:
			out.TotalIncome = out.TotalIncome.Add(e.Amount)
			out.IncomeCount++
		case EntryKindExpense:
			out.TotalExpense = out.TotalExpense.Add(e.Amount)
			out.ExpenseCount++
		}
		out.Entries = append(out.Entries, e)
	}
	out.Net = out.TotalIncome.Sub(out.TotalExpense)
	return out
}
