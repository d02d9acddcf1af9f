package http

import (
	"strings"

	"clubfines/internal/core"
)

// JSON views of the domain types. List helpers never return nil so empty
// collections encode as [] rather than null.

type memberView struct {
	Name      string `json:"name"`
	TotalFine int64  `json:"total_fine"`
	Display   string `json:"display"`
}

type entryView struct {
	ID        int64     `json:"id"`
	Date      core.Date `json:"date"`
	Member    string    `json:"member"`
	EventType string    `json:"event"`
	Violation string    `json:"violation"`
	Amount    int64     `json:"amount"`
	Display   string    `json:"display"`
}

type standingView struct {
	Rank      int    `json:"rank"`
	Name      string `json:"name"`
	TotalFine int64  `json:"total_fine"`
	Display   string `json:"display"`
	Share     int    `json:"share"`
}

type summaryView struct {
	Member  memberView  `json:"member"`
	Entries []entryView `json:"entries"`
}

type eventTypeView struct {
	Name string `json:"name"`
}

type ruleView struct {
	Violation string `json:"violation"`
	Amount    int64  `json:"amount"`
}

// fineResult answers record and delete calls with the affected entry and
// the member's balance after the change.
type fineResult struct {
	Entry    entryView  `json:"entry"`
	Member   memberView `json:"member"`
	Refunded int64      `json:"refunded,omitempty"`
}

func toMemberView(m core.Member) memberView {
	return memberView{Name: m.Name, TotalFine: m.TotalFine, Display: core.FormatAmount(m.TotalFine)}
}

func toEntryView(e core.Entry) entryView {
	return entryView{
		ID:        e.ID,
		Date:      e.Date,
		Member:    e.Member,
		EventType: e.EventType,
		Violation: e.Violation,
		Amount:    e.Amount,
		Display:   core.FormatAmount(e.Amount),
	}
}

func toMemberViews(ms []core.Member) []memberView {
	out := make([]memberView, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMemberView(m))
	}
	return out
}

func toEntryViews(es []core.Entry) []entryView {
	out := make([]entryView, 0, len(es))
	for _, e := range es {
		out = append(out, toEntryView(e))
	}
	return out
}

func toStandingViews(ss []core.Standing) []standingView {
	out := make([]standingView, 0, len(ss))
	for _, s := range ss {
		out = append(out, standingView{
			Rank:      s.Rank,
			Name:      s.Member.Name,
			TotalFine: s.Member.TotalFine,
			Display:   core.FormatAmount(s.Member.TotalFine),
			Share:     s.Share,
		})
	}
	return out
}

func toSummaryView(ps core.PersonalSummary) summaryView {
	return summaryView{Member: toMemberView(ps.Member), Entries: toEntryViews(ps.Entries)}
}

func toEventTypeViews(ts []core.EventType) []eventTypeView {
	out := make([]eventTypeView, 0, len(ts))
	for _, t := range ts {
		out = append(out, eventTypeView{Name: t.Name})
	}
	return out
}

func toRuleViews(rs []core.Rule) []ruleView {
	out := make([]ruleView, 0, len(rs))
	for _, r := range rs {
		out = append(out, ruleView{Violation: r.Violation, Amount: r.Amount})
	}
	return out
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
