package google

import (
	"fmt"
	"strconv"
	"strings"

	"clubfines/internal/core"
)

// Header rows written to each worksheet. The first row of every worksheet
// is treated as a header on read.
var (
	membersHeader = []any{"姓名", "總罰金"}
	historyHeader = []any{"id", "日期", "姓名", "活動", "違規事項", "金額"}
	eventsHeader  = []any{"活動名稱"}
	rulesHeader   = []any{"違規事項", "金額"}
)

func parseMembers(values [][]any) ([]core.Member, error) {
	out := make([]core.Member, 0, len(values))
	for i, row := range dataRows(values) {
		cols := toStrings(row)
		name := core.NormalizeName(safeGet(cols, 0))
		if name == "" {
			continue
		}
		m := core.Member{Name: name}
		if v := safeGet(cols, 1); v != "" {
			amount, err := core.ParseAmount(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			m.TotalFine = amount
		}
		out = append(out, m)
	}
	return out, nil
}

func parseHistory(values [][]any) ([]core.Entry, error) {
	out := make([]core.Entry, 0, len(values))
	for i, row := range dataRows(values) {
		cols := toStrings(row)
		e := core.Entry{
			Member:    core.NormalizeName(safeGet(cols, 2)),
			EventType: safeGet(cols, 3),
			Violation: safeGet(cols, 4),
		}
		if e.Member == "" {
			continue
		}
		// Ids that do not parse stay 0 and are reassigned by the ledger.
		e.ID, _ = strconv.ParseInt(safeGet(cols, 0), 10, 64)
		if v := safeGet(cols, 1); v != "" {
			d, err := core.ParseDate(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			e.Date = d
		}
		amount, err := core.ParseAmount(safeGet(cols, 5))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		e.Amount = amount
		out = append(out, e)
	}
	return out, nil
}

func parseEvents(values [][]any) []core.EventType {
	out := make([]core.EventType, 0, len(values))
	for _, row := range dataRows(values) {
		if name := safeGet(toStrings(row), 0); name != "" {
			out = append(out, core.EventType{Name: name})
		}
	}
	return out
}

func parseRules(values [][]any) ([]core.Rule, error) {
	out := make([]core.Rule, 0, len(values))
	for i, row := range dataRows(values) {
		cols := toStrings(row)
		violation := safeGet(cols, 0)
		if violation == "" {
			continue
		}
		amount, err := core.ParseAmount(safeGet(cols, 1))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, core.Rule{Violation: violation, Amount: amount})
	}
	return out, nil
}

func membersValues(members []core.Member) [][]any {
	out := [][]any{membersHeader}
	for _, m := range members {
		out = append(out, []any{m.Name, m.TotalFine})
	}
	return out
}

func historyValues(entries []core.Entry) [][]any {
	out := [][]any{historyHeader}
	for _, e := range entries {
		out = append(out, []any{e.ID, e.Date.String(), e.Member, e.EventType, e.Violation, e.Amount})
	}
	return out
}

func eventsValues(events []core.EventType) [][]any {
	out := [][]any{eventsHeader}
	for _, e := range events {
		out = append(out, []any{e.Name})
	}
	return out
}

func rulesValues(rules []core.Rule) [][]any {
	out := [][]any{rulesHeader}
	for _, r := range rules {
		out = append(out, []any{r.Violation, r.Amount})
	}
	return out
}

func dataRows(values [][]any) [][]any {
	if len(values) <= 1 {
		return nil
	}
	return values[1:]
}

// toStrings renders cells as text. Unformatted numbers arrive as float64.
func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		case nil:
			out[i] = ""
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return strings.TrimSpace(arr[idx])
}
