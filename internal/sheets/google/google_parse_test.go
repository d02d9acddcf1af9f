package google

import (
	"reflect"
	"testing"

	"clubfines/internal/core"
)

func TestParseHistory(t *testing.T) {
	values := [][]any{
		{"id", "日期", "姓名", "活動", "違規事項", "金額"},
		{float64(3), "2024-03-01", "Alice", "例會", "遲到", float64(50)},
		{"", "2024-03-02 00:00:00", " Bob ", "社課", "未到", "100.0"},
		{float64(9), "", "", "", "", ""},
		{float64(12), "2024-03-04", "Carol", "成發", "refund", float64(-30)},
	}
	got, err := parseHistory(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	want := []core.Entry{
		{ID: 3, Date: core.NewDate(2024, 3, 1), Member: "Alice", EventType: "例會", Violation: "遲到", Amount: 50},
		{ID: 0, Date: core.NewDate(2024, 3, 2), Member: "Bob", EventType: "社課", Violation: "未到", Amount: 100},
		{ID: 12, Date: core.NewDate(2024, 3, 4), Member: "Carol", EventType: "成發", Violation: "refund", Amount: -30},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestParseHistoryRejectsFractionalAmount(t *testing.T) {
	values := [][]any{historyHeader, {float64(1), "2024-01-01", "A", "", "", float64(12.5)}}
	if _, err := parseHistory(values); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseMembersAndRules(t *testing.T) {
	members, err := parseMembers([][]any{membersHeader, {"Alice", float64(1e6)}, {"Bob"}, {}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(members, []core.Member{{Name: "Alice", TotalFine: 1000000}, {Name: "Bob"}}) {
		t.Fatalf("members = %+v", members)
	}

	rules, err := parseRules([][]any{rulesHeader, {"遲到", float64(50)}, {"", float64(1)}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rules, []core.Rule{{Violation: "遲到", Amount: 50}}) {
		t.Fatalf("rules = %+v", rules)
	}
	if _, err := parseRules([][]any{rulesHeader, {"x", "abc"}}); err == nil {
		t.Fatal("expected rule amount error")
	}
}

func TestParseEmptyWorksheets(t *testing.T) {
	if got := parseEvents(nil); len(got) != 0 {
		t.Fatalf("events = %v", got)
	}
	got, err := parseMembers([][]any{membersHeader})
	if err != nil || len(got) != 0 {
		t.Fatalf("members = %v, %v", got, err)
	}
}

func TestValuesIncludeHeader(t *testing.T) {
	v := historyValues([]core.Entry{{ID: 1, Date: core.NewDate(2024, 1, 2), Member: "A", Amount: 5}})
	if len(v) != 2 || !reflect.DeepEqual(v[0], historyHeader) {
		t.Fatalf("values = %v", v)
	}
	if v[1][1] != "2024-01-02" || v[1][5] != int64(5) {
		t.Fatalf("row = %v", v[1])
	}
}
