package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-01-01", NewDate(2024, 1, 1), true},
		{" 2024-03-09 ", NewDate(2024, 3, 9), true},
		{"2024-03-09 00:00:00", NewDate(2024, 3, 9), true},
		{"2024-03-09T00:00:00Z", NewDate(2024, 3, 9), true},
		{"2024-13-01", Date{}, false},
		{"09/03/2024", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want.Time) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrBadDate) {
			t.Fatalf("%q expected ErrBadDate, got %v", tc.in, err)
		}
	}
}

func TestDateTextRoundTrip(t *testing.T) {
	d := NewDate(2024, 2, 29)
	b, err := d.MarshalText()
	if err != nil || string(b) != "2024-02-29" {
		t.Fatalf("marshal: %q %v", b, err)
	}
	var back Date
	if err := back.UnmarshalText(b); err != nil || back.Compare(d) != 0 {
		t.Fatalf("unmarshal: %v %v", back, err)
	}
	if err := back.UnmarshalText([]byte("  ")); err != nil || !back.IsZero() {
		t.Fatalf("empty text should give zero date, got %v %v", back, err)
	}
	if (Date{}).String() != "" {
		t.Fatalf("zero date should render empty")
	}
}

func TestFineInputValidate(t *testing.T) {
	good := FineInput{Date: NewDate(2024, 1, 1), Member: "Alice", Amount: -10}
	if err := good.Validate(); err != nil {
		t.Fatalf("negative amounts are allowed at this layer: %v", err)
	}
	if err := (FineInput{Member: "Alice"}).Validate(); err == nil {
		t.Fatalf("expected error for zero date")
	}
	if err := (FineInput{Date: NewDate(2024, 1, 1), Member: "  "}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	s := Snapshot{
		Members: []Member{{Name: "Alice", TotalFine: 50}},
		Entries: []Entry{{ID: 1, Member: "Alice", Amount: 50}},
		Rules:   DefaultRules(),
	}
	c := s.Clone()
	c.Members[0].TotalFine = 0
	c.Entries[0].Amount = 0
	c.Rules[0].Amount = 0
	if s.Members[0].TotalFine != 50 || s.Entries[0].Amount != 50 || s.Rules[0].Amount != 50 {
		t.Fatalf("clone shares backing arrays with the original")
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date `json:"d"`
	}{NewDate(2024, 3, 9)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2024-03-09"}` {
		t.Fatalf("got %s", b)
	}

	var got struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2024-03-09"}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.D.Equal(NewDate(2024, 3, 9).Time) {
		t.Fatalf("got %v", got.D)
	}
	if err := json.Unmarshal([]byte(`{"d":"09/03/2024"}`), &got); !errors.Is(err, ErrBadDate) {
		t.Fatalf("expected ErrBadDate, got %v", err)
	}
}
