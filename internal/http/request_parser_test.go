package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clubfines/internal/core"
)

func newParser(body, contentType string) *RequestBodyParser {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return NewRequestBodyParser(httptest.NewRecorder(), r)
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		key         string
		want        string
		wantJSON    bool
		wantErr     bool
	}{
		{"json string", `{"name":" Alice "}`, "application/json", "name", "Alice", true, false},
		{"json number", `{"amount":50}`, "", "amount", "50", true, false},
		{"json big number keeps precision", `{"amount":9007199254740993}`, "", "amount", "9007199254740993", true, false},
		{"json missing key", `{"name":"Alice"}`, "", "amount", "", true, false},
		{"form", "name=Bob&amount=30", "application/x-www-form-urlencoded", "name", "Bob", false, false},
		{"form control chars", "name=Bo%01b", "application/x-www-form-urlencoded", "name", "Bob", false, false},
		{"empty body", "", "", "name", "", false, false},
		{"broken json", `{"name":`, "application/json", "name", "", false, true},
		{"json array is not an object", `[1,2]`, "application/json", "name", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(tt.body, tt.contentType)
			err := p.Parse()
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("Parse() error = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := p.Get(tt.key); got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
		})
	}
}

func TestParseFineRequest(t *testing.T) {
	today := core.NewDate(2024, 5, 1)
	defaults := FineRequestDefaults{
		Today: func() core.Date { return today },
		DefaultAmount: func(v string) int64 {
			if v == "遲到" {
				return 50
			}
			return 0
		},
	}

	tests := []struct {
		name    string
		body    string
		want    core.FineInput
		wantErr error
	}{
		{
			name: "all fields",
			body: `{"date":"2024-03-01","member":"Alice","event":"例會","violation":"遲到","amount":70}`,
			want: core.FineInput{Date: core.NewDate(2024, 3, 1), Member: "Alice", EventType: "例會", Violation: "遲到", Amount: 70},
		},
		{
			name: "amount defaults to rule",
			body: `{"date":"2024-03-01","member":"Alice","violation":"遲到"}`,
			want: core.FineInput{Date: core.NewDate(2024, 3, 1), Member: "Alice", Violation: "遲到", Amount: 50},
		},
		{
			name: "blank amount treated as omitted",
			body: `{"date":"2024-03-01","member":"Alice","violation":"遲到","amount":"  "}`,
			want: core.FineInput{Date: core.NewDate(2024, 3, 1), Member: "Alice", Violation: "遲到", Amount: 50},
		},
		{
			name: "date defaults to today",
			body: `{"member":"Alice","amount":"-30"}`,
			want: core.FineInput{Date: today, Member: "Alice", Amount: -30},
		},
		{
			name: "unknown violation defaults to zero",
			body: `{"member":"Alice","violation":"other"}`,
			want: core.FineInput{Date: today, Member: "Alice", Violation: "other"},
		},
		{
			name: "spreadsheet style whole number",
			body: `{"member":"Alice","amount":"100.0"}`,
			want: core.FineInput{Date: today, Member: "Alice", Amount: 100},
		},
		{name: "bad date", body: `{"member":"Alice","date":"2024-13-01"}`, wantErr: core.ErrValidation},
		{name: "bad amount", body: `{"member":"Alice","amount":"ten"}`, wantErr: core.ErrValidation},
		{name: "malformed", body: `{`, wantErr: ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFineRequest(newParser(tt.body, "application/json"), defaults)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Member != tt.want.Member || got.EventType != tt.want.EventType ||
				got.Violation != tt.want.Violation || got.Amount != tt.want.Amount ||
				!got.Date.Equal(tt.want.Date.Time) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseEntryID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{" 42 ", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseEntryID(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("ParseEntryID(%q) error = %v, want ErrMalformed", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseEntryID(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestDecodeCatalogs(t *testing.T) {
	events, err := DecodeEventTypes(strings.NewReader(`[{"name":" 例會 "},{"name":"社課"}]`))
	if err != nil {
		t.Fatalf("DecodeEventTypes: %v", err)
	}
	if len(events) != 2 || events[0].Name != "例會" {
		t.Fatalf("events = %+v", events)
	}

	rules, err := DecodeRules(strings.NewReader(`[{"violation":"遲到","amount":50}]`))
	if err != nil {
		t.Fatalf("DecodeRules: %v", err)
	}
	if len(rules) != 1 || rules[0].Amount != 50 {
		t.Fatalf("rules = %+v", rules)
	}

	if rules, err := DecodeRules(strings.NewReader(`null`)); err != nil || len(rules) != 0 {
		t.Fatalf("null catalog = %+v, %v", rules, err)
	}

	for _, body := range []string{
		`{"violation":"x"}`,
		`[{"violation":"x","amount":1.5}]`,
		`[{"violation":"x","fee":1}]`,
		`[] []`,
	} {
		if _, err := DecodeRules(strings.NewReader(body)); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeRules(%s) error = %v, want ErrMalformed", body, err)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
