package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DateLayout is the text form used by every store and the HTTP API.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Member struct {
		Name      string
		TotalFine int64
	}

	EventType struct {
		Name string
	}

	Rule struct {
		Violation string
		Amount    int64
	}

	// Entry is one recorded fine. Entries are never edited, only deleted.
	Entry struct {
		ID        int64
		Date      Date
		Member    string
		EventType string
		Violation string
		Amount    int64
	}

	// FineInput carries the fields of a fine before it is given an ID.
	FineInput struct {
		Date      Date
		Member    string
		EventType string
		Violation string
		Amount    int64
	}
)

var (
	ErrDuplicateMember = errors.New("duplicate member")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")

	ErrEmptyName  = errors.New("empty name")
	ErrPaddedName = errors.New("name has leading or trailing spaces")
	ErrEmptyKey   = errors.New("empty catalog key")
	ErrBadDate    = errors.New("invalid date")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar day in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a YYYY-MM-DD string. A trailing time part, as written by
// spreadsheet exports, is ignored.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && (s[len(DateLayout)] == ' ' || s[len(DateLayout)] == 'T') {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrBadDate
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Compare orders dates chronologically.
func (d Date) Compare(o Date) int {
	return d.Time.Compare(o.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input leaves the zero date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON keeps the YYYY-MM-DD form; the embedded time.Time would
// otherwise encode a full timestamp.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrBadDate
	}
	return d.UnmarshalText([]byte(s))
}

// NormalizeName trims the surrounding whitespace of a member or catalog key.
func NormalizeName(s string) string {
	return strings.TrimSpace(s)
}

func (f FineInput) Validate() error {
	if err := f.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(f.Member) == "" {
		return ErrEmptyName
	}
	return nil
}
