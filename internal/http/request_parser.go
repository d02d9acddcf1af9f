// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Fine requests arrive as JSON or form-encoded bodies; catalog replacements
// are JSON arrays.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"clubfines/internal/core"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrMalformed marks a body or parameter that could not be decoded at all.
var ErrMalformed = errors.New("malformed request")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = fmt.Errorf("%w: %w", ErrMalformed, p.err)
		return p.err
	}

	body := bytes.TrimSpace(p.body)
	if len(body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("%w: %w", ErrMalformed, err)
			return p.err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(body))
	if p.err != nil {
		p.err = fmt.Errorf("%w: %w", ErrMalformed, p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was supplied with a non-blank value.
func (p *RequestBodyParser) Has(key string) bool {
	return p.Get(key) != ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// FineRequestDefaults supplies values for omitted fine fields.
type FineRequestDefaults struct {
	Today         func() core.Date
	DefaultAmount func(violation string) int64
}

// ParseFineRequest builds a FineInput from a parsed body. A missing date
// means today; a missing amount means the rule amount for the violation.
// Unparseable dates or amounts are validation errors.
func ParseFineRequest(p *RequestBodyParser, d FineRequestDefaults) (core.FineInput, error) {
	if err := p.Parse(); err != nil {
		return core.FineInput{}, err
	}

	in := core.FineInput{
		Member:    p.Get("member"),
		EventType: p.Get("event"),
		Violation: p.Get("violation"),
	}

	if p.Has("date") {
		v := p.Get("date")
		date, err := core.ParseDate(v)
		if err != nil {
			return core.FineInput{}, fmt.Errorf("%w: date %q: %w", core.ErrValidation, v, err)
		}
		in.Date = date
	} else {
		in.Date = d.Today()
	}

	if p.Has("amount") {
		v := p.Get("amount")
		amount, err := core.ParseAmount(v)
		if err != nil {
			return core.FineInput{}, fmt.Errorf("%w: amount %q: %w", core.ErrValidation, v, err)
		}
		in.Amount = amount
	} else if d.DefaultAmount != nil {
		in.Amount = d.DefaultAmount(in.Violation)
	}

	return in, nil
}

// ParseEntryID parses a ledger entry id path segment.
func ParseEntryID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: entry id %q", ErrMalformed, s)
	}
	return id, nil
}

// DecodeEventTypes reads a replacement event catalog: [{"name": "..."}].
func DecodeEventTypes(r io.Reader) ([]core.EventType, error) {
	var rows []eventTypeView
	if err := decodeJSONArray(r, &rows); err != nil {
		return nil, err
	}
	out := make([]core.EventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.EventType{Name: sanitizeInput(row.Name)})
	}
	return out, nil
}

// DecodeRules reads a replacement rule catalog: [{"violation": "...", "amount": 50}].
func DecodeRules(r io.Reader) ([]core.Rule, error) {
	var rows []ruleView
	if err := decodeJSONArray(r, &rows); err != nil {
		return nil, err
	}
	out := make([]core.Rule, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Rule{Violation: sanitizeInput(row.Violation), Amount: row.Amount})
	}
	return out, nil
}

func decodeJSONArray(r io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after catalog", ErrMalformed)
	}
	return nil
}
