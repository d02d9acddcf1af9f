// Package core provides amount parsing and formatting.
//
// Fine amounts are whole units stored as signed int64. Stores that hand back
// numbers as text (CSV cells, spreadsheet values) go through ParseAmount.
package core

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a cell value to a signed whole amount.
//
// Spreadsheet tools often write integers as "50.0"; a fractional part made of
// zeros only is accepted, anything else is rejected.
//
// Examples:
//
//	ParseAmount("50")    -> 50, nil
//	ParseAmount(" -30 ") -> -30, nil
//	ParseAmount("100.0") -> 100, nil
//	ParseAmount("12.5")  -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		frac := s[i+1:]
		if strings.Trim(frac, "0") != "" {
			return 0, ErrInvalidAmount
		}
		s = s[:i]
	}
	if s == "" || s == "-" || s == "+" {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatAmount renders an amount the way the club displays it, e.g. "$50" or "-$30".
func FormatAmount(v int64) string {
	if v < 0 {
		// -v overflows for MinInt64; format the unsigned magnitude instead.
		return "-$" + strconv.FormatUint(uint64(-(v+1))+1, 10)
	}
	return "$" + strconv.FormatInt(v, 10)
}
