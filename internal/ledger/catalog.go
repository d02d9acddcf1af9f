package ledger

import (
	"fmt"
	"slices"

	"clubfines/internal/core"
)

func (b *Book) EventTypes() []core.EventType {
	return slices.Clone(b.events)
}

func (b *Book) Rules() []core.Rule {
	return slices.Clone(b.rules)
}

// ReplaceEventTypes swaps the whole event catalog. Keys are trimmed; blank or
// repeated names are rejected and leave the catalog unchanged.
func (b *Book) ReplaceEventTypes(rows []core.EventType) error {
	out := make([]core.EventType, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		name := core.NormalizeName(r.Name)
		if err := checkKey(seen, name, i); err != nil {
			return err
		}
		out = append(out, core.EventType{Name: name})
	}
	b.events = out
	return nil
}

// ReplaceRules swaps the whole rule catalog. Recorded entries keep the amount
// they were created with.
func (b *Book) ReplaceRules(rows []core.Rule) error {
	out := make([]core.Rule, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		v := core.NormalizeName(r.Violation)
		if err := checkKey(seen, v, i); err != nil {
			return err
		}
		out = append(out, core.Rule{Violation: v, Amount: r.Amount})
	}
	b.rules = out
	return nil
}

// DefaultAmountFor returns the configured amount for a violation, or 0.
func (b *Book) DefaultAmountFor(violation string) int64 {
	for _, r := range b.rules {
		if r.Violation == violation {
			return r.Amount
		}
	}
	return 0
}

func checkKey(seen map[string]struct{}, key string, row int) error {
	if key == "" {
		return fmt.Errorf("%w: row %d: %w", core.ErrValidation, row+1, core.ErrEmptyKey)
	}
	if _, dup := seen[key]; dup {
		return fmt.Errorf("%w: row %d: duplicate key %q", core.ErrValidation, row+1, key)
	}
	seen[key] = struct{}{}
	return nil
}
