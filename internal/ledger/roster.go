package ledger

import (
	"fmt"
	"slices"

	"clubfines/internal/core"
)

// AddMember registers a new member with a zero balance. Names are stored
// exactly as given, so padded names are rejected rather than trimmed.
func (b *Book) AddMember(name string) (core.Member, error) {
	switch core.NormalizeName(name) {
	case "":
		return core.Member{}, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyName)
	case name:
	default:
		return core.Member{}, fmt.Errorf("%w: %w: %q", core.ErrValidation, core.ErrPaddedName, name)
	}
	if _, ok := b.index[name]; ok {
		return core.Member{}, fmt.Errorf("%w: %q", core.ErrDuplicateMember, name)
	}
	m := core.Member{Name: name}
	b.index[name] = len(b.members)
	b.members = append(b.members, m)
	return m, nil
}

// Member returns the named member. Names match exactly, case included.
func (b *Book) Member(name string) (core.Member, error) {
	i, ok := b.index[name]
	if !ok {
		return core.Member{}, fmt.Errorf("%w: member %q", core.ErrNotFound, name)
	}
	return b.members[i], nil
}

// Members returns the roster in insertion order.
func (b *Book) Members() []core.Member {
	return slices.Clone(b.members)
}

// adjustBalance is the single mutator of TotalFine.
func (b *Book) adjustBalance(name string, delta int64) error {
	i, ok := b.index[name]
	if !ok {
		return fmt.Errorf("%w: member %q", core.ErrNotFound, name)
	}
	b.members[i].TotalFine += delta
	return nil
}
