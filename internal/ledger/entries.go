package ledger

import (
	"fmt"
	"iter"
	"slices"

	"clubfines/internal/core"
)

// RecordFine appends an entry for an existing member and adds its amount to
// the member's balance. Amounts may be zero or negative.
func (b *Book) RecordFine(in core.FineInput) (core.Entry, error) {
	if _, ok := b.index[in.Member]; !ok {
		return core.Entry{}, fmt.Errorf("%w: member %q", core.ErrNotFound, in.Member)
	}
	e := core.Entry{
		ID:        b.allocID(),
		Date:      in.Date,
		Member:    in.Member,
		EventType: in.EventType,
		Violation: in.Violation,
		Amount:    in.Amount,
	}
	b.entries = append(b.entries, e)
	// Cannot fail: membership was checked above.
	_ = b.adjustBalance(e.Member, e.Amount)
	return e, nil
}

// DeleteEntry removes an entry and refunds its amount from the owner's
// balance. It returns the removed entry.
func (b *Book) DeleteEntry(id int64) (core.Entry, error) {
	i := b.position(id)
	if i < 0 {
		return core.Entry{}, fmt.Errorf("%w: entry %d", core.ErrNotFound, id)
	}
	e := b.entries[i]
	if _, ok := b.index[e.Member]; !ok {
		return core.Entry{}, fmt.Errorf("%w: member %q of entry %d", core.ErrNotFound, e.Member, id)
	}
	b.entries = slices.Delete(b.entries, i, i+1)
	_ = b.adjustBalance(e.Member, -e.Amount)
	return e, nil
}

// Entry looks up a single entry by ID.
func (b *Book) Entry(id int64) (core.Entry, error) {
	i := b.position(id)
	if i < 0 {
		return core.Entry{}, fmt.Errorf("%w: entry %d", core.ErrNotFound, id)
	}
	return b.entries[i], nil
}

// EntriesFor yields the member's entries in insertion order. The sequence
// reads the book lazily and can be ranged over more than once.
func (b *Book) EntriesFor(name string) iter.Seq[core.Entry] {
	return func(yield func(core.Entry) bool) {
		for _, e := range b.entries {
			if e.Member != name {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// AllEntries yields every entry in insertion order.
func (b *Book) AllEntries() iter.Seq[core.Entry] {
	return func(yield func(core.Entry) bool) {
		for _, e := range b.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Len reports the number of entries.
func (b *Book) Len() int {
	return len(b.entries)
}

func (b *Book) position(id int64) int {
	return slices.IndexFunc(b.entries, func(e core.Entry) bool { return e.ID == id })
}
