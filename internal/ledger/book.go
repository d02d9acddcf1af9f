// Package ledger holds the in-memory fines book: the roster of members, the
// ledger of fine entries and the two admin catalogs.
//
// A Book keeps every member's TotalFine equal to the sum of that member's
// entries. The only writers of TotalFine are RecordFine and DeleteEntry, which
// always touch the roster and the ledger together.
//
// A Book is not safe for concurrent use; services.FineService serializes
// access and swaps whole books on commit.
package ledger

import (
	"slices"

	"clubfines/internal/core"
)

type Book struct {
	members []core.Member
	// index maps member name to its position in members.
	index   map[string]int
	entries []core.Entry
	events  []core.EventType
	rules   []core.Rule
	nextID  int64
}

// New returns an empty book with the default catalogs.
func New() *Book {
	b := &Book{index: map[string]int{}, nextID: 1}
	b.events = core.DefaultEventTypes()
	b.rules = core.DefaultRules()
	return b
}

// FromSnapshot builds a book from persisted state as-is. Stored balances are
// taken verbatim; call Reconcile to check them against the ledger.
//
// Entries without an ID (zero or negative) and duplicate IDs are given fresh
// IDs after the highest one seen, keeping their position.
func FromSnapshot(s core.Snapshot) *Book {
	b := &Book{
		index:  make(map[string]int, len(s.Members)),
		events: append([]core.EventType(nil), s.EventTypes...),
		rules:  append([]core.Rule(nil), s.Rules...),
		nextID: 1,
	}
	for _, m := range s.Members {
		if _, dup := b.index[m.Name]; dup {
			// Keep the first row; its balance is corrected by Reconcile.
			continue
		}
		b.index[m.Name] = len(b.members)
		b.members = append(b.members, m)
	}

	b.entries = append([]core.Entry(nil), s.Entries...)
	for _, e := range b.entries {
		if e.ID >= b.nextID {
			b.nextID = e.ID + 1
		}
	}
	seen := make(map[int64]struct{}, len(b.entries))
	for i := range b.entries {
		id := b.entries[i].ID
		if _, dup := seen[id]; dup || id <= 0 {
			id = b.allocID()
			b.entries[i].ID = id
		}
		seen[id] = struct{}{}
	}
	return b
}

// Snapshot returns a deep copy of the book's persisted state.
func (b *Book) Snapshot() core.Snapshot {
	return core.Snapshot{
		Members:    slices.Clone(b.members),
		Entries:    slices.Clone(b.entries),
		EventTypes: slices.Clone(b.events),
		Rules:      slices.Clone(b.rules),
	}
}

// Clone returns an independent copy of the book, including the ID counter.
func (b *Book) Clone() *Book {
	c := &Book{
		members: slices.Clone(b.members),
		index:   make(map[string]int, len(b.index)),
		entries: slices.Clone(b.entries),
		events:  slices.Clone(b.events),
		rules:   slices.Clone(b.rules),
		nextID:  b.nextID,
	}
	for k, v := range b.index {
		c.index[k] = v
	}
	return c
}

// NextID reports the ID the next recorded fine will get.
func (b *Book) NextID() int64 {
	return b.nextID
}

func (b *Book) allocID() int64 {
	id := b.nextID
	b.nextID++
	return id
}
