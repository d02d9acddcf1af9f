package ledger

import "clubfines/internal/core"

// Reconcile recomputes every balance from the ledger and repairs the roster
// in place. Members that appear only in the ledger are appended to the roster
// in order of first appearance. It returns what had to change; an empty
// result means the stored balances already matched.
func (b *Book) Reconcile() []core.Discrepancy {
	sums := make(map[string]int64, len(b.members))
	var orphans []string
	for _, e := range b.entries {
		if _, ok := b.index[e.Member]; !ok {
			if _, seen := sums[e.Member]; !seen {
				orphans = append(orphans, e.Member)
			}
		}
		sums[e.Member] += e.Amount
	}

	var out []core.Discrepancy
	for i, m := range b.members {
		want := sums[m.Name]
		if m.TotalFine != want {
			out = append(out, core.Discrepancy{Member: m.Name, Stored: m.TotalFine, Computed: want})
			b.members[i].TotalFine = want
		}
	}
	for _, name := range orphans {
		b.index[name] = len(b.members)
		b.members = append(b.members, core.Member{Name: name, TotalFine: sums[name]})
		out = append(out, core.Discrepancy{Member: name, Computed: sums[name], Restored: true})
	}
	return out
}

// Balanced reports whether every stored balance matches the ledger, without
// modifying the book.
func (b *Book) Balanced() bool {
	return len(b.Clone().Reconcile()) == 0
}
