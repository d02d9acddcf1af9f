package ledger

import (
	"slices"

	"clubfines/internal/core"
)

// PersonalSummary returns a member's balance and their entries.
func (b *Book) PersonalSummary(name string) (core.PersonalSummary, error) {
	m, err := b.Member(name)
	if err != nil {
		return core.PersonalSummary{}, err
	}
	entries := slices.Collect(b.EntriesFor(name))
	if entries == nil {
		entries = []core.Entry{}
	}
	return core.PersonalSummary{Member: m, Entries: entries}, nil
}

// Leaderboard ranks members by balance, highest first. Equal balances keep
// roster order and share a rank.
func (b *Book) Leaderboard() []core.Standing {
	ranked := slices.Clone(b.members)
	slices.SortStableFunc(ranked, func(x, y core.Member) int {
		switch {
		case x.TotalFine > y.TotalFine:
			return -1
		case x.TotalFine < y.TotalFine:
			return 1
		}
		return 0
	})

	out := make([]core.Standing, len(ranked))
	var top int64
	if len(ranked) > 0 {
		top = ranked[0].TotalFine
	}
	for i, m := range ranked {
		rank := i + 1
		if i > 0 && m.TotalFine == ranked[i-1].TotalFine {
			rank = out[i-1].Rank
		}
		out[i] = core.Standing{Rank: rank, Member: m, Share: share(m.TotalFine, top)}
	}
	return out
}

// FullFeed returns every entry, newest date first. Entries on the same date
// keep insertion order.
func (b *Book) FullFeed() []core.Entry {
	feed := slices.Clone(b.entries)
	slices.SortStableFunc(feed, func(x, y core.Entry) int {
		return y.Date.Compare(x.Date)
	})
	if feed == nil {
		feed = []core.Entry{}
	}
	return feed
}

// share is v as a rounded percentage of top, clamped to 0..100.
func share(v, top int64) int {
	if top <= 0 || v <= 0 {
		return 0
	}
	if v >= top {
		return 100
	}
	return int((v*100 + top/2) / top)
}
