package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"clubfines/internal/core"
)

func TestReconcileCleanBookIsNoop(t *testing.T) {
	b := New()
	_, _ = b.AddMember("Alice")
	_, _ = b.RecordFine(fine("Alice", 50))
	before := b.Snapshot()

	require.Empty(t, b.Reconcile())
	require.Equal(t, before, b.Snapshot())
}

func TestReconcileRepairsDivergence(t *testing.T) {
	// Ledger written, roster write lost: Alice still shows the old balance.
	b := FromSnapshot(core.Snapshot{
		Members: []core.Member{{Name: "Alice", TotalFine: 50}, {Name: "Bob", TotalFine: 9}},
		Entries: []core.Entry{
			{ID: 1, Member: "Alice", Amount: 50},
			{ID: 2, Member: "Alice", Amount: 100},
			{ID: 3, Member: "Eve", Amount: 20},
		},
	})
	require.False(t, b.Balanced())

	got := b.Reconcile()
	require.Equal(t, []core.Discrepancy{
		{Member: "Alice", Stored: 50, Computed: 150},
		{Member: "Bob", Stored: 9, Computed: 0},
		{Member: "Eve", Computed: 20, Restored: true},
	}, got)

	eve, err := b.Member("Eve")
	require.NoError(t, err)
	require.Equal(t, int64(20), eve.TotalFine)
	requireBalanced(t, b)
	require.Empty(t, b.Reconcile())
}

func TestFromSnapshotDropsDuplicateMembers(t *testing.T) {
	b := FromSnapshot(core.Snapshot{
		Members: []core.Member{{Name: "Alice", TotalFine: 10}, {Name: "Alice", TotalFine: 99}},
		Entries: []core.Entry{{ID: 1, Member: "Alice", Amount: 10}},
	})
	require.Len(t, b.Members(), 1)
	require.True(t, b.Balanced())
}
