package ledger

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"clubfines/internal/core"
)

func fine(member string, amount int64) core.FineInput {
	return core.FineInput{
		Date:      core.NewDate(2024, 1, 1),
		Member:    member,
		EventType: "例會",
		Violation: "遲到",
		Amount:    amount,
	}
}

func requireBalanced(t *testing.T, b *Book) {
	t.Helper()
	sums := map[string]int64{}
	for e := range b.AllEntries() {
		sums[e.Member] += e.Amount
	}
	for _, m := range b.Members() {
		require.Equalf(t, sums[m.Name], m.TotalFine, "balance of %q", m.Name)
	}
}

func TestAddMemberStartsAtZero(t *testing.T) {
	b := New()
	m, err := b.AddMember("Alice")
	require.NoError(t, err)
	require.Equal(t, core.Member{Name: "Alice"}, m)

	got, err := b.Member("Alice")
	require.NoError(t, err)
	require.Zero(t, got.TotalFine)
}

func TestAddMemberRejectsDuplicatesAndBlanks(t *testing.T) {
	b := New()
	_, err := b.AddMember("Alice")
	require.NoError(t, err)

	_, err = b.AddMember("Alice")
	require.ErrorIs(t, err, core.ErrDuplicateMember)

	// Padded names are not silently trimmed into an existing one.
	_, err = b.AddMember("  Alice ")
	require.ErrorIs(t, err, core.ErrValidation)
	require.ErrorIs(t, err, core.ErrPaddedName)
	_, err = b.AddMember("Bob ")
	require.ErrorIs(t, err, core.ErrValidation)

	// Case-sensitive match: a different spelling is a different member.
	_, err = b.AddMember("alice")
	require.NoError(t, err)

	_, err = b.AddMember("   ")
	require.ErrorIs(t, err, core.ErrValidation)
	require.Len(t, b.Members(), 2)
}

func TestMemberNotFound(t *testing.T) {
	_, err := New().Member("Bob")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecordFineUpdatesBalance(t *testing.T) {
	b := New()
	_, _ = b.AddMember("Alice")

	e, err := b.RecordFine(fine("Alice", 50))
	require.NoError(t, err)
	require.Equal(t, int64(1), e.ID)

	m, _ := b.Member("Alice")
	require.Equal(t, int64(50), m.TotalFine)
	require.Len(t, slices.Collect(b.EntriesFor("Alice")), 1)
}

func TestRecordThenDeleteRestoresBalance(t *testing.T) {
	b := New()
	_, _ = b.AddMember("Alice")
	first, _ := b.RecordFine(fine("Alice", 50))
	_, err := b.RecordFine(fine("Alice", 100))
	require.NoError(t, err)

	removed, err := b.DeleteEntry(first.ID)
	require.NoError(t, err)
	require.Equal(t, first, removed)

	m, _ := b.Member("Alice")
	require.Equal(t, int64(100), m.TotalFine)
	left := slices.Collect(b.EntriesFor("Alice"))
	require.Len(t, left, 1)
	require.Equal(t, int64(100), left[0].Amount)
}

func TestRecordFineUnknownMemberLeavesBookUnchanged(t *testing.T) {
	b := New()
	_, _ = b.AddMember("Alice")
	before := b.Snapshot()
	next := b.NextID()

	_, err := b.RecordFine(fine("Bob", 50))
	require.ErrorIs(t, err, core.ErrNotFound)
	require.Equal(t, before, b.Snapshot())
	require.Equal(t, next, b.NextID())
}

func TestDeleteUnknownEntry(t *testing.T) {
	b := New()
	_, _ = b.AddMember("Alice")
	_, _ = b.RecordFine(fine("Alice", 50))
	before := b.Snapshot()

	_, err := b.DeleteEntry(42)
	require.ErrorIs(t, err, core.ErrNotFound)
	require.Equal(t, before, b.Snapshot())
}

func TestIDsStayStableAcrossDeletes(t *testing.T) {
	b := New()
	_, _ = b.AddMember("Alice")
	e1, _ := b.RecordFine(fine("Alice", 1))
	e2, _ := b.RecordFine(fine("Alice", 2))
	e3, _ := b.RecordFine(fine("Alice", 3))

	_, err := b.DeleteEntry(e2.ID)
	require.NoError(t, err)
	e4, _ := b.RecordFine(fine("Alice", 4))

	require.Greater(t, e4.ID, e3.ID)
	got, err := b.Entry(e3.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), got.Amount)
	got, err = b.Entry(e1.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Amount)
}

func TestNegativeAndZeroAmounts(t *testing.T) {
	b := New()
	_, _ = b.AddMember("Alice")
	_, _ = b.RecordFine(fine("Alice", 0))
	neg, _ := b.RecordFine(fine("Alice", -30))
	m, _ := b.Member("Alice")
	require.Equal(t, int64(-30), m.TotalFine)

	_, err := b.DeleteEntry(neg.ID)
	require.NoError(t, err)
	m, _ = b.Member("Alice")
	require.Zero(t, m.TotalFine)
}

func TestEntriesForIsRestartableAndOrdered(t *testing.T) {
	b := New()
	_, _ = b.AddMember("Alice")
	_, _ = b.AddMember("Bob")
	in := fine("Alice", 10)
	in.Date = core.NewDate(2024, 5, 1)
	_, _ = b.RecordFine(in)
	_, _ = b.RecordFine(fine("Bob", 20))
	in.Date = core.NewDate(2023, 1, 1)
	in.Amount = 30
	_, _ = b.RecordFine(in)

	seq := b.EntriesFor("Alice")
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.Equal(t, first, second)
	require.Len(t, first, 2)
	// Insertion order, not date order.
	require.Equal(t, int64(10), first[0].Amount)
	require.Equal(t, int64(30), first[1].Amount)

	for e := range b.AllEntries() {
		require.NotZero(t, e.ID)
		break
	}
	require.Len(t, slices.Collect(b.AllEntries()), 3)
	require.Empty(t, slices.Collect(b.EntriesFor("Nobody")))
}

func TestCloneIsIndependent(t *testing.T) {
	b := New()
	_, _ = b.AddMember("Alice")
	c := b.Clone()
	_, err := c.RecordFine(fine("Alice", 50))
	require.NoError(t, err)
	_, err = c.AddMember("Bob")
	require.NoError(t, err)

	m, _ := b.Member("Alice")
	require.Zero(t, m.TotalFine)
	require.Equal(t, 0, b.Len())
	_, err = b.Member("Bob")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.Equal(t, int64(1), b.NextID())
}

func TestFromSnapshotAssignsMissingIDs(t *testing.T) {
	b := FromSnapshot(core.Snapshot{
		Members: []core.Member{{Name: "Alice", TotalFine: 6}},
		Entries: []core.Entry{
			{ID: 7, Member: "Alice", Amount: 1},
			{ID: 0, Member: "Alice", Amount: 2},
			{ID: 7, Member: "Alice", Amount: 3},
		},
	})
	var ids []int64
	for e := range b.AllEntries() {
		ids = append(ids, e.ID)
	}
	require.Equal(t, []int64{7, 8, 9}, ids)
	require.Equal(t, int64(10), b.NextID())
}

func TestInvariantHoldsForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"Alice", "Bob", "Carol", "Dave"}
	b := New()
	var live []int64

	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(10); {
		case op == 0:
			_, _ = b.AddMember(names[rng.Intn(len(names))])
		case op < 7:
			e, err := b.RecordFine(fine(names[rng.Intn(len(names))], rng.Int63n(301)-100))
			if err == nil {
				live = append(live, e.ID)
			}
		default:
			if len(live) == 0 {
				continue
			}
			i := rng.Intn(len(live))
			_, err := b.DeleteEntry(live[i])
			require.NoError(t, err)
			live = slices.Delete(live, i, i+1)
		}
		requireBalanced(t, b)
	}
	require.True(t, b.Balanced())
}
