package memory

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"clubfines/internal/core"
)

func TestMemoryStoreSaveAndLoad(t *testing.T) {
	s := New(
		[]core.EventType{{Name: "A"}, {Name: "B"}, {Name: "A"}},
		[]core.Rule{{Violation: "X", Amount: 1}, {Violation: "X", Amount: 2}},
	)
	snap, err := s.Load(context.Background())
	if err != nil || len(snap.EventTypes) != 2 || len(snap.Rules) != 1 {
		t.Fatalf("unexpected load: %+v err=%v", snap, err)
	}

	snap.Members = []core.Member{{Name: "Alice", TotalFine: 50}}
	snap.Entries = []core.Entry{{ID: 1, Date: core.NewDate(2024, 1, 1), Member: "Alice", Amount: 50}}
	if err := s.Save(context.Background(), snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Mutating the caller's copy must not leak into the store.
	snap.Members[0].TotalFine = 999

	got, _ := s.Load(context.Background())
	if got.Members[0].TotalFine != 50 {
		t.Fatalf("store aliased caller slice: %+v", got.Members)
	}
	if len(got.Entries) != 1 || got.Entries[0].ID != 1 {
		t.Fatalf("unexpected entries: %+v", got.Entries)
	}
	if s.Saves() != 1 {
		t.Fatalf("saves = %d", s.Saves())
	}
}

func TestSaveHonoursCancelledContext(t *testing.T) {
	s := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, core.Snapshot{Members: []core.Member{{Name: "A"}}}); err == nil {
		t.Fatal("expected error on cancelled context")
	}
	got, _ := s.Load(context.Background())
	if len(got.Members) != 0 {
		t.Fatalf("cancelled save changed state: %+v", got)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	// No files -> defaults
	s := NewFromFiles(dir)
	snap, _ := s.Load(context.Background())
	if !reflect.DeepEqual(snap.EventTypes, core.DefaultEventTypes()) || !reflect.DeepEqual(snap.Rules, core.DefaultRules()) {
		t.Fatalf("expected defaults when files missing: %+v", snap)
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_events.txt", "# header\nA\nB\nA\n\n")
	mustWrite("seed_rules.txt", "# header\nlate=50\nlate=70\nbogus\nabsent=x\nabsent=100\n")

	s = NewFromFiles(dir)
	snap, _ = s.Load(context.Background())
	if len(snap.EventTypes) != 2 || snap.EventTypes[0].Name != "A" || snap.EventTypes[1].Name != "B" {
		t.Fatalf("unexpected events: %v", snap.EventTypes)
	}
	want := []core.Rule{{Violation: "late", Amount: 50}, {Violation: "absent", Amount: 100}}
	if !reflect.DeepEqual(snap.Rules, want) {
		t.Fatalf("unexpected rules: %v", snap.Rules)
	}
}
