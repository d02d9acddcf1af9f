package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"clubfines/internal/core"
)

// Store keeps a snapshot in process memory. Nothing survives a restart.
type Store struct {
	mu    sync.Mutex
	snap  core.Snapshot
	saves int
}

func New(events []core.EventType, rules []core.Rule) *Store {
	return &Store{snap: core.Snapshot{
		EventTypes: dedupeEvents(events),
		Rules:      dedupeRules(rules),
	}}
}

// NewFromFiles seeds the catalogs from seed_events.txt and seed_rules.txt
// in base. Rule lines have the form "violation=amount". Missing or empty
// files fall back to the built-in catalogs.
func NewFromFiles(base string) *Store {
	var events []core.EventType
	for _, line := range readLines(filepath.Join(base, "seed_events.txt")) {
		events = append(events, core.EventType{Name: line})
	}
	var rules []core.Rule
	for _, line := range readLines(filepath.Join(base, "seed_rules.txt")) {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		amount, err := core.ParseAmount(v)
		if err != nil {
			continue
		}
		rules = append(rules, core.Rule{Violation: k, Amount: amount})
	}
	if len(events) == 0 {
		events = core.DefaultEventTypes()
	}
	if len(rules) == 0 {
		rules = core.DefaultRules()
	}
	return New(events, rules)
}

// Load returns a deep copy of the stored snapshot.
func (s *Store) Load(_ context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone(), nil
}

// Save replaces the stored snapshot with a copy of snap.
func (s *Store) Save(ctx context.Context, snap core.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap.Clone()
	s.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupeEvents(in []core.EventType) []core.EventType {
	seen := map[string]struct{}{}
	out := make([]core.EventType, 0, len(in))
	for _, v := range in {
		v.Name = strings.TrimSpace(v.Name)
		if v.Name == "" {
			continue
		}
		if _, ok := seen[v.Name]; ok {
			continue
		}
		seen[v.Name] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupeRules(in []core.Rule) []core.Rule {
	seen := map[string]struct{}{}
	out := make([]core.Rule, 0, len(in))
	for _, v := range in {
		v.Violation = strings.TrimSpace(v.Violation)
		if v.Violation == "" {
			continue
		}
		if _, ok := seen[v.Violation]; ok {
			continue
		}
		seen[v.Violation] = struct{}{}
		out = append(out, v)
	}
	return out
}
