// Package csvfile stores the ledger as four CSV files in a directory.
//
// The layout is compatible with files written by earlier versions of the
// club tool: headers may be the original Chinese titles or English names,
// and a history file without an id column gets positional ids starting at 1.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"clubfines/internal/core"
	applog "clubfines/internal/log"
)

const (
	MembersFile = "club_members.csv"
	HistoryFile = "club_history.csv"
	EventsFile  = "config_events.csv"
	RulesFile   = "config_rules.csv"
)

// Column headers written by Save.
var (
	membersHeader = []string{"姓名", "總罰金"}
	historyHeader = []string{"id", "日期", "姓名", "活動", "違規事項", "金額"}
	eventsHeader  = []string{"活動名稱"}
	rulesHeader   = []string{"違規事項", "金額"}
)

// Accepted header aliases per logical column.
var aliases = map[string][]string{
	"id":        {"id", "編號"},
	"name":      {"姓名", "name", "member"},
	"total":     {"總罰金", "total_fine", "total"},
	"date":      {"日期", "date"},
	"event":     {"活動", "event", "event_type"},
	"violation": {"違規事項", "violation"},
	"amount":    {"金額", "amount"},
	"eventName": {"活動名稱", "name", "event"},
}

// Store reads and writes the four files under Dir.
type Store struct {
	Dir string

	mu     sync.Mutex
	logger *applog.Logger
}

// New returns a store rooted at dir, creating the directory and seeding any
// missing file with its header (and the default catalogs).
func New(dir string) (*Store, error) {
	s := &Store{Dir: dir, logger: applog.NewLogger(applog.ComponentStorage)}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	seeds := []struct {
		name string
		rows [][]string
	}{
		{MembersFile, [][]string{membersHeader}},
		{HistoryFile, [][]string{historyHeader}},
		{EventsFile, append([][]string{eventsHeader}, eventRows(core.DefaultEventTypes())...)},
		{RulesFile, append([][]string{rulesHeader}, ruleRows(core.DefaultRules())...)},
	}
	for _, seed := range seeds {
		path := filepath.Join(dir, seed.name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", seed.name, err)
		}
		if err := writeFile(path, seed.rows); err != nil {
			return nil, err
		}
		s.logger.Info("Seeded data file", applog.FieldFile, seed.name)
	}
	return s, nil
}

// Load reads all four files.
func (s *Store) Load(ctx context.Context) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap core.Snapshot
	var err error
	if snap.Members, err = s.readMembers(); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Entries, err = s.readHistory(); err != nil {
		return core.Snapshot{}, err
	}
	if snap.EventTypes, err = s.readEvents(); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Rules, err = s.readRules(); err != nil {
		return core.Snapshot{}, err
	}
	return snap, nil
}

// Save rewrites every file. All four files are staged and synced before any
// is replaced; if a replacement fails, files already replaced get their
// previous contents back so Load sees the state from before the call.
func (s *Store) Save(ctx context.Context, snap core.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	history := [][]string{historyHeader}
	for _, e := range snap.Entries {
		history = append(history, []string{
			strconv.FormatInt(e.ID, 10),
			e.Date.String(),
			e.Member,
			e.EventType,
			e.Violation,
			strconv.FormatInt(e.Amount, 10),
		})
	}
	members := [][]string{membersHeader}
	for _, m := range snap.Members {
		members = append(members, []string{m.Name, strconv.FormatInt(m.TotalFine, 10)})
	}

	writes := []struct {
		name string
		rows [][]string
	}{
		{HistoryFile, history},
		{MembersFile, members},
		{EventsFile, append([][]string{eventsHeader}, eventRows(snap.EventTypes)...)},
		{RulesFile, append([][]string{rulesHeader}, ruleRows(snap.Rules)...)},
	}

	files := make([]stagedFile, 0, len(writes))
	defer func() {
		for _, f := range files {
			if !f.replaced {
				os.Remove(f.tmp)
			}
		}
	}()
	for _, w := range writes {
		path := filepath.Join(s.Dir, w.name)
		prev, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", w.name, err)
		}
		existed := err == nil
		tmp, err := stageRows(path, w.rows)
		if err != nil {
			return err
		}
		files = append(files, stagedFile{
			name:    w.name,
			path:    path,
			tmp:     tmp,
			prev:    prev,
			existed: existed,
		})
	}

	for i := range files {
		if err := rename(files[i].tmp, files[i].path); err != nil {
			err = fmt.Errorf("replace %s: %w", files[i].name, err)
			return errors.Join(err, s.restore(files[:i]))
		}
		files[i].replaced = true
	}
	return nil
}

type stagedFile struct {
	name     string
	path     string
	tmp      string
	prev     []byte
	existed  bool
	replaced bool
}

// restore puts back the previous contents of files already replaced.
func (s *Store) restore(files []stagedFile) error {
	var errs []error
	for i := len(files) - 1; i >= 0; i-- {
		f := files[i]
		var err error
		if f.existed {
			err = writeBytes(f.path, f.prev)
		} else {
			err = os.Remove(f.path)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", f.name, err))
			continue
		}
		s.logger.Warn("Restored data file after failed save", applog.FieldFile, f.name)
	}
	return errors.Join(errs...)
}

func (s *Store) readMembers() ([]core.Member, error) {
	t, err := readTable(filepath.Join(s.Dir, MembersFile))
	if err != nil {
		return nil, err
	}
	name, total := t.col("name"), t.col("total")
	if name < 0 {
		return nil, fmt.Errorf("%s: missing name column", MembersFile)
	}
	out := make([]core.Member, 0, len(t.rows))
	for i, row := range t.rows {
		m := core.Member{Name: core.NormalizeName(cell(row, name))}
		if m.Name == "" {
			continue
		}
		if v := cell(row, total); v != "" {
			if m.TotalFine, err = core.ParseAmount(v); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", MembersFile, i+2, err)
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) readHistory() ([]core.Entry, error) {
	t, err := readTable(filepath.Join(s.Dir, HistoryFile))
	if err != nil {
		return nil, err
	}
	id, date, name := t.col("id"), t.col("date"), t.col("name")
	event, violation, amount := t.col("event"), t.col("violation"), t.col("amount")
	if name < 0 || amount < 0 {
		return nil, fmt.Errorf("%s: missing name or amount column", HistoryFile)
	}
	out := make([]core.Entry, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		e := core.Entry{
			ID:        int64(i + 1),
			Member:    core.NormalizeName(cell(row, name)),
			EventType: strings.TrimSpace(cell(row, event)),
			Violation: strings.TrimSpace(cell(row, violation)),
		}
		if e.Member == "" {
			continue
		}
		if id >= 0 {
			// Unparseable ids become 0 and are reassigned by the ledger.
			e.ID, _ = strconv.ParseInt(strings.TrimSpace(cell(row, id)), 10, 64)
		}
		if v := strings.TrimSpace(cell(row, date)); v != "" {
			if e.Date, err = core.ParseDate(v); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", HistoryFile, line, err)
			}
		}
		if e.Amount, err = core.ParseAmount(cell(row, amount)); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", HistoryFile, line, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) readEvents() ([]core.EventType, error) {
	t, err := readTable(filepath.Join(s.Dir, EventsFile))
	if err != nil {
		return nil, err
	}
	c := t.col("eventName")
	if c < 0 {
		c = 0
	}
	out := make([]core.EventType, 0, len(t.rows))
	for _, row := range t.rows {
		if v := strings.TrimSpace(cell(row, c)); v != "" {
			out = append(out, core.EventType{Name: v})
		}
	}
	return out, nil
}

func (s *Store) readRules() ([]core.Rule, error) {
	t, err := readTable(filepath.Join(s.Dir, RulesFile))
	if err != nil {
		return nil, err
	}
	violation, amount := t.col("violation"), t.col("amount")
	if violation < 0 || amount < 0 {
		return nil, fmt.Errorf("%s: missing violation or amount column", RulesFile)
	}
	out := make([]core.Rule, 0, len(t.rows))
	for i, row := range t.rows {
		r := core.Rule{Violation: strings.TrimSpace(cell(row, violation))}
		if r.Violation == "" {
			continue
		}
		if r.Amount, err = core.ParseAmount(cell(row, amount)); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", RulesFile, i+2, err)
		}
		out = append(out, r)
	}
	return out, nil
}

type table struct {
	header map[string]int
	rows   [][]string
}

func (t table) col(key string) int {
	for _, alias := range aliases[key] {
		if i, ok := t.header[alias]; ok {
			return i
		}
	}
	return -1
}

func readTable(path string) (table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return table{header: map[string]int{}}, nil
		}
		return table{}, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return table{header: map[string]int{}}, nil
	}
	if err != nil {
		return table{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	t := table{header: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := t.header[h]; !dup {
			t.header[h] = i
		}
	}
	t.rows, err = r.ReadAll()
	if err != nil {
		return table{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// rename is replaced in tests to simulate a failing replacement.
var rename = os.Rename

// writeFile replaces path atomically via a temp file in the same directory.
func writeFile(path string, rows [][]string) error {
	tmp, err := stageRows(path, rows)
	if err != nil {
		return err
	}
	return commit(tmp, path)
}

func writeBytes(path string, data []byte) error {
	tmp, err := stage(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return err
	}
	return commit(tmp, path)
}

func commit(tmp, path string) error {
	if err := rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func stageRows(path string, rows [][]string) (string, error) {
	return stage(path, func(w io.Writer) error {
		return csv.NewWriter(w).WriteAll(rows)
	})
}

// stage writes a synced temp file next to path and returns its name.
func stage(path string, write func(io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	fail := func(format string, err error) (string, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf(format, filepath.Base(path), err)
	}
	if err := write(tmp); err != nil {
		return fail("write %s: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync %s: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return tmp.Name(), nil
}

func eventRows(events []core.EventType) [][]string {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{e.Name})
	}
	return rows
}

func ruleRows(rules []core.Rule) [][]string {
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, []string{r.Violation, strconv.FormatInt(r.Amount, 10)})
	}
	return rows
}
