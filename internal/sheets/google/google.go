package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"clubfines/internal/core"
	applog "clubfines/internal/log"
	ports "clubfines/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Tabs names the four worksheets backing a snapshot.
type Tabs struct {
	Members string
	History string
	Events  string
	Rules   string
}

// DefaultTabs returns the worksheet names used when none are configured.
func DefaultTabs() Tabs {
	return Tabs{Members: "Members", History: "History", Events: "Events", Rules: "Rules"}
}

func (t Tabs) withDefaults() Tabs {
	d := DefaultTabs()
	if strings.TrimSpace(t.Members) != "" {
		d.Members = strings.TrimSpace(t.Members)
	}
	if strings.TrimSpace(t.History) != "" {
		d.History = strings.TrimSpace(t.History)
	}
	if strings.TrimSpace(t.Events) != "" {
		d.Events = strings.TrimSpace(t.Events)
	}
	if strings.TrimSpace(t.Rules) != "" {
		d.Rules = strings.TrimSpace(t.Rules)
	}
	return d
}

func (t Tabs) all() []string {
	return []string{t.Members, t.History, t.Events, t.Rules}
}

// Options configures a Client.
type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	Tabs            Tabs
	// ClientOptions are appended after the credential options; tests use
	// them to point the client at a local server.
	ClientOptions []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabs          Tabs
	logger        *applog.Logger
}

// Ensure interface conformance
var _ ports.Store = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	var clientOpts []goption.ClientOption
	if len(opts.ClientOptions) == 0 {
		creds, err := credentials(ctx, opts.CredentialsJSON, opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts,
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		tabs:          opts.Tabs.withDefaults(),
		logger:        applog.NewLogger(applog.ComponentSheets),
	}, nil
}

// credentials resolves service account JSON from inline text, a file, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func credentials(ctx context.Context, inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		applog.NewLogger(applog.ComponentSheets).DebugContext(ctx, "Read credentials file", "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Tabs returns the worksheet names in use.
func (c *Client) Tabs() Tabs {
	return c.tabs
}

// EnsureTabs creates any of the four worksheets missing from the spreadsheet.
func (c *Client) EnsureTabs(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	have := map[string]bool{}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			have[sh.Properties.Title] = true
		}
	}
	var reqs []*gsheet.Request
	for _, name := range c.tabs.all() {
		if have[name] {
			continue
		}
		reqs = append(reqs, &gsheet.Request{AddSheet: &gsheet.AddSheetRequest{
			Properties: &gsheet.SheetProperties{Title: name},
		}})
	}
	if len(reqs) == 0 {
		return nil
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add worksheets: %w", err)
	}
	c.logger.InfoContext(ctx, "Created missing worksheets", applog.FieldCount, len(reqs))
	return nil
}

// Load reads the four worksheets concurrently.
func (c *Client) Load(ctx context.Context) (core.Snapshot, error) {
	if c.svc == nil {
		return core.Snapshot{}, errors.New("sheets service not initialized")
	}

	var (
		snap                       core.Snapshot
		members, history, ev, rule [][]any
	)
	g, gctx := errgroup.WithContext(ctx)
	read := func(tab, cols string, dst *[][]any) {
		g.Go(func() error {
			rng := fmt.Sprintf("%s!%s", tab, cols)
			resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
				ValueRenderOption("UNFORMATTED_VALUE").
				DateTimeRenderOption("FORMATTED_STRING").
				Context(gctx).Do()
			if err != nil {
				return fmt.Errorf("read %s: %w", rng, err)
			}
			*dst = resp.Values
			return nil
		})
	}
	read(c.tabs.Members, "A:B", &members)
	read(c.tabs.History, "A:F", &history)
	read(c.tabs.Events, "A:A", &ev)
	read(c.tabs.Rules, "A:B", &rule)
	if err := g.Wait(); err != nil {
		return core.Snapshot{}, err
	}

	var err error
	if snap.Members, err = parseMembers(members); err != nil {
		return core.Snapshot{}, fmt.Errorf("%s: %w", c.tabs.Members, err)
	}
	if snap.Entries, err = parseHistory(history); err != nil {
		return core.Snapshot{}, fmt.Errorf("%s: %w", c.tabs.History, err)
	}
	snap.EventTypes = parseEvents(ev)
	if snap.Rules, err = parseRules(rule); err != nil {
		return core.Snapshot{}, fmt.Errorf("%s: %w", c.tabs.Rules, err)
	}
	return snap, nil
}

// Save overwrites every worksheet from A1 in one batch update, then clears
// whatever rows the previous contents had beyond the new data.
func (c *Client) Save(ctx context.Context, snap core.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	tables := []struct {
		tab     string
		lastCol string
		values  [][]any
	}{
		{c.tabs.Members, "B", membersValues(snap.Members)},
		{c.tabs.History, "F", historyValues(snap.Entries)},
		{c.tabs.Events, "A", eventsValues(snap.EventTypes)},
		{c.tabs.Rules, "B", rulesValues(snap.Rules)},
	}

	data := make([]*gsheet.ValueRange, 0, len(tables))
	clear := make([]string, 0, len(tables))
	for _, t := range tables {
		data = append(data, &gsheet.ValueRange{
			Range:  fmt.Sprintf("%s!A1:%s%d", t.tab, t.lastCol, len(t.values)),
			Values: t.values,
		})
		clear = append(clear, fmt.Sprintf("%s!A%d:%s", t.tab, len(t.values)+1, t.lastCol))
	}

	_, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write worksheets: %w", err)
	}

	_, err = c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{
		Ranges: clear,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear stale rows: %w", err)
	}

	c.logger.DebugContext(ctx, "Snapshot written to spreadsheet",
		applog.FieldOperation, applog.OpSave,
		"members", len(snap.Members),
		"entries", len(snap.Entries))
	return nil
}
