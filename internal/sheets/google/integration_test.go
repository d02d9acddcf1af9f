//go:build integration

package google

import (
	"context"
	"os"
	"testing"

	"clubfines/internal/ledger"
)

// Integration tests require real Google Sheets credentials and a scratch spreadsheet.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_RoundTrip(t *testing.T) {
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx := context.Background()
	c, err := New(ctx, Options{
		SpreadsheetID:   spreadsheetID,
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := c.EnsureTabs(ctx); err != nil {
		t.Fatalf("EnsureTabs: %v", err)
	}

	book := ledger.New()
	if _, err := book.AddMember("integration"); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(ctx, book.Snapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Members) != 1 || snap.Members[0].Name != "integration" {
		t.Fatalf("unexpected members: %+v", snap.Members)
	}
}
