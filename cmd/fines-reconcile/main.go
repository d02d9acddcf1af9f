// Command fines-reconcile checks that every stored balance equals the sum of
// the member's ledger entries, and with -repair writes the corrected roster.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"clubfines/internal/cli"
	"clubfines/internal/core"
	"clubfines/internal/services"
)

// versioned is implemented by stores that count their saves and track a
// schema version.
type versioned interface {
	SchemaVersion() uint
	Revision(ctx context.Context) (int64, error)
}

func main() {
	repair := flag.Bool("repair", false, "save the reconciled snapshot back to the store")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall time limit")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	os.Exit(run(logger, *repair, *timeout))
}

// run returns the process exit code: 0 when consistent or repaired, 1 on
// error, 2 when discrepancies were found and left in place.
func run(logger *slog.Logger, repair bool, timeout time.Duration) int {
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, _, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		return 1
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	if v, ok := store.Store.(versioned); ok {
		if rev, err := v.Revision(ctx); err == nil {
			fmt.Printf("schema version %d, store revision %d\n", v.SchemaVersion(), rev)
		}
	}

	found, err := services.Audit(ctx, store.Store)
	if err != nil {
		logger.Error("Audit failed", "error", err)
		return 1
	}
	report(found)

	if len(found) == 0 {
		return 0
	}
	if !repair {
		fmt.Println("run with -repair to fix")
		return 2
	}

	// Load repairs and saves back in one step.
	if _, err := services.NewFineService(store.Store, nil).Load(ctx); err != nil {
		logger.Error("Repair failed", "error", err)
		return 1
	}
	fmt.Printf("repaired %d balance(s)\n", len(found))
	return 0
}

func report(found []core.Discrepancy) {
	if len(found) == 0 {
		fmt.Println("ledger is consistent")
		return
	}
	for _, d := range found {
		if d.Restored {
			fmt.Printf("%s: missing from roster, ledger total %s\n", d.Member, core.FormatAmount(d.Computed))
			continue
		}
		fmt.Printf("%s: stored %s, ledger total %s\n",
			d.Member, core.FormatAmount(d.Stored), core.FormatAmount(d.Computed))
	}
}
