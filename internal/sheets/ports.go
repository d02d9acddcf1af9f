package sheets

import (
	"context"

	"clubfines/internal/core"
)

// Ports for outbound adapters.
type (
	// SnapshotLoader reads all four persisted collections at once.
	SnapshotLoader interface {
		Load(ctx context.Context) (core.Snapshot, error)
	}

	// SnapshotSaver rewrites all four collections. Implementations must
	// leave the previous contents readable if Save fails part way.
	SnapshotSaver interface {
		Save(ctx context.Context, s core.Snapshot) error
	}

	Store interface {
		SnapshotLoader
		SnapshotSaver
	}

	// ChangeNotifier publishes committed ledger changes to an outside system.
	ChangeNotifier interface {
		Notify(ctx context.Context, c core.Change) error
	}
)
