package adapters

import (
	"context"
	"errors"
	"fmt"

	"clubfines/internal/core"
	"clubfines/internal/sheets"
)

// Multi fans a change out to several notifiers. Every notifier is tried;
// their failures are joined.
type Multi []sheets.ChangeNotifier

func (m Multi) Notify(ctx context.Context, c core.Change) error {
	var errs []error
	for i, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if c, ok := n.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
