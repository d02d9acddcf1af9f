package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"clubfines/internal/core"
	"clubfines/internal/ledger"
	applog "clubfines/internal/log"
	"clubfines/internal/sheets"
)

// ErrNotLoaded is returned by mutations issued before Load succeeded.
var ErrNotLoaded = errors.New("ledger not loaded")

const notifyTimeout = 5 * time.Second

// FineService owns the live ledger. Every mutation is applied to a copy,
// persisted, and only then made visible; failures leave the live book as it was.
type FineService struct {
	mu     sync.Mutex
	book   *ledger.Book
	loaded bool

	store    sheets.Store
	notifier sheets.ChangeNotifier
	hooks    []func(core.Change)

	now    func() time.Time
	logger *applog.Logger
	events *applog.StructuredLogger
}

// NewFineService returns a service over store. notifier may be nil.
func NewFineService(store sheets.Store, notifier sheets.ChangeNotifier) *FineService {
	logger := applog.NewLogger(applog.ComponentLedger)
	return &FineService{
		book:     ledger.New(),
		store:    store,
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
		events:   applog.NewStructuredLogger(logger),
	}
}

// OnChange registers fn to run after every committed mutation.
// Hooks must not call back into the service's mutating methods.
func (s *FineService) OnChange(fn func(core.Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Load reads the store, repairs balances that disagree with the ledger and
// writes the repaired state back. It returns what was repaired.
func (s *FineService) Load(ctx context.Context) ([]core.Discrepancy, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	fresh := len(snap.Members) == 0 && len(snap.Entries) == 0 &&
		len(snap.EventTypes) == 0 && len(snap.Rules) == 0
	var book *ledger.Book
	if fresh {
		book = ledger.New()
	} else {
		book = ledger.FromSnapshot(snap)
	}
	fixes := book.Reconcile()
	for _, d := range fixes {
		s.logger.WarnContext(ctx, "Balance disagreed with ledger",
			applog.FieldOperation, applog.OpReconcile,
			applog.FieldMember, d.Member,
			"stored", d.Stored,
			"computed", d.Computed,
			"restored", d.Restored)
	}

	if !sameSnapshot(snap, book.Snapshot()) {
		if err := s.store.Save(context.WithoutCancel(ctx), book.Snapshot()); err != nil {
			return nil, fmt.Errorf("save repaired snapshot: %w", err)
		}
		s.logger.InfoContext(ctx, "Stored state repaired",
			applog.FieldOperation, applog.OpReconcile,
			"discrepancies", len(fixes),
			"seeded", fresh)
	}

	s.mu.Lock()
	s.book = book
	s.loaded = true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Ledger loaded",
		applog.FieldOperation, applog.OpLoad,
		"members", len(book.Members()),
		"entries", book.Len())

	if len(fixes) > 0 {
		s.committed(ctx, core.Change{Op: core.OpBookReconciled})
	}
	return fixes, nil
}

// Ready reports whether Load has succeeded.
func (s *FineService) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *FineService) AddMember(ctx context.Context, name string) (core.Member, error) {
	var m core.Member
	err := s.mutate(ctx, func(b *ledger.Book) error {
		var err error
		m, err = b.AddMember(name)
		return err
	})
	if err != nil {
		return core.Member{}, err
	}
	s.logger.InfoContext(ctx, "Member added", applog.FieldMember, m.Name)
	s.committed(ctx, core.Change{Op: core.OpMemberAdded, Member: m.Name})
	return m, nil
}

// RecordFine appends an entry and returns it together with the member's new balance.
func (s *FineService) RecordFine(ctx context.Context, in core.FineInput) (core.Entry, core.Member, error) {
	if err := in.Validate(); err != nil {
		return core.Entry{}, core.Member{}, fmt.Errorf("%w: %w", core.ErrValidation, err)
	}

	var (
		e core.Entry
		m core.Member
	)
	err := s.mutate(ctx, func(b *ledger.Book) error {
		var err error
		if e, err = b.RecordFine(in); err != nil {
			return err
		}
		m, err = b.Member(e.Member)
		return err
	})
	if err != nil {
		return core.Entry{}, core.Member{}, err
	}
	s.events.LogFineRecorded(ctx, e.ID, e.Member, e.EventType, e.Violation, e.Amount, m.TotalFine)
	s.committed(ctx, core.Change{
		Op: core.OpFineRecorded, EntryID: e.ID, Member: e.Member, Amount: e.Amount, Balance: m.TotalFine,
	})
	return e, m, nil
}

// DeleteEntry removes an entry, refunds its amount and returns the removed
// entry with the member's new balance.
func (s *FineService) DeleteEntry(ctx context.Context, id int64) (core.Entry, core.Member, error) {
	var (
		e core.Entry
		m core.Member
	)
	err := s.mutate(ctx, func(b *ledger.Book) error {
		var err error
		if e, err = b.DeleteEntry(id); err != nil {
			return err
		}
		m, err = b.Member(e.Member)
		return err
	})
	if err != nil {
		return core.Entry{}, core.Member{}, err
	}
	s.logger.InfoContext(ctx, "Entry deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldEntryID, e.ID,
		applog.FieldMember, e.Member,
		applog.FieldAmount, e.Amount,
		applog.FieldBalance, m.TotalFine)
	s.committed(ctx, core.Change{
		Op: core.OpEntryDeleted, EntryID: e.ID, Member: e.Member, Amount: e.Amount, Balance: m.TotalFine,
	})
	return e, m, nil
}

func (s *FineService) ReplaceEventTypes(ctx context.Context, rows []core.EventType) error {
	if err := s.mutate(ctx, func(b *ledger.Book) error { return b.ReplaceEventTypes(rows) }); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Event catalog replaced", applog.FieldCount, len(rows))
	s.committed(ctx, core.Change{Op: core.OpEventsReplaced})
	return nil
}

func (s *FineService) ReplaceRules(ctx context.Context, rows []core.Rule) error {
	if err := s.mutate(ctx, func(b *ledger.Book) error { return b.ReplaceRules(rows) }); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Rule catalog replaced", applog.FieldCount, len(rows))
	s.committed(ctx, core.Change{Op: core.OpRulesReplaced})
	return nil
}

// mutate applies fn to a copy of the live book and swaps it in once the
// copy has been saved. Cancellation is honoured only until the save starts.
func (s *FineService) mutate(ctx context.Context, fn func(*ledger.Book) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	next := s.book.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.store.Save(context.WithoutCancel(ctx), next.Snapshot()); err != nil {
		s.events.LogError(ctx, "Failed to persist ledger", err, applog.OpSave, nil)
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.book = next
	return nil
}

// committed runs hooks and publishes c. Publishing failures are logged only.
func (s *FineService) committed(ctx context.Context, c core.Change) {
	c.At = s.now().UTC()

	s.mu.Lock()
	hooks := slices.Clone(s.hooks)
	s.mu.Unlock()
	for _, h := range hooks {
		h(c)
	}

	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(nctx, c); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change",
			applog.FieldChangeOp, string(c.Op),
			applog.FieldError, err)
	}
}

func (s *FineService) current() *ledger.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book
}

// Read accessors. The live book is replaced, never mutated, so readers can
// use it after releasing the lock.

func (s *FineService) Members() []core.Member { return s.current().Members() }

func (s *FineService) Member(name string) (core.Member, error) {
	return s.current().Member(name)
}

func (s *FineService) Entry(id int64) (core.Entry, error) { return s.current().Entry(id) }

func (s *FineService) PersonalSummary(name string) (core.PersonalSummary, error) {
	return s.current().PersonalSummary(name)
}

func (s *FineService) Leaderboard() []core.Standing { return s.current().Leaderboard() }

func (s *FineService) FullFeed() []core.Entry { return s.current().FullFeed() }

func (s *FineService) EventTypes() []core.EventType { return s.current().EventTypes() }

func (s *FineService) Rules() []core.Rule { return s.current().Rules() }

func (s *FineService) DefaultAmountFor(violation string) int64 {
	return s.current().DefaultAmountFor(violation)
}

// NextEntryID reports the id the next recorded fine will get.
func (s *FineService) NextEntryID() int64 { return s.current().NextID() }

// Snapshot returns a copy of the live state.
func (s *FineService) Snapshot() core.Snapshot { return s.current().Snapshot() }

// Close closes the store and notifier when they hold resources.
func (s *FineService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.notifier.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("notifier: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Audit loads store and reports discrepancies without writing anything.
func Audit(ctx context.Context, store sheets.SnapshotLoader) ([]core.Discrepancy, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return ledger.FromSnapshot(snap).Reconcile(), nil
}

func sameSnapshot(a, b core.Snapshot) bool {
	return slices.Equal(a.Members, b.Members) &&
		slices.Equal(a.Entries, b.Entries) &&
		slices.Equal(a.EventTypes, b.EventTypes) &&
		slices.Equal(a.Rules, b.Rules)
}
