package worker

import (
	"context"
	"fmt"
	"time"

	"clubfines/internal/amqp"
	applog "clubfines/internal/log"
	"clubfines/internal/services"
)

// Mirrorer is the part of services.MirrorProcessor the worker drives.
type Mirrorer interface {
	MirrorNow(ctx context.Context) error
	Trigger()
	Stats() services.MirrorStats
}

// TabEnsurer is implemented by mirror targets that need their layout
// created before the first write.
type TabEnsurer interface {
	EnsureTabs(ctx context.Context) error
}

// MirrorWorker reacts to ledger change messages by mirroring the primary
// store into the secondary one.
type MirrorWorker struct {
	mirror    Mirrorer
	target    TabEnsurer
	immediate bool
	logger    *applog.Logger
}

// NewMirrorWorker returns a worker over mirror. When immediate is false
// messages only trigger the processor's loop, which coalesces bursts.
// target may be nil.
func NewMirrorWorker(mirror Mirrorer, target TabEnsurer, immediate bool) *MirrorWorker {
	return &MirrorWorker{
		mirror:    mirror,
		target:    target,
		immediate: immediate,
		logger:    applog.NewLogger(applog.ComponentWorker),
	}
}

// HandleChangeMessage processes a single ledger change message from AMQP.
// Messages published before the last successful mirror are already covered
// and are acknowledged without work.
func (w *MirrorWorker) HandleChangeMessage(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	w.logger.InfoContext(ctx, "Processing change message",
		"message_id", msg.MessageID,
		applog.FieldChangeOp, msg.Op,
		applog.FieldEntryID, msg.EntryID,
		applog.FieldMember, msg.Member)

	if last := w.mirror.Stats().LastMirror; !last.IsZero() && msg.Timestamp.Before(last) {
		w.logger.DebugContext(ctx, "Change already mirrored",
			"message_id", msg.MessageID,
			"last_mirror", last.Format(time.RFC3339))
		return nil
	}

	if !w.immediate {
		w.mirror.Trigger()
		return nil
	}
	if err := w.mirror.MirrorNow(ctx); err != nil {
		return fmt.Errorf("mirror after %s: %w", msg.Op, err)
	}
	return nil
}

// StartupMirror prepares the target and copies the current state once, to
// recover from messages missed while the worker was down.
func (w *MirrorWorker) StartupMirror(ctx context.Context) error {
	if w.target != nil {
		if err := w.target.EnsureTabs(ctx); err != nil {
			return fmt.Errorf("ensure mirror tabs: %w", err)
		}
	}
	if err := w.mirror.MirrorNow(ctx); err != nil {
		return fmt.Errorf("startup mirror: %w", err)
	}
	stats := w.mirror.Stats()
	w.logger.InfoContext(ctx, "Startup mirror completed",
		"mirrored", stats.Mirrored,
		"skipped", stats.Skipped)
	return nil
}
