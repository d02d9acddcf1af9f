package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clubfines/internal/core"
	applog "clubfines/internal/log"
	"clubfines/internal/sheets"
)

// MirrorProcessorConfig holds configuration for the mirror processor
type MirrorProcessorConfig struct {
	// Interval is how often the source is mirrored even without triggers (default: 5m)
	Interval time.Duration

	// MaxRetries is how many consecutive failures are tolerated before a
	// mirror attempt is reported as failed (default: 3)
	MaxRetries int

	// RetryDelay is the pause between attempts within one mirror (default: 2s)
	RetryDelay time.Duration
}

// DefaultMirrorProcessorConfig returns sensible defaults
func DefaultMirrorProcessorConfig() MirrorProcessorConfig {
	return MirrorProcessorConfig{
		Interval:   5 * time.Minute,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// MirrorStats summarises processor activity.
type MirrorStats struct {
	Mirrored   int64
	Skipped    int64
	Failed     int64
	LastMirror time.Time
	LastError  string
}

// MirrorProcessor copies the full snapshot of a source store into a target
// store. Copies are whole rewrites, so repeating one is harmless; a copy is
// skipped when the source has not changed since the last successful one.
type MirrorProcessor struct {
	source sheets.SnapshotLoader
	target sheets.SnapshotSaver
	config MirrorProcessorConfig
	logger *applog.Logger
	now    func() time.Time

	// mirrorMu serializes MirrorNow.
	mirrorMu sync.Mutex
	last     *core.Snapshot

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	trigger chan struct{}
	stats   MirrorStats
}

// NewMirrorProcessor creates a new mirror processor
func NewMirrorProcessor(source sheets.SnapshotLoader, target sheets.SnapshotSaver, config MirrorProcessorConfig) *MirrorProcessor {
	def := DefaultMirrorProcessorConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = def.RetryDelay
	}
	return &MirrorProcessor{
		source:  source,
		target:  target,
		config:  config,
		logger:  applog.NewLogger(applog.ComponentWorker),
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
}

// Start begins the mirror loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Mirror processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Mirror processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Trigger asks the loop to mirror soon. Triggers arriving while one is
// pending are coalesced.
func (p *MirrorProcessor) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Stats returns a copy of the current counters.
func (p *MirrorProcessor) Stats() MirrorStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *MirrorProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.mirrorLogged(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mirrorLogged(ctx)
		case <-p.trigger:
			p.mirrorLogged(ctx)
		}
	}
}

func (p *MirrorProcessor) mirrorLogged(ctx context.Context) {
	if err := p.MirrorNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.ErrorContext(ctx, "Mirror failed", applog.FieldOperation, applog.OpSync, applog.FieldError, err)
	}
}

// MirrorNow copies the source into the target, retrying transient failures.
func (p *MirrorProcessor) MirrorNow(ctx context.Context) error {
	p.mirrorMu.Lock()
	defer p.mirrorMu.Unlock()

	var err error
	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		if err = p.mirrorOnce(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.WarnContext(ctx, "Mirror attempt failed",
			"attempt", attempt,
			applog.FieldError, err)
		if attempt < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.RetryDelay):
			}
		}
	}

	p.mu.Lock()
	p.stats.Failed++
	p.stats.LastError = err.Error()
	p.mu.Unlock()
	return err
}

// mirrorOnce stamps LastMirror with the time the source was read, so any
// change committed after that is still newer than LastMirror.
func (p *MirrorProcessor) mirrorOnce(ctx context.Context) error {
	readAt := p.now()
	snap, err := p.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}
	if p.last != nil && sameSnapshot(*p.last, snap) {
		p.mu.Lock()
		p.stats.Skipped++
		p.stats.LastMirror = readAt
		p.mu.Unlock()
		p.logger.DebugContext(ctx, "Source unchanged, mirror skipped")
		return nil
	}
	if err := p.target.Save(ctx, snap); err != nil {
		return fmt.Errorf("save target: %w", err)
	}
	p.last = &snap

	p.mu.Lock()
	p.stats.Mirrored++
	p.stats.LastMirror = readAt
	p.stats.LastError = ""
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "Mirrored ledger",
		applog.FieldOperation, applog.OpSync,
		"members", len(snap.Members),
		"entries", len(snap.Entries))
	return nil
}
