package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clubfines/internal/core"
	"clubfines/internal/sheets/memory"
)

type flakySaver struct {
	*memory.Store
	failures int
}

func (f *flakySaver) Save(ctx context.Context, s core.Snapshot) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("quota exceeded")
	}
	return f.Store.Save(ctx, s)
}

func seededSource(t *testing.T) *memory.Store {
	t.Helper()
	src := memory.New(core.DefaultEventTypes(), core.DefaultRules())
	snap, _ := src.Load(context.Background())
	snap.Members = []core.Member{{Name: "Alice", TotalFine: 50}}
	snap.Entries = []core.Entry{{ID: 1, Date: core.NewDate(2024, 1, 1), Member: "Alice", Amount: 50}}
	require.NoError(t, src.Save(context.Background(), snap))
	return src
}

func TestDefaultMirrorProcessorConfig(t *testing.T) {
	config := DefaultMirrorProcessorConfig()
	require.Equal(t, 5*time.Minute, config.Interval)
	require.Equal(t, 3, config.MaxRetries)
	require.Equal(t, 2*time.Second, config.RetryDelay)

	p := NewMirrorProcessor(nil, nil, MirrorProcessorConfig{})
	require.Equal(t, config.Interval, p.config.Interval)
	require.Equal(t, config.MaxRetries, p.config.MaxRetries)
}

func TestMirrorNowCopiesAndSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	src := seededSource(t)
	dst := memory.New(nil, nil)
	p := NewMirrorProcessor(src, dst, MirrorProcessorConfig{Interval: time.Hour, MaxRetries: 1})

	require.NoError(t, p.MirrorNow(ctx))
	want, _ := src.Load(ctx)
	got, _ := dst.Load(ctx)
	require.Equal(t, want, got)

	require.NoError(t, p.MirrorNow(ctx))
	require.Equal(t, 1, dst.Saves())
	stats := p.Stats()
	require.Equal(t, int64(1), stats.Mirrored)
	require.Equal(t, int64(1), stats.Skipped)
}

func TestMirrorNowRetries(t *testing.T) {
	ctx := context.Background()
	src := seededSource(t)
	dst := &flakySaver{Store: memory.New(nil, nil), failures: 2}
	p := NewMirrorProcessor(src, dst, MirrorProcessorConfig{Interval: time.Hour, MaxRetries: 3, RetryDelay: 0})

	require.NoError(t, p.MirrorNow(ctx))
	require.Equal(t, 1, dst.Saves())

	dst.failures = 5
	src2, _ := src.Load(ctx)
	src2.Members[0].TotalFine = 60
	src2.Entries[0].Amount = 60
	require.NoError(t, src.Save(ctx, src2))
	err := p.MirrorNow(ctx)
	require.ErrorContains(t, err, "quota exceeded")
	require.Equal(t, int64(1), p.Stats().Failed)
}

type clockedSaver struct {
	*memory.Store
	advance func()
}

func (c *clockedSaver) Save(ctx context.Context, s core.Snapshot) error {
	c.advance()
	return c.Store.Save(ctx, s)
}

func TestLastMirrorIsTakenBeforeReadingSource(t *testing.T) {
	ctx := context.Background()
	src := seededSource(t)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	readAt := clock
	dst := &clockedSaver{Store: memory.New(nil, nil), advance: func() { clock = clock.Add(time.Minute) }}
	p := NewMirrorProcessor(src, dst, MirrorProcessorConfig{Interval: time.Hour, MaxRetries: 1})
	p.now = func() time.Time { return clock }

	require.NoError(t, p.MirrorNow(ctx))
	require.Equal(t, readAt, p.Stats().LastMirror)
	require.True(t, clock.After(readAt))

	// A skipped copy still covers everything up to its read.
	readAt = clock
	require.NoError(t, p.MirrorNow(ctx))
	require.Equal(t, int64(1), p.Stats().Skipped)
	require.Equal(t, readAt, p.Stats().LastMirror)
}

func TestMirrorProcessorLifecycle(t *testing.T) {
	src := seededSource(t)
	dst := memory.New(nil, nil)
	p := NewMirrorProcessor(src, dst, MirrorProcessorConfig{Interval: time.Hour, MaxRetries: 1})
	require.False(t, p.IsRunning())
	require.NoError(t, p.Stop(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	require.True(t, p.IsRunning())
	require.Error(t, p.Start(ctx))

	// The loop mirrors once on startup.
	require.Eventually(t, func() bool { return dst.Saves() == 1 }, time.Second, 10*time.Millisecond)

	snap, _ := src.Load(context.Background())
	snap.Rules = nil
	require.NoError(t, src.Save(context.Background(), snap))
	p.Trigger()
	p.Trigger()
	require.Eventually(t, func() bool { return dst.Saves() == 2 }, time.Second, 10*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, p.Stop(stopCtx))
	require.False(t, p.IsRunning())
}
