package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revenue/internal/core"
	"revenue/internal/sheets/memory"
	"revenue/internal/snapshot"
	"revenue/internal/storage"
)

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != time.Minute {
		t.Errorf("expected PollInterval 1m, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
	if config.MaxRetries != 5 {
		t.Errorf("expected MaxRetries 5, got %d", config.MaxRetries)
	}
}

func TestNewSyncProcessor_FillsDefaults(t *testing.T) {
	p := NewSyncProcessor(nil, nil, SyncProcessorConfig{}, nil)
	assert.Equal(t, DefaultSyncProcessorConfig(), p.config)
	assert.False(t, p.IsRunning())
}

func TestSyncProcessor_StartTwice(t *testing.T) {
	processor := NewSyncProcessor(nil, nil, DefaultSyncProcessorConfig(), nil)

	processor.mu.Lock()
	processor.running = true
	processor.mu.Unlock()

	if err := processor.Start(context.Background()); err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestSyncProcessor_StopNotRunning(t *testing.T) {
	processor := NewSyncProcessor(nil, nil, DefaultSyncProcessorConfig(), nil)
	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop on idle processor returned %v", err)
	}
}

func newQueue(t *testing.T, dates ...string) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "revenue.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	for _, d := range dates {
		require.NoError(t, repo.SaveArchive(context.Background(), snapshot.Snapshot{Date: d, Time: core.EndOfDayTime}))
	}
	return repo
}

func TestSyncProcessor_ProcessPending(t *testing.T) {
	repo := newQueue(t, "2025-06-13", "2025-06-12")
	sheet := memory.New()
	p := NewSyncProcessor(repo, sheet, DefaultSyncProcessorConfig(), nil)
	ctx := context.Background()

	assert.Equal(t, 2, p.ProcessPending(ctx))
	assert.Equal(t, []string{"2025-06-12", "2025-06-13"}, sheet.Days())

	assert.Equal(t, 0, p.ProcessPending(ctx), "synced days are not pushed again")
	assert.Len(t, sheet.Days(), 2)
}

func TestSyncProcessor_RetriesThenParks(t *testing.T) {
	repo := newQueue(t, "2025-06-13")
	sheet := memory.New()
	sheet.FailWith(errors.New("quota exceeded"))
	p := NewSyncProcessor(repo, sheet, SyncProcessorConfig{MaxRetries: 2}, nil)
	ctx := context.Background()

	assert.Equal(t, 0, p.ProcessPending(ctx))
	day, err := repo.GetArchive(ctx, "2025-06-13")
	require.NoError(t, err)
	assert.Equal(t, storage.SyncPending, day.SyncStatus)

	assert.Equal(t, 0, p.ProcessPending(ctx))
	day, err = repo.GetArchive(ctx, "2025-06-13")
	require.NoError(t, err)
	assert.Equal(t, storage.SyncFailed, day.SyncStatus)
	assert.Equal(t, "quota exceeded", day.LastError)

	sheet.FailWith(nil)
	assert.Equal(t, 0, p.ProcessPending(ctx), "parked days wait for RetryFailed")

	n, err := p.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, p.ProcessPending(ctx))
}

func TestSyncProcessor_StartStop(t *testing.T) {
	repo := newQueue(t, "2025-06-13")
	sheet := memory.New()
	p := NewSyncProcessor(repo, sheet, SyncProcessorConfig{PollInterval: 10 * time.Millisecond}, nil)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Eventually(t, func() bool { return len(sheet.Days()) == 1 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
}

// gatedSheet delays each append until release is closed, or by delay when
// release is nil.
type gatedSheet struct {
	*memory.Store
	delay   time.Duration
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (g *gatedSheet) AppendDay(ctx context.Context, s snapshot.Snapshot) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.release != nil {
		<-g.release
	} else {
		time.Sleep(g.delay)
	}
	return g.Store.AppendDay(ctx, s)
}

func (g *gatedSheet) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestSyncProcessor_ConcurrentBatchesAppendOnce(t *testing.T) {
	repo := newQueue(t, "2025-06-13")
	sheet := &gatedSheet{Store: memory.New(), delay: 50 * time.Millisecond}
	p := NewSyncProcessor(repo, sheet, DefaultSyncProcessorConfig(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]int, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.ProcessPending(ctx)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, sheet.Calls())
	assert.Equal(t, []string{"2025-06-13"}, sheet.Days())
	assert.Equal(t, 1, results[0]+results[1])
}

func TestSyncProcessor_StopTimeoutThenStopAgain(t *testing.T) {
	repo := newQueue(t, "2025-06-13")
	sheet := &gatedSheet{Store: memory.New(), release: make(chan struct{})}
	p := NewSyncProcessor(repo, sheet, SyncProcessorConfig{PollInterval: time.Hour}, nil)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	require.Eventually(t, func() bool { return sheet.Calls() == 1 }, time.Second, 5*time.Millisecond)

	expired, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, p.Stop(expired), context.Canceled)
	assert.False(t, p.IsRunning())

	assert.NotPanics(t, func() {
		assert.NoError(t, p.Stop(ctx))
	})

	close(sheet.release)
	// Waits for the loop's in-flight batch to finish.
	assert.Equal(t, 0, p.ProcessPending(ctx))
	assert.Equal(t, []string{"2025-06-13"}, sheet.Days())
}
