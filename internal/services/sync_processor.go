package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"revenue/internal/log"
	"revenue/internal/sheets"
	"revenue/internal/storage"
)

// SyncProcessorConfig holds configuration for the sheet sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending days (default: 1m)
	PollInterval time.Duration

	// BatchSize is the max number of days pushed per cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of attempts before a day is parked as failed (default: 5)
	MaxRetries int
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: time.Minute,
		BatchSize:    10,
		MaxRetries:   5,
	}
}

// ArchiveQueue is the sync bookkeeping kept next to archived days.
type ArchiveQueue interface {
	ListPendingSync(ctx context.Context, limit int) ([]storage.ArchivedDay, error)
	MarkSynced(ctx context.Context, date string) error
	MarkSyncError(ctx context.Context, date string, syncErr error, maxAttempts int) error
	RetryFailedSync(ctx context.Context) (int, error)
}

// SyncProcessor pushes archived days from SQLite to the spreadsheet. A day
// whose append fails stays queued and is retried on later cycles.
type SyncProcessor struct {
	queue  ArchiveQueue
	sheets sheets.ArchiveAppender
	config SyncProcessorConfig
	logger *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// processMu serializes batches so a day is never appended twice.
	processMu sync.Mutex
}

func NewSyncProcessor(queue ArchiveQueue, appender sheets.ArchiveAppender, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultSyncProcessorConfig().MaxRetries
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncProcessor{
		queue:  queue,
		sheets: appender,
		config: config,
		logger: logger.WithComponent(log.ComponentSheets),
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	p.stopCh, p.doneCh = stopCh, doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	p.logger.InfoContext(ctx, "Sheet sync processor started",
		"poll_interval", p.config.PollInterval.String(),
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for the current batch to finish. The
// processor counts as stopped even when ctx expires first, so a later Stop
// is a no-op.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.stopCh, p.doneCh = nil, nil
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Sheet sync processor stopped")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sheet sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.ProcessPending(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessPending(ctx)
		}
	}
}

// ProcessPending pushes one batch of pending days and returns how many were
// synced. Concurrent callers run one after the other.
func (p *SyncProcessor) ProcessPending(ctx context.Context) int {
	p.processMu.Lock()
	defer p.processMu.Unlock()

	days, err := p.queue.ListPendingSync(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list pending days",
			log.FieldOperation, log.OpAppend,
			log.FieldError, err.Error())
		return 0
	}

	synced := 0
	for _, day := range days {
		if ctx.Err() != nil {
			break
		}
		date := day.Snapshot.Date
		if _, err := p.sheets.AppendDay(ctx, day.Snapshot); err != nil {
			p.handleFailure(ctx, day, err)
			continue
		}
		if err := p.queue.MarkSynced(ctx, date); err != nil {
			// The row is already in the sheet; a retry would duplicate it.
			p.logger.ErrorContext(ctx, "Failed to mark day synced",
				log.FieldBusinessDate, date,
				log.FieldError, err.Error())
			continue
		}
		synced++
	}

	if len(days) > 0 {
		p.logger.InfoContext(ctx, "Sheet sync batch done",
			log.FieldOperation, log.OpAppend,
			"pending", len(days),
			"synced", synced)
	}
	return synced
}

func (p *SyncProcessor) handleFailure(ctx context.Context, day storage.ArchivedDay, syncErr error) {
	attempt := day.SyncAttempts + 1
	p.logger.WarnContext(ctx, "Sheet append failed",
		log.FieldBusinessDate, day.Snapshot.Date,
		log.FieldAttempt, attempt,
		log.FieldError, syncErr.Error())

	if err := p.queue.MarkSyncError(ctx, day.Snapshot.Date, syncErr, p.config.MaxRetries); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record sync error",
			log.FieldBusinessDate, day.Snapshot.Date,
			log.FieldError, err.Error())
		return
	}
	if attempt >= p.config.MaxRetries {
		p.logger.ErrorContext(ctx, "Day parked after max sheet retries",
			log.FieldBusinessDate, day.Snapshot.Date,
			log.FieldAttempt, attempt)
	}
}

// RetryFailed puts parked days back in the queue.
func (p *SyncProcessor) RetryFailed(ctx context.Context) (int, error) {
	return p.queue.RetryFailedSync(ctx)
}
