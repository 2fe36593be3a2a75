// Package storage persists archived days and the monthly plan in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"revenue/internal/core"
	"revenue/internal/log"
	"revenue/internal/snapshot"

	_ "modernc.org/sqlite"
)

var (
	ErrArchiveNotFound = errors.New("archive not found")
	ErrPlanNotFound    = errors.New("plan not cached")
)

// Sync states of an archived day with respect to the spreadsheet.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncFailed  = "failed"
)

// ArchivedDay is an archived snapshot with its bookkeeping columns.
type ArchivedDay struct {
	Snapshot     snapshot.Snapshot
	ArchivedAt   time.Time
	SyncStatus   string
	SyncAttempts int
	LastError    string
}

// PlanRecord is the cached plan and the month it was computed for.
type PlanRecord struct {
	MonthKey  string
	Plan      core.Plan
	UpdatedAt time.Time
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer avoids SQLITE_BUSY between the run and the sync processor.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveArchive stores s keyed by its date. Re-archiving a date replaces the
// payload; a day already pushed to the spreadsheet stays synced.
func (r *SQLiteRepository) SaveArchive(ctx context.Context, s snapshot.Snapshot) error {
	payload, err := snapshot.Encode(s)
	if err != nil {
		return err
	}
	err = r.queries.UpsertArchive(ctx, UpsertArchiveParams{
		BusinessDate: s.Date,
		Payload:      string(payload),
		TotalRevenue: s.Total.TotalRevenue.String(),
		TotalOrders:  s.Total.TotalOrders,
		ArchivedAt:   r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save archive %s: %w", s.Date, err)
	}

	r.logger.InfoContext(ctx, "Day archived to SQLite",
		log.FieldOperation, log.OpArchive,
		log.FieldBusinessDate, s.Date,
		log.FieldTotalRevenue, s.Total.TotalRevenue.String(),
		log.FieldTotalOrders, s.Total.TotalOrders)
	return nil
}

func (r *SQLiteRepository) GetArchive(ctx context.Context, date string) (ArchivedDay, error) {
	row, err := r.queries.GetArchive(ctx, date)
	if errors.Is(err, sql.ErrNoRows) {
		return ArchivedDay{}, fmt.Errorf("%w: %s", ErrArchiveNotFound, date)
	}
	if err != nil {
		return ArchivedDay{}, fmt.Errorf("get archive %s: %w", date, err)
	}
	return toArchivedDay(row)
}

// ListArchives returns the archived days of a calendar month in date order.
func (r *SQLiteRepository) ListArchives(ctx context.Context, year int, month time.Month) ([]ArchivedDay, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	rows, err := r.queries.ListArchivesBetween(ctx,
		first.Format(core.DateLayout),
		first.AddDate(0, 1, 0).Format(core.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("list archives %s: %w", core.MonthKey(first), err)
	}
	return toArchivedDays(rows)
}

// ListPendingSync returns up to limit archived days not yet in the spreadsheet, oldest first.
func (r *SQLiteRepository) ListPendingSync(ctx context.Context, limit int) ([]ArchivedDay, error) {
	rows, err := r.queries.ListPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	return toArchivedDays(rows)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, date string) error {
	if err := r.queries.MarkArchiveSynced(ctx, r.now().UTC(), date); err != nil {
		return fmt.Errorf("mark %s synced: %w", date, err)
	}
	return nil
}

// MarkSyncError records a failed push. After maxAttempts the day is parked as failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, date string, syncErr error, maxAttempts int) error {
	msg := ""
	if syncErr != nil {
		msg = syncErr.Error()
	}
	if err := r.queries.MarkArchiveSyncError(ctx, msg, int64(maxAttempts), date); err != nil {
		return fmt.Errorf("mark %s sync error: %w", date, err)
	}
	return nil
}

// RetryFailedSync puts parked days back in the queue.
func (r *SQLiteRepository) RetryFailedSync(ctx context.Context) (int, error) {
	n, err := r.queries.RetryFailedSync(ctx)
	if err != nil {
		return 0, fmt.Errorf("retry failed sync: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) LoadPlan(ctx context.Context) (PlanRecord, error) {
	row, err := r.queries.GetPlanCache(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return PlanRecord{}, ErrPlanNotFound
	}
	if err != nil {
		return PlanRecord{}, fmt.Errorf("load plan: %w", err)
	}
	return PlanRecord{
		MonthKey:  row.MonthKey,
		Plan:      core.Plan{Revenue: row.Revenue, Orders: row.Orders},
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (r *SQLiteRepository) SavePlan(ctx context.Context, rec PlanRecord) error {
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = r.now()
	}
	err := r.queries.UpsertPlanCache(ctx, PlanCache{
		MonthKey:  rec.MonthKey,
		Revenue:   rec.Plan.Revenue,
		Orders:    rec.Plan.Orders,
		UpdatedAt: updated.UTC(),
	})
	if err != nil {
		return fmt.Errorf("save plan %s: %w", rec.MonthKey, err)
	}
	return nil
}

func toArchivedDays(rows []DailyArchive) ([]ArchivedDay, error) {
	out := make([]ArchivedDay, 0, len(rows))
	for _, row := range rows {
		day, err := toArchivedDay(row)
		if err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, nil
}

func toArchivedDay(row DailyArchive) (ArchivedDay, error) {
	s, err := snapshot.Decode([]byte(row.Payload))
	if err != nil {
		return ArchivedDay{}, fmt.Errorf("archive %s: %w", row.BusinessDate, err)
	}
	return ArchivedDay{
		Snapshot:     s,
		ArchivedAt:   row.ArchivedAt,
		SyncStatus:   row.SyncStatus,
		SyncAttempts: int(row.SyncAttempts),
		LastError:    row.LastSyncError.String,
	}, nil
}

var _ snapshot.Sink = (*SQLiteRepository)(nil)
