package storage

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type DailyArchive struct {
	BusinessDate  string
	Payload       string
	TotalRevenue  string
	TotalOrders   int64
	ArchivedAt    time.Time
	SyncStatus    string
	SyncAttempts  int64
	LastSyncError sql.NullString
	SyncedAt      sql.NullTime
}

type PlanCache struct {
	MonthKey  string
	Revenue   int64
	Orders    int64
	UpdatedAt time.Time
}

const archiveColumns = `business_date, payload, total_revenue, total_orders, archived_at,
       sync_status, sync_attempts, last_sync_error, synced_at`

func scanArchive(row interface{ Scan(...interface{}) error }) (DailyArchive, error) {
	var a DailyArchive
	err := row.Scan(
		&a.BusinessDate,
		&a.Payload,
		&a.TotalRevenue,
		&a.TotalOrders,
		&a.ArchivedAt,
		&a.SyncStatus,
		&a.SyncAttempts,
		&a.LastSyncError,
		&a.SyncedAt,
	)
	return a, err
}

const upsertArchive = `
INSERT INTO daily_archives (business_date, payload, total_revenue, total_orders, archived_at, sync_status, sync_attempts, last_sync_error, synced_at)
VALUES (?, ?, ?, ?, ?, 'pending', 0, NULL, NULL)
ON CONFLICT (business_date) DO UPDATE SET
    payload = excluded.payload,
    total_revenue = excluded.total_revenue,
    total_orders = excluded.total_orders,
    archived_at = excluded.archived_at,
    sync_status = CASE WHEN daily_archives.sync_status = 'synced' THEN 'synced' ELSE 'pending' END,
    sync_attempts = CASE WHEN daily_archives.sync_status = 'synced' THEN daily_archives.sync_attempts ELSE 0 END
`

type UpsertArchiveParams struct {
	BusinessDate string
	Payload      string
	TotalRevenue string
	TotalOrders  int64
	ArchivedAt   time.Time
}

func (q *Queries) UpsertArchive(ctx context.Context, arg UpsertArchiveParams) error {
	_, err := q.db.ExecContext(ctx, upsertArchive,
		arg.BusinessDate,
		arg.Payload,
		arg.TotalRevenue,
		arg.TotalOrders,
		arg.ArchivedAt,
	)
	return err
}

const getArchive = `SELECT ` + archiveColumns + ` FROM daily_archives WHERE business_date = ?`

func (q *Queries) GetArchive(ctx context.Context, businessDate string) (DailyArchive, error) {
	return scanArchive(q.db.QueryRowContext(ctx, getArchive, businessDate))
}

const listArchivesBetween = `SELECT ` + archiveColumns + `
FROM daily_archives
WHERE business_date >= ? AND business_date < ?
ORDER BY business_date`

func (q *Queries) ListArchivesBetween(ctx context.Context, from, until string) ([]DailyArchive, error) {
	return q.listArchives(ctx, listArchivesBetween, from, until)
}

const listPendingSync = `SELECT ` + archiveColumns + `
FROM daily_archives
WHERE sync_status = 'pending'
ORDER BY business_date
LIMIT ?`

func (q *Queries) ListPendingSync(ctx context.Context, limit int64) ([]DailyArchive, error) {
	return q.listArchives(ctx, listPendingSync, limit)
}

func (q *Queries) listArchives(ctx context.Context, query string, args ...interface{}) ([]DailyArchive, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyArchive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markArchiveSynced = `
UPDATE daily_archives
SET sync_status = 'synced', synced_at = ?, last_sync_error = NULL
WHERE business_date = ?`

func (q *Queries) MarkArchiveSynced(ctx context.Context, syncedAt time.Time, businessDate string) error {
	_, err := q.db.ExecContext(ctx, markArchiveSynced, syncedAt, businessDate)
	return err
}

const markArchiveSyncError = `
UPDATE daily_archives
SET sync_attempts = sync_attempts + 1,
    last_sync_error = ?,
    sync_status = CASE WHEN sync_attempts + 1 >= ? THEN 'failed' ELSE 'pending' END
WHERE business_date = ?`

func (q *Queries) MarkArchiveSyncError(ctx context.Context, msg string, maxAttempts int64, businessDate string) error {
	_, err := q.db.ExecContext(ctx, markArchiveSyncError, msg, maxAttempts, businessDate)
	return err
}

const retryFailedSync = `UPDATE daily_archives SET sync_status = 'pending', sync_attempts = 0 WHERE sync_status = 'failed'`

func (q *Queries) RetryFailedSync(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, retryFailedSync)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getPlanCache = `SELECT month_key, revenue, orders, updated_at FROM plan_cache WHERE id = 1`

func (q *Queries) GetPlanCache(ctx context.Context) (PlanCache, error) {
	var p PlanCache
	err := q.db.QueryRowContext(ctx, getPlanCache).Scan(&p.MonthKey, &p.Revenue, &p.Orders, &p.UpdatedAt)
	return p, err
}

const upsertPlanCache = `
INSERT INTO plan_cache (id, month_key, revenue, orders, updated_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    month_key = excluded.month_key,
    revenue = excluded.revenue,
    orders = excluded.orders,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertPlanCache(ctx context.Context, arg PlanCache) error {
	_, err := q.db.ExecContext(ctx, upsertPlanCache, arg.MonthKey, arg.Revenue, arg.Orders, arg.UpdatedAt)
	return err
}
