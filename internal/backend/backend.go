// Package backend wires the configured collaborators into a RevenueService.
package backend

import (
	"context"
	"errors"

	"revenue/internal/catalog"
	"revenue/internal/iiko"
	"revenue/internal/services"
	"revenue/internal/storage"
)

// Backend holds the wired service and the resources that must be released.
type Backend struct {
	Service *services.RevenueService
	Catalog *catalog.Catalog
	Iiko    *iiko.Client

	// Repo is nil when SQLITE_DB_PATH is empty.
	Repo *storage.SQLiteRepository
	// Sync is nil unless a spreadsheet is configured.
	Sync *services.SyncProcessor

	cleanups []func() error
}

func (b *Backend) onClose(fn func() error) {
	b.cleanups = append(b.cleanups, fn)
}

// Close ends the iiko session and releases resources in reverse order.
func (b *Backend) Close(ctx context.Context) error {
	var errs []error
	if b.Sync != nil && b.Sync.IsRunning() {
		errs = append(errs, b.Sync.Stop(ctx))
	}
	if b.Iiko != nil {
		errs = append(errs, b.Iiko.Logout(ctx))
	}
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		errs = append(errs, b.cleanups[i]())
	}
	return errors.Join(errs...)
}
