// Package export renders a month of archived days as an xlsx workbook.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"revenue/internal/core"
	"revenue/internal/sheets"
	"revenue/internal/snapshot"
	"revenue/internal/storage"
)

const (
	SheetTotals   = "Итоги"
	SheetPrepWork = "Заготовки"

	sumLabel = "Итого"
)

// ErrNoDays is returned when the month has no archived days.
var ErrNoDays = errors.New("no archived days for month")

// ArchiveLister lists the archived days of a calendar month in date order.
type ArchiveLister interface {
	ListArchives(ctx context.Context, year int, month time.Month) ([]storage.ArchivedDay, error)
}

// Month writes the workbook for year/month to w.
func Month(ctx context.Context, lister ArchiveLister, year int, month time.Month, w io.Writer) error {
	days, err := lister.ListArchives(ctx, year, month)
	if err != nil {
		return fmt.Errorf("list archives %04d-%02d: %w", year, month, err)
	}
	if len(days) == 0 {
		return fmt.Errorf("%04d-%02d: %w", year, month, ErrNoDays)
	}

	wb, err := Build(days)
	if err != nil {
		return err
	}
	defer wb.Close()

	if _, err := wb.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Build lays out the totals and prep-work sheets for days.
func Build(days []storage.ArchivedDay) (*excelize.File, error) {
	wb := excelize.NewFile()
	if err := wb.SetSheetName(wb.GetSheetName(0), SheetTotals); err != nil {
		wb.Close()
		return nil, err
	}
	if _, err := wb.NewSheet(SheetPrepWork); err != nil {
		wb.Close()
		return nil, err
	}

	if err := writeTotals(wb, days); err != nil {
		wb.Close()
		return nil, fmt.Errorf("sheet %s: %w", SheetTotals, err)
	}
	if err := writePrepWork(wb, days); err != nil {
		wb.Close()
		return nil, fmt.Errorf("sheet %s: %w", SheetPrepWork, err)
	}
	return wb, nil
}

func writeTotals(wb *excelize.File, days []storage.ArchivedDay) error {
	if err := setRow(wb, SheetTotals, 1, toAny(sheets.Header)); err != nil {
		return err
	}

	var sum core.Totals
	var plan core.Plan
	for i, d := range days {
		if err := setRow(wb, SheetTotals, i+2, sheets.Row(d.Snapshot)); err != nil {
			return err
		}
		t := d.Snapshot.Total
		sum.TotalOrders += t.TotalOrders
		sum.TotalRevenue = sum.TotalRevenue.Add(t.TotalRevenue)
		sum.DeliveryOrders += t.DeliveryOrders
		sum.DeliveryRevenue = sum.DeliveryRevenue.Add(t.DeliveryRevenue)
		sum.PickupOrders += t.PickupOrders
		sum.PickupRevenue = sum.PickupRevenue.Add(t.PickupRevenue)
		sum.OnsiteOrders += t.OnsiteOrders
		sum.OnsiteRevenue = sum.OnsiteRevenue.Add(t.OnsiteRevenue)
		plan = d.Snapshot.Plan
	}

	// The sum row carries the month's plan as of its last archived day.
	row := sheets.Row(snapshot.Snapshot{Total: sum, Plan: plan})
	row[0] = sumLabel
	return setRow(wb, SheetTotals, len(days)+2, row)
}

func writePrepWork(wb *excelize.File, days []storage.ArchivedDay) error {
	categories := categoryNames(days)
	header := append([]any{"Дата", "Точка"}, toAny(categories)...)
	if err := setRow(wb, SheetPrepWork, 1, header); err != nil {
		return err
	}

	row := 2
	for _, d := range days {
		for _, venue := range sortedKeys(d.Snapshot.Sales) {
			cats := d.Snapshot.Sales[venue]
			if len(cats) == 0 {
				continue
			}
			values := []any{d.Snapshot.Date, venue}
			for _, name := range categories {
				total, ok := cats[name]
				if !ok {
					values = append(values, nil)
					continue
				}
				values = append(values, total.Amount().Round(3).InexactFloat64())
			}
			if err := setRow(wb, SheetPrepWork, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func setRow(wb *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return wb.SetSheetRow(sheet, cell, &values)
}

func categoryNames(days []storage.ArchivedDay) []string {
	seen := map[string]struct{}{}
	for _, d := range days {
		for _, cats := range d.Snapshot.Sales {
			for name := range cats {
				seen[name] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
