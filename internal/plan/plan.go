// Package plan derives the monthly revenue target from the previous month.
package plan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"revenue/internal/aggregate"
	"revenue/internal/core"
	"revenue/internal/log"
)

// DefaultCoefficient scales last month's totals into this month's target.
const DefaultCoefficient = 0.991

// Entry is a cached plan and the YYYY-MM month it belongs to.
type Entry struct {
	MonthKey  string    `json:"month"`
	Plan      core.Plan `json:"plan"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists the single cached plan entry.
type Store interface {
	// Load returns the cached entry; ok is false when nothing is cached.
	Load(ctx context.Context) (entry Entry, ok bool, err error)
	Save(ctx context.Context, e Entry) error
}

// SalesFetcher reads the sales report for a date range.
type SalesFetcher interface {
	FetchSales(ctx context.Context, from, to time.Time) ([]core.RawSaleRecord, error)
}

type Calculator struct {
	store       Store
	fetcher     SalesFetcher
	lookup      aggregate.Lookup
	coefficient decimal.Decimal
	logger      *log.Logger

	mu sync.Mutex
}

func NewCalculator(store Store, fetcher SalesFetcher, lookup aggregate.Lookup, coefficient float64, logger *log.Logger) *Calculator {
	if coefficient <= 0 {
		coefficient = DefaultCoefficient
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Calculator{
		store:       store,
		fetcher:     fetcher,
		lookup:      lookup,
		coefficient: decimal.NewFromFloat(coefficient),
		logger:      logger.WithComponent(log.ComponentPlan),
	}
}

// GetOrRefresh returns the plan for the month of now. The previous month's
// sales are fetched at most once per month: while the cached entry matches
// the month it is returned as is.
//
// When the fetch fails the last cached plan (or a zero plan) is returned
// together with the error and nothing is cached, so the next call retries.
func (c *Calculator) GetOrRefresh(ctx context.Context, now time.Time) (core.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	month := core.MonthKey(now)
	cached, ok, err := c.store.Load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Plan store unreadable, recomputing",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err.Error())
		ok = false
	}
	if ok && cached.MonthKey == month {
		return cached.Plan, nil
	}

	from, to := core.PreviousMonthRange(now)
	records, err := c.fetcher.FetchSales(ctx, from, to)
	if err != nil {
		stale := core.Plan{}
		if ok {
			stale = cached.Plan
		}
		return stale, fmt.Errorf("refresh plan for %s: %w", month, err)
	}

	totals := aggregate.Sales(c.lookup, records).Totals()
	p := Compute(totals, c.coefficient)

	entry := Entry{MonthKey: month, Plan: p, UpdatedAt: now}
	if err := c.store.Save(ctx, entry); err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist plan",
			log.FieldOperation, log.OpRefresh,
			log.FieldMonth, month,
			log.FieldError, err.Error())
	}

	c.logger.InfoContext(ctx, "Plan recomputed",
		log.FieldOperation, log.OpRefresh,
		log.FieldMonth, month,
		log.FieldRecords, len(records),
		log.FieldPlanRevenue, p.Revenue,
		log.FieldPlanOrders, p.Orders)
	return p, nil
}

// Compute scales totals by coefficient, rounding half to even.
func Compute(totals core.Totals, coefficient decimal.Decimal) core.Plan {
	return core.Plan{
		Revenue: totals.TotalRevenue.Mul(coefficient).RoundBank(0).IntPart(),
		Orders:  decimal.NewFromInt(totals.TotalOrders).Mul(coefficient).RoundBank(0).IntPart(),
	}
}
