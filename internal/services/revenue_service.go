// Package services orchestrates one polling run and the background sheet sync.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"revenue/internal/aggregate"
	"revenue/internal/amqp"
	"revenue/internal/core"
	"revenue/internal/iiko"
	"revenue/internal/log"
	"revenue/internal/snapshot"
)

type (
	SalesSource interface {
		FetchSales(ctx context.Context, from, to time.Time) ([]core.RawSaleRecord, error)
	}

	DishSource interface {
		FetchDishes(ctx context.Context, from, to time.Time) ([]core.RawDishRecord, error)
	}

	PlanProvider interface {
		GetOrRefresh(ctx context.Context, now time.Time) (core.Plan, error)
	}

	CurrentWriter interface {
		WriteCurrent(ctx context.Context, s snapshot.Snapshot) error
	}

	EventPublisher interface {
		PublishSnapshotUpdated(ctx context.Context, msg *amqp.SnapshotUpdatedMessage) error
		PublishDayArchived(ctx context.Context, msg *amqp.DayArchivedMessage) error
	}

	ArchiveSyncer interface {
		ProcessPending(ctx context.Context) int
	}
)

// Deps wires a RevenueService. Events and Sync are optional; a nil Calendar
// means the 03:00 cutover with a ten minute archive window.
type Deps struct {
	Sales    SalesSource
	Dishes   DishSource
	Plan     PlanProvider
	Lookup   aggregate.Lookup
	Current  CurrentWriter
	Archive  snapshot.Sink
	Events   EventPublisher
	Sync     ArchiveSyncer
	Calendar *core.Calendar
	Logger   *log.Logger
}

// RunResult describes what one run produced.
type RunResult struct {
	RunID    string
	Snapshot snapshot.Snapshot
	// Archived is set when the run fell in the archive window and the
	// archive was stored; ArchiveDate is the closed business day.
	Archived    bool
	ArchiveDate string
	Dropped     amqp.DropCounts
	// FetchErrors lists fetches that failed and were treated as empty.
	FetchErrors []error
}

type RevenueService struct {
	deps     Deps
	calendar core.Calendar
	logger   *log.Logger
}

func NewRevenueService(deps Deps) *RevenueService {
	calendar := core.DefaultCalendar()
	if deps.Calendar != nil {
		calendar = *deps.Calendar
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &RevenueService{deps: deps, calendar: calendar, logger: logger.WithComponent(log.ComponentApp)}
}

// Run polls the reports once for the business day containing now, writes
// the current snapshot and, inside the archive window, archives the day
// that just closed.
func (s *RevenueService) Run(ctx context.Context, now time.Time) (RunResult, error) {
	res := RunResult{RunID: uuid.NewString()}
	logger := s.logger.With(log.FieldRunID, res.RunID)
	ctx = log.NewContext(ctx, logger)

	plan, err := s.deps.Plan.GetOrRefresh(ctx, now)
	if err != nil {
		logger.WarnContext(ctx, "Plan refresh failed, using last known plan",
			log.NewFields().WithOperation(log.OpRefresh).WithError(err, log.ErrorTypeNetwork).ToSlice()...)
	}

	day := s.calendar.BusinessDay(now)
	sales, dishes, fetchErrs, err := s.fetch(ctx, logger, day)
	if err != nil {
		return res, err
	}
	res.FetchErrors = fetchErrs

	salesAgg := aggregate.Sales(s.deps.Lookup, sales)
	catAgg := aggregate.Categories(s.deps.Lookup, dishes)
	res.Dropped = amqp.DropCounts{
		Sales:     salesAgg.Dropped,
		Dishes:    catAgg.Dropped,
		Unmatched: catAgg.Unmatched,
	}
	if res.Dropped != (amqp.DropCounts{}) {
		logger.WarnContext(ctx, "Records not attributed to any venue or category",
			log.NewFields().
				WithDropped(res.Dropped.Sales, res.Dropped.Dishes, res.Dropped.Unmatched).
				ToSlice()...)
	}

	snap := snapshot.Build(day, now, salesAgg, catAgg, plan)
	res.Snapshot = snap

	if err := s.deps.Current.WriteCurrent(ctx, snap); err != nil {
		return res, fmt.Errorf("write current snapshot: %w", err)
	}
	if s.deps.Events != nil {
		if err := s.deps.Events.PublishSnapshotUpdated(ctx, amqp.NewSnapshotUpdatedMessage(res.RunID, snap, res.Dropped)); err != nil {
			logger.WarnContext(ctx, "Failed to publish snapshot update",
				log.FieldOperation, log.OpPublish,
				log.FieldError, err.Error())
		}
	}

	if s.calendar.InArchiveWindow(now) {
		if err := s.archive(ctx, logger, &res, now); err != nil {
			return res, err
		}
	}

	logger.InfoContext(ctx, "Run complete",
		log.FieldBusinessDate, snap.Date,
		log.FieldTime, snap.Time,
		log.FieldTotalRevenue, snap.Total.TotalRevenue.StringFixed(0),
		log.FieldTotalOrders, snap.Total.TotalOrders,
		log.FieldPlanRevenue, snap.Plan.Revenue,
		"archived", res.Archived)
	return res, nil
}

// fetch reads both reports for day concurrently. A failed fetch is logged
// and yields no records so the other report still contributes. When ctx is
// cancelled the run is abandoned instead, so a shutdown never overwrites the
// current snapshot with an empty one.
func (s *RevenueService) fetch(ctx context.Context, logger *log.Logger, day time.Time) ([]core.RawSaleRecord, []core.RawDishRecord, []error, error) {
	var (
		sales             []core.RawSaleRecord
		dishes            []core.RawDishRecord
		salesErr, dishErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sales, salesErr = s.deps.Sales.FetchSales(gctx, day, day)
		return ctx.Err()
	})
	g.Go(func() error {
		dishes, dishErr = s.deps.Dishes.FetchDishes(gctx, day, day)
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, fmt.Errorf("fetch reports: %w", err)
	}

	var errs []error
	if salesErr != nil {
		logger.ErrorContext(ctx, "Sales fetch failed, continuing without sales",
			log.NewFields().WithOperation(log.OpFetch).WithError(salesErr, errorType(salesErr)).ToSlice()...)
		sales = nil
		errs = append(errs, salesErr)
	}
	if dishErr != nil {
		logger.ErrorContext(ctx, "Dish fetch failed, continuing without dishes",
			log.NewFields().WithOperation(log.OpFetch).WithError(dishErr, errorType(dishErr)).ToSlice()...)
		dishes = nil
		errs = append(errs, dishErr)
	}
	return sales, dishes, errs, nil
}

func (s *RevenueService) archive(ctx context.Context, logger *log.Logger, res *RunResult, now time.Time) error {
	archived := res.Snapshot.ForArchive(now)
	if err := s.deps.Archive.SaveArchive(ctx, archived); err != nil {
		return fmt.Errorf("archive %s: %w", archived.Date, err)
	}
	res.Archived = true
	res.ArchiveDate = archived.Date

	logger.InfoContext(ctx, "Day archived",
		log.FieldOperation, log.OpArchive,
		log.FieldBusinessDate, archived.Date,
		log.FieldTotalRevenue, archived.Total.TotalRevenue.StringFixed(0))

	if s.deps.Sync != nil {
		s.deps.Sync.ProcessPending(ctx)
	}
	if s.deps.Events != nil {
		if err := s.deps.Events.PublishDayArchived(ctx, amqp.NewDayArchivedMessage(res.RunID, archived)); err != nil {
			logger.WarnContext(ctx, "Failed to publish day archived",
				log.FieldOperation, log.OpPublish,
				log.FieldBusinessDate, archived.Date,
				log.FieldError, err.Error())
		}
	}
	return nil
}

func errorType(err error) string {
	var statusErr *iiko.StatusError
	switch {
	case errors.Is(err, iiko.ErrAuth):
		return log.ErrorTypeAuth
	case errors.As(err, &statusErr), errors.Is(err, iiko.ErrUnavailable):
		return log.ErrorTypeNetwork
	default:
		return log.ErrorTypeParse
	}
}
