package backend

import (
	"context"
	"fmt"

	"revenue/internal/amqp"
	"revenue/internal/catalog"
	"revenue/internal/config"
	"revenue/internal/core"
	"revenue/internal/iiko"
	"revenue/internal/log"
	"revenue/internal/plan"
	"revenue/internal/services"
	gsheet "revenue/internal/sheets/google"
	"revenue/internal/snapshot"
	"revenue/internal/storage"
)

// Factory builds a Backend from the application config.
type Factory struct {
	logger *log.Logger

	// iikoOpts are passed to the report client, used by tests to swap transports.
	iikoOpts []iiko.Option
}

func NewFactory(logger *log.Logger, opts ...iiko.Option) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger, iikoOpts: opts}
}

// Build creates every collaborator named by cfg. Optional integrations that
// fail to start are logged and left out; required ones abort the build.
func (f *Factory) Build(ctx context.Context, cfg *config.Config) (*Backend, error) {
	b := &Backend{}
	fail := func(err error) (*Backend, error) {
		_ = b.Close(ctx)
		return nil, err
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return fail(fmt.Errorf("load catalog: %w", err))
	}
	b.Catalog = cat
	f.logger.Info("Catalog loaded",
		log.FieldCatalogVersion, cat.Version(),
		"venues", len(cat.Venues()),
		"categories", len(cat.Categories()))

	opts := append([]iiko.Option{iiko.WithDishFilter(cat)}, f.iikoOpts...)
	b.Iiko = iiko.New(iiko.Config{
		BaseURL:      cfg.IikoBaseURL,
		Login:        cfg.IikoLogin,
		PasswordSHA1: cfg.IikoPasswordSHA1,
		Timeout:      cfg.IikoTimeout,
		MaxRetries:   cfg.IikoMaxRetries,
		InsecureTLS:  cfg.IikoInsecureTLS,
	}, f.logger, opts...)

	if cfg.SQLiteDBPath != "" {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, f.logger)
		if err != nil {
			return fail(fmt.Errorf("open sqlite: %w", err))
		}
		b.Repo = repo
		b.onClose(repo.Close)
	}

	store, err := f.planStore(cfg, b)
	if err != nil {
		return fail(err)
	}
	calc := plan.NewCalculator(store, b.Iiko, cat, cfg.PlanCoefficient, f.logger)

	files := snapshot.NewFileWriter(cfg.DataDir, f.logger)
	sinks := []snapshot.NamedSink{{Name: "file", Sink: files}}
	if b.Repo != nil {
		sinks = append(sinks, snapshot.NamedSink{Name: "sqlite", Sink: b.Repo})
	}

	if cfg.GoogleSpreadsheetID != "" {
		sheet, err := gsheet.NewFromEnv(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, f.logger)
		switch {
		case err != nil:
			f.logger.Warn("Google Sheets disabled", log.FieldError, err.Error())
		case b.Repo != nil:
			b.Sync = services.NewSyncProcessor(b.Repo, sheet, services.DefaultSyncProcessorConfig(), f.logger)
			f.logger.Info("Google Sheets sync queue enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		default:
			// Without the queue a failed append is only logged.
			sinks = append(sinks, snapshot.NamedSink{Name: "sheets", Sink: sheet, Optional: true})
			f.logger.Info("Google Sheets direct append enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		}
	}

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, f.logger)
		if err != nil {
			f.logger.Warn("AMQP disabled, continuing without events", log.FieldError, err.Error())
		} else {
			events = client
			b.onClose(client.Close)
			f.logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange)
		}
	}

	deps := services.Deps{
		Sales:    b.Iiko,
		Dishes:   b.Iiko,
		Plan:     calc,
		Lookup:   cat,
		Current:  files,
		Archive:  snapshot.NewMultiSink(f.logger, sinks...),
		Events:   events,
		Calendar: &core.Calendar{CutoverHour: cfg.CutoverHour, ArchiveWindow: cfg.ArchiveWindow},
		Logger:   f.logger,
	}
	if b.Sync != nil { // keep the interface nil, not a typed nil
		deps.Sync = b.Sync
	}
	b.Service = services.NewRevenueService(deps)
	return b, nil
}

func (f *Factory) planStore(cfg *config.Config, b *Backend) (plan.Store, error) {
	switch cfg.PlanStore {
	case config.PlanStoreMemory:
		return plan.NewMemoryStore(), nil
	case config.PlanStoreSQLite:
		if b.Repo == nil {
			return nil, fmt.Errorf("plan store %q needs SQLITE_DB_PATH", cfg.PlanStore)
		}
		return plan.NewSQLiteStore(b.Repo), nil
	case config.PlanStoreRedis:
		store, client, err := plan.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.onClose(client.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported plan store: %s", cfg.PlanStore)
	}
}
