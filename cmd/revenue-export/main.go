package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"revenue/internal/cli"
	"revenue/internal/config"
	"revenue/internal/export"
	"revenue/internal/log"
	"revenue/internal/storage"
)

func main() {
	now := time.Now()
	lastMonth := now.AddDate(0, -1, 0)
	month := flag.String("month", lastMonth.Format("2006-01"), "month to export as YYYY-MM")
	out := flag.String("out", "", "output file (default revenue-YYYY-MM.xlsx)")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentExport)

	period, err := time.Parse("2006-01", *month)
	if err != nil {
		logger.Error("Invalid month", "month", *month, log.FieldError, err.Error())
		os.Exit(2)
	}
	path := *out
	if path == "" {
		path = fmt.Sprintf("revenue-%s.xlsx", period.Format("2006-01"))
	}

	// Only the archive database is needed here, so the iiko settings are not validated.
	cfg := config.Load()
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to open archive database",
			log.FieldPath, cfg.SQLiteDBPath,
			log.FieldError, err.Error())
		os.Exit(1)
	}

	err = writeWorkbook(repo, period, path)
	repo.Close()
	if err != nil {
		logger.Error("Export failed",
			log.FieldOperation, log.OpExport,
			log.FieldMonth, period.Format("2006-01"),
			log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Export written",
		log.FieldOperation, log.OpExport,
		log.FieldMonth, period.Format("2006-01"),
		log.FieldPath, path)
}

func writeWorkbook(repo *storage.SQLiteRepository, period time.Time, path string) (err error) {
	ctx, cancel := cli.ShutdownContext(time.Minute)
	defer cancel()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return export.Month(ctx, repo, period.Year(), period.Month(), f)
}
