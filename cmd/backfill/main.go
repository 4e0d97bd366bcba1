// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Command backfill recomputes daily statistics for a date range directly
// against the database, without going through the job queue. Use it to
// rebuild stats after importing historical events or fixing a counting bug.
//
// Usage:
//
//	backfill -days 30
//	backfill -start 2026-01-01 -end 2026-01-31
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/castminster/propertypulse/internal/aggregate"
	"github.com/castminster/propertypulse/internal/config"
	"github.com/castminster/propertypulse/internal/database"
	"github.com/castminster/propertypulse/internal/logging"
)

func main() {
	days := flag.Int("days", 0, "backfill the last N days (ending yesterday)")
	startStr := flag.String("start", "", "first day to backfill (YYYY-MM-DD)")
	endStr := flag.String("end", "", "last day to backfill (YYYY-MM-DD, inclusive)")
	flag.Parse()

	if err := run(*days, *startStr, *endStr); err != nil {
		fmt.Fprintf(os.Stderr, "backfill: %v\n", err)
		os.Exit(1)
	}
}

func run(days int, startStr, endStr string) error {
	start, end, err := resolveRange(days, startStr, endStr)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: "console",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	logging.Info().
		Str("start", start.Format("2006-01-02")).
		Str("end", end.Format("2006-01-02")).
		Msg("Backfill starting")

	report, err := aggregate.New(db).Backfill(ctx, start, end)
	if err != nil {
		return fmt.Errorf("backfill interrupted: %w", err)
	}

	for _, day := range report.Days {
		logging.Info().
			Str("date", day.Date.Format("2006-01-02")).
			Int("subjects", day.Subjects).
			Int("created", day.Created).
			Int("updated", day.Updated).
			Msg("Day recomputed")
	}

	if len(report.FailedDays) > 0 {
		for _, day := range report.FailedDays {
			logging.Error().
				Str("date", day.Format("2006-01-02")).
				Msg("Day failed")
		}
		return fmt.Errorf("%d of %d days failed",
			len(report.FailedDays), len(report.Days)+len(report.FailedDays))
	}

	logging.Info().Int("days", len(report.Days)).Msg("Backfill complete")
	return nil
}

// resolveRange turns the flags into an inclusive UTC day range.
func resolveRange(days int, startStr, endStr string) (time.Time, time.Time, error) {
	switch {
	case days > 0 && (startStr != "" || endStr != ""):
		return time.Time{}, time.Time{}, fmt.Errorf("-days and -start/-end are mutually exclusive")
	case days > 0:
		end := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
		return end.AddDate(0, 0, -(days - 1)), end, nil
	case startStr != "" && endStr != "":
		start, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -start: %w", err)
		}
		end, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -end: %w", err)
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("-end is before -start")
		}
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("specify -days N or both -start and -end")
	}
}
