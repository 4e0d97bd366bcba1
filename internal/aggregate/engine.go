// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Package aggregate rolls raw interaction events up into per-property daily
// statistics. A run recounts one calendar day from scratch and overwrites
// the stat rows it touches, so replays and overlapping runs converge on the
// same totals.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/castminster/propertypulse/internal/database"
	"github.com/castminster/propertypulse/internal/logging"
	"github.com/castminster/propertypulse/internal/metrics"
	"github.com/castminster/propertypulse/internal/models"
	"github.com/castminster/propertypulse/internal/queue"
)

// StatStore is the persistence surface the engine needs.
type StatStore interface {
	CountEventsByKind(ctx context.Context, dayStart, dayEnd time.Time) (map[int64]models.CounterVector, error)
	UpsertDailyStat(ctx context.Context, propertyID int64, date time.Time, counts models.CounterVector) (database.UpsertResult, error)
}

// Engine recomputes daily statistics from the event store.
type Engine struct {
	store StatStore
}

// New creates an Engine.
func New(store StatStore) *Engine {
	return &Engine{store: store}
}

// Aggregate recounts the calendar day containing date (UTC) and upserts one
// stat row per property seen that day. The snapshot comes from a single
// grouped query, so every upserted vector reflects the same instant. Any
// failure aborts the whole day; rerunning after a partial write is safe
// because upserts overwrite.
func (e *Engine) Aggregate(ctx context.Context, date time.Time) (*models.AggregationReport, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	start := time.Now()

	counts, err := e.store.CountEventsByKind(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		metrics.AggregationRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("snapshot events for %s: %w", day.Format("2006-01-02"), err)
	}

	report := &models.AggregationReport{Date: day}
	// Deterministic order keeps partial-failure replays predictable.
	subjects := make([]int64, 0, len(counts))
	for propertyID := range counts {
		subjects = append(subjects, propertyID)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })

	for _, propertyID := range subjects {
		res, err := e.store.UpsertDailyStat(ctx, propertyID, day, counts[propertyID])
		if err != nil {
			metrics.AggregationRuns.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("upsert stats for property %d on %s: %w",
				propertyID, day.Format("2006-01-02"), err)
		}
		switch res {
		case database.UpsertCreated:
			report.Created++
		case database.UpsertUpdated:
			report.Updated++
		}
		report.Subjects++
	}

	metrics.AggregationRuns.WithLabelValues("succeeded").Inc()
	metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	logging.Info().
		Str("date", day.Format("2006-01-02")).
		Int("subjects", report.Subjects).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Dur("elapsed", time.Since(start)).
		Msg("Daily aggregation complete")
	return report, nil
}

// Backfill recounts every day in [startDate, endDate] inclusive. Days are
// isolated: one day's failure is recorded and the walk continues. The walk
// stops early only when ctx is canceled.
func (e *Engine) Backfill(ctx context.Context, startDate, endDate time.Time) (*models.BackfillReport, error) {
	first := startDate.UTC().Truncate(24 * time.Hour)
	last := endDate.UTC().Truncate(24 * time.Hour)
	if last.Before(first) {
		return nil, fmt.Errorf("backfill range inverted: %s after %s",
			first.Format("2006-01-02"), last.Format("2006-01-02"))
	}

	report := &models.BackfillReport{Start: first, End: last}
	for day := first; !day.After(last); day = day.Add(24 * time.Hour) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		dayReport, err := e.Aggregate(ctx, day)
		if err != nil {
			logging.Error().Err(err).
				Str("date", day.Format("2006-01-02")).
				Msg("Backfill day failed, continuing")
			report.FailedDays = append(report.FailedDays, day)
			continue
		}
		report.Days = append(report.Days, *dayReport)
	}
	return report, nil
}

// Handler adapts the engine to a router consumer for aggregate jobs.
// Malformed payloads are acked and dropped; aggregation errors propagate so
// the day is redelivered.
func (e *Engine) Handler() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var job queue.AggregateJob
		if err := queue.Decode(msg, &job); err != nil {
			logging.Error().Err(err).
				Str("message_uuid", msg.UUID).
				Msg("Dropping malformed aggregate job")
			return nil
		}
		_, err := e.Aggregate(msg.Context(), job.Date)
		return err
	}
}
