// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package aggregate

import (
	"context"
	"time"

	"github.com/castminster/propertypulse/internal/config"
	"github.com/castminster/propertypulse/internal/logging"
	"github.com/castminster/propertypulse/internal/queue"
)

// JobPublisher enqueues aggregate jobs.
type JobPublisher interface {
	PublishJSON(ctx context.Context, topic string, payload any) error
}

// Pruner removes raw events past the retention window. LastAggregatedDate
// bounds the prune cutoff: events stay until the day they fall on has a
// daily stat row, however old they get.
type Pruner interface {
	PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	LastAggregatedDate(ctx context.Context) (time.Time, bool, error)
}

// Scheduler enqueues yesterday's rollup once per day at the configured hour
// and optionally prunes aged-out raw events afterwards. The actual counting
// runs on the queue consumer, so a crashed scheduler never loses a day: the
// job either made it onto the stream or the next boot enqueues it again.
type Scheduler struct {
	publisher JobPublisher
	pruner    Pruner
	cfg       config.AggregationConfig
	loc       *time.Location
	now       func() time.Time
}

// NewScheduler creates a Scheduler. pruner may be nil when retention is
// disabled.
func NewScheduler(publisher JobPublisher, pruner Pruner, cfg config.AggregationConfig, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		publisher: publisher,
		pruner:    pruner,
		cfg:       cfg,
		loc:       loc,
		now:       time.Now,
	}
}

// Run blocks until ctx is canceled, firing once per day.
func (s *Scheduler) Run(ctx context.Context) error {
	logging.Info().
		Int("hour", s.cfg.ScheduleHour).
		Str("timezone", s.loc.String()).
		Msg("Aggregation scheduler started")

	for {
		wait := time.Until(s.nextRun())
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

// nextRun returns the next ScheduleHour boundary in the configured timezone.
func (s *Scheduler) nextRun() time.Time {
	now := s.now().In(s.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.ScheduleHour, 0, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// fire enqueues yesterday's rollup and runs retention pruning.
func (s *Scheduler) fire(ctx context.Context) {
	now := s.now().In(s.loc)
	yesterday := now.AddDate(0, 0, -1)
	day := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC)

	job := queue.AggregateJob{Date: day, EnqueuedAt: s.now().UTC()}
	if err := s.publisher.PublishJSON(ctx, queue.TopicAggregate, job); err != nil {
		logging.Error().Err(err).
			Str("date", day.Format("2006-01-02")).
			Msg("Failed to enqueue daily aggregate job")
		return
	}
	logging.Info().
		Str("date", day.Format("2006-01-02")).
		Msg("Enqueued daily aggregate job")

	if s.pruner != nil && s.cfg.RetentionDays > 0 {
		s.prune(ctx, day)
	}
}

// prune deletes raw events older than the retention window, clamped so no
// event is deleted before its day has been aggregated. A stalled pipeline
// (poisoned jobs, consumer outage) freezes the cutoff at the last successful
// day instead of losing un-aggregated events to wall-clock age.
func (s *Scheduler) prune(ctx context.Context, day time.Time) {
	last, ok, err := s.pruner.LastAggregatedDate(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Event retention pruning skipped: frontier lookup failed")
		return
	}
	if !ok {
		logging.Debug().Msg("Event retention pruning skipped: no day aggregated yet")
		return
	}

	cutoff := day.AddDate(0, 0, -s.cfg.RetentionDays)
	if frontier := last.Add(24 * time.Hour); cutoff.After(frontier) {
		logging.Warn().
			Str("last_aggregated", last.Format("2006-01-02")).
			Str("retention_cutoff", cutoff.Format("2006-01-02")).
			Msg("Aggregation is behind retention; clamping prune cutoff")
		cutoff = frontier
	}

	pruned, err := s.pruner.PruneEventsBefore(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Event retention pruning failed")
		return
	}
	if pruned > 0 {
		logging.Info().
			Int64("pruned", pruned).
			Str("cutoff", cutoff.Format("2006-01-02")).
			Msg("Pruned aged-out raw events")
	}
}
