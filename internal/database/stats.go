// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/castminster/propertypulse/internal/metrics"
	"github.com/castminster/propertypulse/internal/models"
)

// UpsertResult reports whether an upsert created a new row or replaced an
// existing one.
type UpsertResult int

const (
	UpsertCreated UpsertResult = iota
	UpsertUpdated
)

// UpsertDailyStat writes the full counter vector for (propertyID, date) in a
// single statement. On conflict every counter column is overwritten, so a
// recount that produced zeros for a kind clears any stale value. The row's
// revision increments on every overwrite; the RETURNING clause makes the
// created-vs-updated report correct even under concurrent writers.
func (db *DB) UpsertDailyStat(ctx context.Context, propertyID int64, date time.Time, counts models.CounterVector) (UpsertResult, error) {
	day := date.UTC().Truncate(24 * time.Hour)

	start := time.Now()
	var revision int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO daily_stats (property_id, stat_date, views, favorites, shares, inquiries, updated_at, revision)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, 1)
		ON CONFLICT (property_id, stat_date) DO UPDATE SET
			views = EXCLUDED.views,
			favorites = EXCLUDED.favorites,
			shares = EXCLUDED.shares,
			inquiries = EXCLUDED.inquiries,
			updated_at = now(),
			revision = daily_stats.revision + 1
		RETURNING revision`,
		propertyID, day, counts.Views, counts.Favorites, counts.Shares, counts.Inquiries).Scan(&revision)
	metrics.ObserveDBQuery("upsert", "daily_stats", start, err)
	if err != nil {
		return UpsertCreated, fmt.Errorf("upsert daily stat: %w", err)
	}

	if revision > 1 {
		metrics.AggregationStatsUpserted.WithLabelValues("updated").Inc()
		return UpsertUpdated, nil
	}
	metrics.AggregationStatsUpserted.WithLabelValues("created").Inc()
	return UpsertCreated, nil
}

// LastAggregatedDate returns the most recent day with a daily stat row. ok is
// false when no day has been aggregated yet. The scheduler uses this to keep
// retention pruning behind the aggregation frontier.
func (db *DB) LastAggregatedDate(ctx context.Context) (last time.Time, ok bool, err error) {
	start := time.Now()
	var max sql.NullTime
	err = db.conn.QueryRowContext(ctx,
		`SELECT MAX(stat_date) FROM daily_stats`).Scan(&max)
	metrics.ObserveDBQuery("select", "daily_stats", start, err)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last aggregated date: %w", err)
	}
	if !max.Valid {
		return time.Time{}, false, nil
	}
	return max.Time.UTC(), true, nil
}

// DailyStatsRange returns per-day stats for one property over [startDate,
// endDate] inclusive, ordered by date. Days with no row are absent.
func (db *DB) DailyStatsRange(ctx context.Context, propertyID int64, startDate, endDate time.Time) ([]models.DailyStat, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT property_id, stat_date, views, favorites, shares, inquiries, updated_at
		FROM daily_stats
		WHERE property_id = ? AND stat_date >= ? AND stat_date <= ?
		ORDER BY stat_date`,
		propertyID,
		startDate.UTC().Truncate(24*time.Hour),
		endDate.UTC().Truncate(24*time.Hour))
	metrics.ObserveDBQuery("select", "daily_stats", start, err)
	if err != nil {
		return nil, fmt.Errorf("query daily stats range: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyStat
	for rows.Next() {
		var st models.DailyStat
		if err := rows.Scan(&st.PropertyID, &st.Date,
			&st.Counts.Views, &st.Counts.Favorites, &st.Counts.Shares, &st.Counts.Inquiries,
			&st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan daily stat row: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily stat rows: %w", err)
	}
	return stats, nil
}

// PlatformTotals returns the sum of every counter across all properties and
// days, plus the distinct property and day counts.
func (db *DB) PlatformTotals(ctx context.Context) (models.StatTotals, error) {
	start := time.Now()
	var totals models.StatTotals
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(views), 0),
			COALESCE(SUM(favorites), 0),
			COALESCE(SUM(shares), 0),
			COALESCE(SUM(inquiries), 0),
			COUNT(DISTINCT property_id),
			COUNT(DISTINCT stat_date)
		FROM daily_stats`).Scan(
		&totals.Counts.Views, &totals.Counts.Favorites,
		&totals.Counts.Shares, &totals.Counts.Inquiries,
		&totals.Properties, &totals.Days)
	metrics.ObserveDBQuery("select", "daily_stats", start, err)
	if err != nil {
		return models.StatTotals{}, fmt.Errorf("query platform totals: %w", err)
	}
	return totals, nil
}
