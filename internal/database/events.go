// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/castminster/propertypulse/internal/metrics"
	"github.com/castminster/propertypulse/internal/models"
)

// InsertInteractionEvent appends a raw interaction event. Duplicate IDs are
// ignored so redelivered captures do not double-record.
func (db *DB) InsertInteractionEvent(ctx context.Context, ev *models.InteractionEvent) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO interaction_events (id, property_id, user_id, session_token, kind, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.PropertyID, ev.UserID, ev.SessionToken, string(ev.Kind), ev.OccurredAt.UTC())
	metrics.ObserveDBQuery("insert", "interaction_events", start, err)
	if err != nil {
		return fmt.Errorf("insert interaction event: %w", err)
	}
	return nil
}

// PropertyExists reports whether the referenced property row is present.
func (db *DB) PropertyExists(ctx context.Context, propertyID int64) (bool, error) {
	start := time.Now()
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM properties WHERE id = ?)`, propertyID).Scan(&exists)
	metrics.ObserveDBQuery("select", "properties", start, err)
	if err != nil {
		return false, fmt.Errorf("check property exists: %w", err)
	}
	return exists, nil
}

// InsertProperty registers a property row. Used by fixtures and the ingest
// surface; duplicate IDs are ignored.
func (db *DB) InsertProperty(ctx context.Context, id int64, title string) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO properties (id, title) VALUES (?, ?)
		ON CONFLICT (id) DO NOTHING`, id, title)
	metrics.ObserveDBQuery("insert", "properties", start, err)
	if err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

// CountEventsByKind returns, for every property with at least one event in
// [dayStart, dayEnd), the per-kind counts. A single grouped query gives the
// aggregation engine one consistent snapshot of the window.
func (db *DB) CountEventsByKind(ctx context.Context, dayStart, dayEnd time.Time) (map[int64]models.CounterVector, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT property_id, kind, COUNT(*)
		FROM interaction_events
		WHERE occurred_at >= ? AND occurred_at < ?
		GROUP BY property_id, kind`,
		dayStart.UTC(), dayEnd.UTC())
	metrics.ObserveDBQuery("select", "interaction_events", start, err)
	if err != nil {
		return nil, fmt.Errorf("count events by kind: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]models.CounterVector)
	for rows.Next() {
		var (
			propertyID int64
			kind       string
			n          int64
		)
		if err := rows.Scan(&propertyID, &kind, &n); err != nil {
			return nil, fmt.Errorf("scan event count row: %w", err)
		}
		vec := counts[propertyID]
		vec.Add(models.InteractionKind(kind), n)
		counts[propertyID] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event count rows: %w", err)
	}
	return counts, nil
}

// PruneEventsBefore deletes raw events older than the cutoff and returns the
// number of rows removed. Daily stats are untouched; they are the durable
// record once a day has been aggregated.
func (db *DB) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM interaction_events WHERE occurred_at < ?`, cutoff.UTC())
	metrics.ObserveDBQuery("delete", "interaction_events", start, err)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune events rows affected: %w", err)
	}
	return n, nil
}
