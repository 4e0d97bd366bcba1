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

// InsertNotification writes a notification row keyed by the originating
// event's ID. A redelivered event hits the unique constraint and becomes a
// no-op; the return value reports whether a row was actually written.
func (db *DB) InsertNotification(ctx context.Context, n *models.Notification) (bool, error) {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO notifications (id, event_id, event_type, title, message)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		n.ID, n.EventID, n.EventType, n.Title, n.Message)
	metrics.ObserveDBQuery("insert", "notifications", start, err)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notification rows affected: %w", err)
	}
	return rows == 1, nil
}

// CountNotifications returns the number of stored notifications, optionally
// filtered by event type. An empty eventType counts everything.
func (db *DB) CountNotifications(ctx context.Context, eventType string) (int64, error) {
	start := time.Now()
	var (
		n   int64
		err error
	)
	if eventType == "" {
		err = db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM notifications`).Scan(&n)
	} else {
		err = db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM notifications WHERE event_type = ?`, eventType).Scan(&n)
	}
	metrics.ObserveDBQuery("select", "notifications", start, err)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}
