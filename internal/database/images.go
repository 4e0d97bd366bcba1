// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/castminster/propertypulse/internal/metrics"
	"github.com/castminster/propertypulse/internal/models"
)

// ErrImageNotFound is returned when no image row matches the requested ID.
var ErrImageNotFound = errors.New("image not found")

// GetImage loads an image row including its byte payload.
func (db *DB) GetImage(ctx context.Context, id uuid.UUID) (*models.PropertyImage, error) {
	start := time.Now()
	var img models.PropertyImage
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, property_id, bytes, content_type, storage_kind, is_watermarked, created_at, updated_at
		FROM property_images WHERE id = ?`, id).Scan(
		&img.ID, &img.PropertyID, &img.Bytes, &img.ContentType,
		&img.StorageKind, &img.IsWatermarked, &img.CreatedAt, &img.UpdatedAt)
	metrics.ObserveDBQuery("select", "property_images", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &img, nil
}

// InsertImage stores a new image row with is_watermarked false.
func (db *DB) InsertImage(ctx context.Context, img *models.PropertyImage) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO property_images (id, property_id, bytes, content_type, storage_kind, is_watermarked)
		VALUES (?, ?, ?, ?, ?, FALSE)`,
		img.ID, img.PropertyID, img.Bytes, img.ContentType, img.StorageKind)
	metrics.ObserveDBQuery("insert", "property_images", start, err)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// ReplaceWatermarked swaps in the watermarked bytes and sets the flag in one
// conditional update. The WHERE clause guards against a concurrent worker: if
// another process already marked the row, zero rows change and the caller's
// output is discarded rather than applied twice.
func (db *DB) ReplaceWatermarked(ctx context.Context, id uuid.UUID, watermarked []byte) (bool, error) {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE property_images
		SET bytes = ?, is_watermarked = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_watermarked = FALSE`,
		watermarked, id)
	metrics.ObserveDBQuery("update", "property_images", start, err)
	if err != nil {
		return false, fmt.Errorf("replace watermarked image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("replace watermarked image rows affected: %w", err)
	}
	return n == 1, nil
}
