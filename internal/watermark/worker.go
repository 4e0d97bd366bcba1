// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package watermark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/castminster/propertypulse/internal/config"
	"github.com/castminster/propertypulse/internal/database"
	"github.com/castminster/propertypulse/internal/logging"
	"github.com/castminster/propertypulse/internal/metrics"
	"github.com/castminster/propertypulse/internal/models"
	"github.com/castminster/propertypulse/internal/queue"
)

// ImageStore is the persistence surface the worker needs.
type ImageStore interface {
	GetImage(ctx context.Context, id uuid.UUID) (*models.PropertyImage, error)
	ReplaceWatermarked(ctx context.Context, id uuid.UUID, watermarked []byte) (bool, error)
}

// Worker processes watermark jobs. Jobs that cannot ever succeed (missing
// record, already stamped, remote storage, unusable input) are acked and
// skipped; only transient store failures propagate and trigger redelivery.
type Worker struct {
	store ImageStore
	opts  Options
	asset []byte
}

// NewWorker loads the overlay asset and builds a worker. A missing asset is
// not fatal here: jobs are skipped until the asset appears on a restart, the
// same way uploads proceed when no watermark is configured.
func NewWorker(store ImageStore, cfg config.WatermarkConfig) *Worker {
	opts := Options{
		Anchor:      Anchor(cfg.Anchor),
		SizeRatio:   cfg.SizeRatio,
		Opacity:     cfg.Opacity,
		MarginRatio: cfg.MarginRatio,
		JPEGQuality: cfg.JPEGQuality,
	}

	var asset []byte
	if cfg.AssetPath != "" {
		data, err := os.ReadFile(cfg.AssetPath)
		if err != nil {
			logging.Warn().Err(err).
				Str("path", cfg.AssetPath).
				Msg("Watermark asset unavailable, jobs will be skipped")
		} else {
			asset = data
		}
	}

	return &Worker{store: store, opts: opts, asset: asset}
}

// Process stamps the image named by the job. A nil return means the job is
// finished, whether stamped or skipped; an error means the job should be
// redelivered.
func (w *Worker) Process(ctx context.Context, job queue.WatermarkJob) error {
	start := time.Now()
	metrics.WatermarkAttempts.Inc()

	if len(w.asset) == 0 {
		w.skip(job, "missing_asset")
		return nil
	}

	img, err := w.store.GetImage(ctx, job.ImageID)
	if errors.Is(err, database.ErrImageNotFound) {
		w.skip(job, "missing_record")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load image %s: %w", job.ImageID, err)
	}

	if img.IsWatermarked {
		w.skip(job, "already_watermarked")
		return nil
	}
	if img.StorageKind != models.StorageLocal {
		w.skip(job, "remote_storage")
		return nil
	}
	if len(img.Bytes) == 0 {
		w.skip(job, "empty_payload")
		return nil
	}

	stamped, err := Compose(img.Bytes, w.asset, w.opts)
	if err != nil {
		// Undecodable input can never succeed on retry.
		metrics.WatermarkTerminalFailures.Inc()
		logging.Error().Err(err).
			Str("image_id", job.ImageID.String()).
			Msg("Watermark compositing failed permanently")
		return nil
	}

	applied, err := w.store.ReplaceWatermarked(ctx, job.ImageID, stamped)
	if err != nil {
		return fmt.Errorf("store watermarked image %s: %w", job.ImageID, err)
	}
	if !applied {
		// Another worker won the conditional update.
		w.skip(job, "already_watermarked")
		return nil
	}

	metrics.WatermarkProcessed.Inc()
	metrics.WatermarkDuration.Observe(time.Since(start).Seconds())
	logging.Info().
		Str("image_id", job.ImageID.String()).
		Int64("property_id", img.PropertyID).
		Dur("elapsed", time.Since(start)).
		Msg("Image watermarked")
	return nil
}

func (w *Worker) skip(job queue.WatermarkJob, reason string) {
	metrics.WatermarkSkips.WithLabelValues(reason).Inc()
	logging.Debug().
		Str("image_id", job.ImageID.String()).
		Str("reason", reason).
		Msg("Skipping watermark job")
}

// Handler adapts the worker to a router consumer. Malformed payloads are
// acked and dropped.
func (w *Worker) Handler() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var job queue.WatermarkJob
		if err := queue.Decode(msg, &job); err != nil {
			logging.Error().Err(err).
				Str("message_uuid", msg.UUID).
				Msg("Dropping malformed watermark job")
			return nil
		}
		return w.Process(msg.Context(), job)
	}
}
