// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Package recorder captures listing interaction events. Recording is strictly
// best-effort: no failure in here may surface to the caller serving the
// visitor, so every error path degrades to a logged drop.
package recorder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/castminster/propertypulse/internal/logging"
	"github.com/castminster/propertypulse/internal/metrics"
	"github.com/castminster/propertypulse/internal/models"
	"github.com/castminster/propertypulse/internal/sessions"
)

// EventStore is the persistence surface the recorder needs.
type EventStore interface {
	InsertInteractionEvent(ctx context.Context, ev *models.InteractionEvent) error
	PropertyExists(ctx context.Context, propertyID int64) (bool, error)
}

// Capture is one observed interaction as reported by the serving layer.
type Capture struct {
	PropertyID   int64
	UserID       *int64
	SessionToken string
	Kind         models.InteractionKind
	OccurredAt   time.Time
}

// Recorder turns captures into stored interaction events, minting anonymous
// session tokens as needed.
type Recorder struct {
	store    EventStore
	sessions sessions.Store
}

// New creates a Recorder.
func New(store EventStore, sess sessions.Store) *Recorder {
	return &Recorder{store: store, sessions: sess}
}

// Record persists one interaction event. It always returns the session token
// the event was attributed to (the caller's token, or a freshly minted one
// for anonymous visitors without a token) and never returns an error: bad
// input, a missing property, or a storage failure all end as counted drops.
func (r *Recorder) Record(ctx context.Context, c Capture) string {
	token := r.ensureSession(ctx, c)

	if !c.Kind.Valid() {
		metrics.InteractionsDropped.WithLabelValues("invalid_kind").Inc()
		logging.Warn().
			Str("kind", string(c.Kind)).
			Int64("property_id", c.PropertyID).
			Msg("Dropping interaction with unknown kind")
		return token
	}

	exists, err := r.store.PropertyExists(ctx, c.PropertyID)
	if err != nil {
		metrics.InteractionsDropped.WithLabelValues("store_error").Inc()
		logging.Error().Err(err).
			Int64("property_id", c.PropertyID).
			Msg("Dropping interaction: property existence check failed")
		return token
	}
	if !exists {
		metrics.InteractionsDropped.WithLabelValues("unknown_property").Inc()
		logging.Debug().
			Int64("property_id", c.PropertyID).
			Msg("Dropping interaction for unknown property")
		return token
	}

	occurred := c.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	ev := &models.InteractionEvent{
		ID:           uuid.New(),
		PropertyID:   c.PropertyID,
		UserID:       c.UserID,
		SessionToken: token,
		Kind:         c.Kind,
		OccurredAt:   occurred.UTC(),
	}
	if err := r.store.InsertInteractionEvent(ctx, ev); err != nil {
		metrics.InteractionsDropped.WithLabelValues("store_error").Inc()
		logging.Error().Err(err).
			Int64("property_id", c.PropertyID).
			Str("kind", string(c.Kind)).
			Msg("Dropping interaction: insert failed")
		return token
	}

	metrics.InteractionsRecorded.WithLabelValues(string(c.Kind)).Inc()
	return token
}

// ensureSession returns the capture's token, minting one when absent. A mint
// failure falls back to an unstored random token so the caller still gets a
// cookie value and the event remains attributable within this response.
func (r *Recorder) ensureSession(ctx context.Context, c Capture) string {
	if c.SessionToken != "" {
		if err := r.sessions.Touch(ctx, c.SessionToken); err != nil &&
			err != sessions.ErrSessionNotFound {
			logging.Warn().Err(err).Msg("Session touch failed")
		}
		return c.SessionToken
	}

	token, err := r.sessions.Mint(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Session mint failed, using ephemeral token")
		return uuid.NewString()
	}
	return token
}
