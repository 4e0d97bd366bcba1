// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InteractionKind is the closed set of user interactions tracked against a
// listing. Kinds are classified once at the capture boundary; the pipeline
// never re-derives them from request shape.
type InteractionKind string

const (
	KindView     InteractionKind = "view"
	KindFavorite InteractionKind = "favorite"
	KindShare    InteractionKind = "share"
	KindInquiry  InteractionKind = "inquiry"
)

// Kinds lists every interaction kind in counter-vector order.
var Kinds = []InteractionKind{KindView, KindFavorite, KindShare, KindInquiry}

// Valid reports whether k is a known interaction kind.
func (k InteractionKind) Valid() bool {
	switch k {
	case KindView, KindFavorite, KindShare, KindInquiry:
		return true
	}
	return false
}

// ParseInteractionKind converts a wire string into an InteractionKind.
func ParseInteractionKind(s string) (InteractionKind, error) {
	k := InteractionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown interaction kind %q", s)
	}
	return k, nil
}

// InteractionEvent is a single timestamped user action against a property.
// Events are append-only: created by the recorder, never updated, and kept
// at least until the day they fall on has been aggregated.
//
// Actor semantics: SessionToken is always populated (the recorder mints one
// when the capture carries none), UserID additionally identifies
// authenticated actors. An event with a nil UserID is anonymous.
type InteractionEvent struct {
	ID           uuid.UUID       `json:"id"`
	PropertyID   int64           `json:"property_id"`
	UserID       *int64          `json:"user_id,omitempty"`
	SessionToken string          `json:"session_token,omitempty"`
	Kind         InteractionKind `json:"kind"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// Anonymous reports whether the event was produced by an unauthenticated
// actor.
func (e *InteractionEvent) Anonymous() bool {
	return e.UserID == nil
}
