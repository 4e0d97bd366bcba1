// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package models

import (
	"time"

	"github.com/google/uuid"
)

// Storage kinds for property images. Only locally stored images are eligible
// for watermarking; remote objects are immutable from this service's view.
const (
	StorageLocal  = "local"
	StorageRemote = "remote"
)

// PropertyImage is a listing photo owned by the watermark pipeline once
// uploaded. The store keeps exactly one current byte payload per image; the
// watermark worker replaces the bytes and flips IsWatermarked in a single
// persistence step, so a reader never observes one without the other.
//
// IsWatermarked doubles as the idempotence guard against duplicate job
// delivery: once true, the worker never reprocesses the image. The guard is
// enforced as a conditional update in the store, not a read-then-write check.
type PropertyImage struct {
	ID            uuid.UUID `json:"id"`
	PropertyID    int64     `json:"property_id"`
	Bytes         []byte    `json:"-"`
	ContentType   string    `json:"content_type"`
	StorageKind   string    `json:"storage_kind"` // "local" or "remote"
	IsWatermarked bool      `json:"is_watermarked"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Notification is an in-app notification row written by the outbox consumer
// in response to a domain event. EventID carries the originating event's
// identifier to keep writes idempotent under redelivery.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	EventType string    `json:"event_type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
