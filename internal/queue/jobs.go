// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Package queue carries the background jobs and domain events of the
// interaction pipeline over NATS JetStream via Watermill. Delivery is
// at-least-once; every consumer in this module is idempotent.
package queue

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Topics. Job subjects carry work orders; event subjects carry domain facts
// consumed by the notification outbox.
const (
	TopicWatermark = "jobs.watermark"
	TopicAggregate = "jobs.aggregate"
	TopicPoison    = "jobs.poison"

	TopicPropertyCreated = "events.property.created"
	TopicAgentAssigned   = "events.property.agent_assigned"
	TopicInquiryReceived = "events.property.inquiry"
)

// StreamSubjects are the subjects the JOBS stream captures.
var StreamSubjects = []string{"jobs.>", "events.>"}

// WatermarkJob orders the watermark worker to stamp one image.
type WatermarkJob struct {
	ImageID    uuid.UUID `json:"image_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// AggregateJob orders the aggregation engine to recount one calendar day.
// Date is interpreted at UTC midnight; any time-of-day is discarded.
type AggregateJob struct {
	Date       time.Time `json:"date"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// PropertyCreatedEvent announces a newly published listing.
type PropertyCreatedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	PropertyID int64     `json:"property_id"`
	Title      string    `json:"title"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AgentAssignedEvent announces an agent taking over a listing.
type AgentAssignedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	PropertyID int64     `json:"property_id"`
	AgentName  string    `json:"agent_name"`
	OccurredAt time.Time `json:"occurred_at"`
}

// InquiryReceivedEvent announces a visitor inquiry on a listing.
type InquiryReceivedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	PropertyID int64     `json:"property_id"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewMessage serializes a payload into a Watermill message with a fresh UUID.
func NewMessage(payload any) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return message.NewMessage(uuid.NewString(), data), nil
}

// Decode unmarshals a message payload into out. A decode failure means the
// payload can never succeed; callers ack and drop instead of retrying.
func Decode(msg *message.Message, out any) error {
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		return fmt.Errorf("decode message %s: %w", msg.UUID, err)
	}
	return nil
}
