// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Package outbox turns domain events from the queue into stored in-app
// notifications. It is a plain queue consumer: publishers emit facts and
// never wait on notification delivery, and redelivered events collapse on
// the event ID.
package outbox

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/castminster/propertypulse/internal/logging"
	"github.com/castminster/propertypulse/internal/metrics"
	"github.com/castminster/propertypulse/internal/models"
	"github.com/castminster/propertypulse/internal/queue"
)

// NotificationStore is the persistence surface the consumer needs.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) (bool, error)
}

// Consumer writes notifications for property domain events.
type Consumer struct {
	store NotificationStore
}

// New creates a Consumer.
func New(store NotificationStore) *Consumer {
	return &Consumer{store: store}
}

// PropertyCreatedHandler consumes property.created events.
func (c *Consumer) PropertyCreatedHandler() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var ev queue.PropertyCreatedEvent
		if err := queue.Decode(msg, &ev); err != nil {
			logging.Error().Err(err).Str("message_uuid", msg.UUID).
				Msg("Dropping malformed property.created event")
			return nil
		}
		return c.write(msg.Context(), ev.EventID, "property.created",
			"New listing published",
			fmt.Sprintf("Listing %q (#%d) is now live.", ev.Title, ev.PropertyID))
	}
}

// AgentAssignedHandler consumes property.agent_assigned events.
func (c *Consumer) AgentAssignedHandler() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var ev queue.AgentAssignedEvent
		if err := queue.Decode(msg, &ev); err != nil {
			logging.Error().Err(err).Str("message_uuid", msg.UUID).
				Msg("Dropping malformed agent_assigned event")
			return nil
		}
		return c.write(msg.Context(), ev.EventID, "property.agent_assigned",
			"Agent assigned",
			fmt.Sprintf("%s now manages listing #%d.", ev.AgentName, ev.PropertyID))
	}
}

// InquiryReceivedHandler consumes property.inquiry events.
func (c *Consumer) InquiryReceivedHandler() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var ev queue.InquiryReceivedEvent
		if err := queue.Decode(msg, &ev); err != nil {
			logging.Error().Err(err).Str("message_uuid", msg.UUID).
				Msg("Dropping malformed inquiry event")
			return nil
		}
		return c.write(msg.Context(), ev.EventID, "property.inquiry",
			"New inquiry",
			fmt.Sprintf("A visitor asked about listing #%d.", ev.PropertyID))
	}
}

// write persists one notification. An insert error propagates so the event
// is redelivered; a duplicate event ID is counted and dropped.
func (c *Consumer) write(ctx context.Context, eventID uuid.UUID, eventType, title, body string) error {
	n := &models.Notification{
		ID:        uuid.New(),
		EventID:   eventID,
		EventType: eventType,
		Title:     title,
		Message:   body,
	}
	written, err := c.store.InsertNotification(ctx, n)
	if err != nil {
		return fmt.Errorf("write notification for event %s: %w", eventID, err)
	}
	if !written {
		metrics.NotificationsDeduplicated.Inc()
		logging.Debug().
			Str("event_id", eventID.String()).
			Str("event_type", eventType).
			Msg("Duplicate event, notification already written")
		return nil
	}
	metrics.NotificationsWritten.WithLabelValues(eventType).Inc()
	return nil
}
