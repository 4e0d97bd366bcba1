// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/castminster/propertypulse/internal/models"
	"github.com/castminster/propertypulse/internal/queue"
)

type fakeNotificationStore struct {
	written   []*models.Notification
	seen      map[uuid.UUID]bool
	insertErr error
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{seen: make(map[uuid.UUID]bool)}
}

func (f *fakeNotificationStore) InsertNotification(_ context.Context, n *models.Notification) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if f.seen[n.EventID] {
		return false, nil
	}
	f.seen[n.EventID] = true
	f.written = append(f.written, n)
	return true, nil
}

func eventMessage(t *testing.T, payload any) *message.Message {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return message.NewMessage(uuid.NewString(), data)
}

func TestPropertyCreatedWritesNotification(t *testing.T) {
	store := newFakeNotificationStore()
	handler := New(store).PropertyCreatedHandler()

	ev := queue.PropertyCreatedEvent{
		EventID:    uuid.New(),
		PropertyID: 7,
		Title:      "Lakeside Cottage",
		OccurredAt: time.Now().UTC(),
	}
	if err := handler(eventMessage(t, ev)); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	if len(store.written) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(store.written))
	}
	n := store.written[0]
	if n.EventID != ev.EventID || n.EventType != "property.created" {
		t.Errorf("notification wrong: %+v", n)
	}
}

func TestRedeliveredEventWritesOnce(t *testing.T) {
	store := newFakeNotificationStore()
	handler := New(store).InquiryReceivedHandler()

	ev := queue.InquiryReceivedEvent{
		EventID:    uuid.New(),
		PropertyID: 7,
		Message:    "Is the garden fenced?",
	}

	if err := handler(eventMessage(t, ev)); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := handler(eventMessage(t, ev)); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}

	if len(store.written) != 1 {
		t.Errorf("expected exactly 1 notification after redelivery, got %d", len(store.written))
	}
}

func TestMalformedEventIsDropped(t *testing.T) {
	store := newFakeNotificationStore()
	handler := New(store).AgentAssignedHandler()

	msg := message.NewMessage("bad", []byte("not json"))
	if err := handler(msg); err != nil {
		t.Errorf("malformed event must be acked, got %v", err)
	}
	if len(store.written) != 0 {
		t.Error("malformed event must not produce a notification")
	}
}

func TestStoreErrorPropagatesForRetry(t *testing.T) {
	store := newFakeNotificationStore()
	store.insertErr = errors.New("disk full")
	handler := New(store).PropertyCreatedHandler()

	ev := queue.PropertyCreatedEvent{EventID: uuid.New(), PropertyID: 1, Title: "x"}
	if err := handler(eventMessage(t, ev)); err == nil {
		t.Error("expected store error to propagate so the event is redelivered")
	}
}
