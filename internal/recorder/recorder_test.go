// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/castminster/propertypulse/internal/models"
	"github.com/castminster/propertypulse/internal/sessions"
)

type fakeEventStore struct {
	events     []*models.InteractionEvent
	properties map[int64]bool
	insertErr  error
	existsErr  error
}

func (f *fakeEventStore) InsertInteractionEvent(_ context.Context, ev *models.InteractionEvent) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEventStore) PropertyExists(_ context.Context, propertyID int64) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.properties[propertyID], nil
}

type fakeSessionStore struct {
	minted  int
	touched []string
	mintErr error
}

func (f *fakeSessionStore) Mint(_ context.Context) (string, error) {
	if f.mintErr != nil {
		return "", f.mintErr
	}
	f.minted++
	return "minted-token", nil
}

func (f *fakeSessionStore) Touch(_ context.Context, token string) error {
	f.touched = append(f.touched, token)
	return nil
}

func (f *fakeSessionStore) Close() error { return nil }

var _ sessions.Store = (*fakeSessionStore)(nil)

func TestRecordStoresEvent(t *testing.T) {
	store := &fakeEventStore{properties: map[int64]bool{5: true}}
	sess := &fakeSessionStore{}
	r := New(store, sess)

	token := r.Record(context.Background(), Capture{
		PropertyID:   5,
		SessionToken: "existing",
		Kind:         models.KindView,
		OccurredAt:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	})

	if token != "existing" {
		t.Errorf("expected caller's token back, got %q", token)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(store.events))
	}
	ev := store.events[0]
	if ev.PropertyID != 5 || ev.Kind != models.KindView || ev.SessionToken != "existing" {
		t.Errorf("stored event wrong: %+v", ev)
	}
}

func TestRecordMintsTokenForAnonymous(t *testing.T) {
	store := &fakeEventStore{properties: map[int64]bool{5: true}}
	sess := &fakeSessionStore{}
	r := New(store, sess)

	token := r.Record(context.Background(), Capture{
		PropertyID: 5,
		Kind:       models.KindFavorite,
	})

	if token != "minted-token" {
		t.Errorf("expected minted token, got %q", token)
	}
	if sess.minted != 1 {
		t.Errorf("expected 1 mint, got %d", sess.minted)
	}
	if len(store.events) != 1 || store.events[0].SessionToken != "minted-token" {
		t.Errorf("expected event attributed to minted token, got %+v", store.events)
	}
}

func TestRecordMintsTokenForAuthenticatedWithoutOne(t *testing.T) {
	store := &fakeEventStore{properties: map[int64]bool{5: true}}
	sess := &fakeSessionStore{}
	r := New(store, sess)

	userID := int64(42)
	token := r.Record(context.Background(), Capture{
		PropertyID: 5,
		UserID:     &userID,
		Kind:       models.KindView,
	})

	if token != "minted-token" {
		t.Errorf("expected minted token, got %q", token)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(store.events))
	}
	ev := store.events[0]
	if ev.UserID == nil || *ev.UserID != 42 || ev.SessionToken != "minted-token" {
		t.Errorf("expected event with both user and session token, got %+v", ev)
	}
	if ev.Anonymous() {
		t.Error("event with a user must not be anonymous")
	}
}

func TestRecordUnknownPropertyDropsSilently(t *testing.T) {
	store := &fakeEventStore{properties: map[int64]bool{}}
	r := New(store, &fakeSessionStore{})

	token := r.Record(context.Background(), Capture{
		PropertyID:   999,
		SessionToken: "sess",
		Kind:         models.KindView,
	})

	if token != "sess" {
		t.Errorf("expected token back even on drop, got %q", token)
	}
	if len(store.events) != 0 {
		t.Errorf("expected no events for unknown property, got %d", len(store.events))
	}
}

func TestRecordInvalidKindDropsSilently(t *testing.T) {
	store := &fakeEventStore{properties: map[int64]bool{5: true}}
	r := New(store, &fakeSessionStore{})

	r.Record(context.Background(), Capture{
		PropertyID:   5,
		SessionToken: "sess",
		Kind:         "teleport",
	})

	if len(store.events) != 0 {
		t.Errorf("expected no events for invalid kind, got %d", len(store.events))
	}
}

func TestRecordStoreFailureNeverPropagates(t *testing.T) {
	store := &fakeEventStore{
		properties: map[int64]bool{5: true},
		insertErr:  errors.New("disk full"),
	}
	r := New(store, &fakeSessionStore{})

	// Must not panic and must still hand the token back.
	token := r.Record(context.Background(), Capture{
		PropertyID:   5,
		SessionToken: "sess",
		Kind:         models.KindView,
	})
	if token != "sess" {
		t.Errorf("expected token despite insert failure, got %q", token)
	}
}

func TestRecordMintFailureFallsBackToEphemeral(t *testing.T) {
	store := &fakeEventStore{properties: map[int64]bool{5: true}}
	sess := &fakeSessionStore{mintErr: errors.New("badger closed")}
	r := New(store, sess)

	token := r.Record(context.Background(), Capture{
		PropertyID: 5,
		Kind:       models.KindView,
	})

	if token == "" {
		t.Error("expected an ephemeral token despite mint failure")
	}
	if len(store.events) != 1 {
		t.Fatalf("expected event still recorded, got %d", len(store.events))
	}
	if store.events[0].SessionToken != token {
		t.Error("expected event attributed to the returned ephemeral token")
	}
}
