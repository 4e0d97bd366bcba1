// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/castminster/propertypulse/internal/database"
	"github.com/castminster/propertypulse/internal/models"
)

type statKey struct {
	propertyID int64
	date       time.Time
}

type fakeStatStore struct {
	// events maps day start to per-property counts.
	events    map[time.Time]map[int64]models.CounterVector
	stats     map[statKey]models.CounterVector
	countErr  map[time.Time]error
	upsertErr error
	upserts   int
}

func newFakeStatStore() *fakeStatStore {
	return &fakeStatStore{
		events:   make(map[time.Time]map[int64]models.CounterVector),
		stats:    make(map[statKey]models.CounterVector),
		countErr: make(map[time.Time]error),
	}
}

func (f *fakeStatStore) CountEventsByKind(_ context.Context, dayStart, _ time.Time) (map[int64]models.CounterVector, error) {
	if err := f.countErr[dayStart]; err != nil {
		return nil, err
	}
	out := make(map[int64]models.CounterVector, len(f.events[dayStart]))
	for id, vec := range f.events[dayStart] {
		out[id] = vec
	}
	return out, nil
}

func (f *fakeStatStore) UpsertDailyStat(_ context.Context, propertyID int64, date time.Time, counts models.CounterVector) (database.UpsertResult, error) {
	if f.upsertErr != nil {
		return database.UpsertCreated, f.upsertErr
	}
	f.upserts++
	key := statKey{propertyID: propertyID, date: date}
	_, existed := f.stats[key]
	f.stats[key] = counts
	if existed {
		return database.UpsertUpdated, nil
	}
	return database.UpsertCreated, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAggregateWritesFullVectors(t *testing.T) {
	store := newFakeStatStore()
	d := day(2026, 3, 14)
	store.events[d] = map[int64]models.CounterVector{
		1: {Views: 12, Favorites: 2},
		2: {Inquiries: 1},
	}

	report, err := New(store).Aggregate(context.Background(), d.Add(9*time.Hour))
	if err != nil {
		t.Fatalf("Aggregate() failed: %v", err)
	}

	if report.Subjects != 2 || report.Created != 2 || report.Updated != 0 {
		t.Errorf("report wrong: %+v", report)
	}
	got := store.stats[statKey{propertyID: 1, date: d}]
	want := models.CounterVector{Views: 12, Favorites: 2}
	if got != want {
		// Kinds with no events must arrive as explicit zeros, not be absent.
		t.Errorf("property 1 vector = %+v, want %+v", got, want)
	}
}

func TestAggregateReplayIsIdempotent(t *testing.T) {
	store := newFakeStatStore()
	d := day(2026, 3, 14)
	store.events[d] = map[int64]models.CounterVector{1: {Views: 5}}

	engine := New(store)
	if _, err := engine.Aggregate(context.Background(), d); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first := store.stats[statKey{propertyID: 1, date: d}]

	report, err := engine.Aggregate(context.Background(), d)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.Created != 0 || report.Updated != 1 {
		t.Errorf("replay should update, not create: %+v", report)
	}
	if store.stats[statKey{propertyID: 1, date: d}] != first {
		t.Error("replay changed the stored vector")
	}
}

func TestAggregateRecountOverwritesStale(t *testing.T) {
	store := newFakeStatStore()
	d := day(2026, 3, 14)

	// First count saw favorites that a later event correction removed.
	store.events[d] = map[int64]models.CounterVector{1: {Views: 10, Favorites: 4}}
	engine := New(store)
	if _, err := engine.Aggregate(context.Background(), d); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	store.events[d] = map[int64]models.CounterVector{1: {Views: 10}}
	if _, err := engine.Aggregate(context.Background(), d); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	got := store.stats[statKey{propertyID: 1, date: d}]
	if got.Favorites != 0 {
		t.Errorf("stale favorites survived the recount: %+v", got)
	}
	if got.Views != 10 {
		t.Errorf("views wrong after recount: %+v", got)
	}
}

func TestAggregateSnapshotFailureFailsDay(t *testing.T) {
	store := newFakeStatStore()
	d := day(2026, 3, 14)
	store.countErr[d] = errors.New("query timeout")

	if _, err := New(store).Aggregate(context.Background(), d); err == nil {
		t.Error("expected snapshot failure to fail the run")
	}
	if store.upserts != 0 {
		t.Errorf("expected no upserts after snapshot failure, got %d", store.upserts)
	}
}

func TestAggregateUpsertFailureFailsDay(t *testing.T) {
	store := newFakeStatStore()
	d := day(2026, 3, 14)
	store.events[d] = map[int64]models.CounterVector{1: {Views: 1}}
	store.upsertErr = errors.New("disk full")

	if _, err := New(store).Aggregate(context.Background(), d); err == nil {
		t.Error("expected upsert failure to fail the run")
	}
}

func TestBackfillIsolatesFailingDays(t *testing.T) {
	store := newFakeStatStore()
	d1, d2, d3 := day(2026, 3, 10), day(2026, 3, 11), day(2026, 3, 12)
	store.events[d1] = map[int64]models.CounterVector{1: {Views: 1}}
	store.events[d3] = map[int64]models.CounterVector{1: {Views: 3}}
	store.countErr[d2] = errors.New("query timeout")

	report, err := New(store).Backfill(context.Background(), d1, d3)
	if err != nil {
		t.Fatalf("Backfill() failed: %v", err)
	}

	if len(report.Days) != 2 {
		t.Errorf("expected 2 successful days, got %d", len(report.Days))
	}
	if len(report.FailedDays) != 1 || !report.FailedDays[0].Equal(d2) {
		t.Errorf("expected day %s to fail, got %v", d2.Format("2006-01-02"), report.FailedDays)
	}
	// The day after the failure must still have been processed.
	if store.stats[statKey{propertyID: 1, date: d3}].Views != 3 {
		t.Error("day after the failed day was not aggregated")
	}
}

func TestBackfillMatchesIndividualRuns(t *testing.T) {
	d1, d2 := day(2026, 3, 10), day(2026, 3, 11)
	events := map[time.Time]map[int64]models.CounterVector{
		d1: {1: {Views: 4, Shares: 1}},
		d2: {1: {Views: 6}, 2: {Inquiries: 2}},
	}

	backfillStore := newFakeStatStore()
	backfillStore.events = events
	if _, err := New(backfillStore).Backfill(context.Background(), d1, d2); err != nil {
		t.Fatalf("Backfill() failed: %v", err)
	}

	singleStore := newFakeStatStore()
	singleStore.events = events
	engine := New(singleStore)
	for _, d := range []time.Time{d1, d2} {
		if _, err := engine.Aggregate(context.Background(), d); err != nil {
			t.Fatalf("Aggregate(%s) failed: %v", d.Format("2006-01-02"), err)
		}
	}

	if len(backfillStore.stats) != len(singleStore.stats) {
		t.Fatalf("row counts differ: backfill=%d single=%d",
			len(backfillStore.stats), len(singleStore.stats))
	}
	for key, want := range singleStore.stats {
		if got := backfillStore.stats[key]; got != want {
			t.Errorf("key %+v: backfill=%+v single=%+v", key, got, want)
		}
	}
}

func TestBackfillInvertedRange(t *testing.T) {
	store := newFakeStatStore()
	if _, err := New(store).Backfill(context.Background(), day(2026, 3, 12), day(2026, 3, 10)); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestBackfillStopsOnCancel(t *testing.T) {
	store := newFakeStatStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(store).Backfill(ctx, day(2026, 3, 10), day(2026, 3, 12))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(report.Days) != 0 {
		t.Errorf("expected no processed days after immediate cancel, got %d", len(report.Days))
	}
}

func TestHandlerDropsMalformedJob(t *testing.T) {
	handler := New(newFakeStatStore()).Handler()

	msg := message.NewMessage("bad", []byte("not json"))
	if err := handler(msg); err != nil {
		t.Errorf("malformed payload must be acked, got %v", err)
	}
}

func TestHandlerPropagatesAggregationError(t *testing.T) {
	store := newFakeStatStore()
	d := day(2026, 3, 14)
	store.countErr[d] = errors.New("query timeout")
	handler := New(store).Handler()

	msg := message.NewMessage("job", []byte(`{"date":"2026-03-14T00:00:00Z"}`))
	if err := handler(msg); err == nil {
		t.Error("expected handler error so the job is redelivered")
	}
}
