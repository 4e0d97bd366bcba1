// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package models

import "time"

// CounterVector is a full four-field interaction count for one property on
// one day. Kinds with zero events are represented explicitly as 0, never
// omitted: the aggregation upsert overwrites the entire vector, so a zero is
// the correct encoding of "no interactions of this kind occurred".
type CounterVector struct {
	Views     int64 `json:"views"`
	Favorites int64 `json:"favorites"`
	Shares    int64 `json:"shares"`
	Inquiries int64 `json:"inquiries"`
}

// Add increments the counter matching kind by n.
func (v *CounterVector) Add(kind InteractionKind, n int64) {
	switch kind {
	case KindView:
		v.Views += n
	case KindFavorite:
		v.Favorites += n
	case KindShare:
		v.Shares += n
	case KindInquiry:
		v.Inquiries += n
	}
}

// Total returns the sum of all four counters.
func (v CounterVector) Total() int64 {
	return v.Views + v.Favorites + v.Shares + v.Inquiries
}

// DailyStat is the per-property, per-calendar-day aggregate row. At most one
// row exists per (PropertyID, Date); re-running aggregation for the same day
// overwrites the counters rather than incrementing them, so replay is
// idempotent.
type DailyStat struct {
	PropertyID int64         `json:"property_id"`
	Date       time.Time     `json:"date"` // midnight in the server's reference timezone
	Counts     CounterVector `json:"counts"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// StatTotals is the platform-wide sum of daily stat counters, exposed for
// top-level reporting dashboards.
type StatTotals struct {
	Counts     CounterVector `json:"counts"`
	Properties int64         `json:"properties"`
	Days       int64         `json:"days"`
}

// AggregationReport summarizes one aggregate(date) run.
type AggregationReport struct {
	Date     time.Time `json:"date"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Subjects int       `json:"subjects"`
}

// BackfillReport summarizes a historical replay over a date range. Days are
// processed independently; a failed day is recorded and the run continues.
type BackfillReport struct {
	Start      time.Time           `json:"start"`
	End        time.Time           `json:"end"`
	Days       []AggregationReport `json:"days"`
	FailedDays []time.Time         `json:"failed_days,omitempty"`
}
