// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/castminster/propertypulse/internal/logging"
	"github.com/castminster/propertypulse/internal/models"
	"github.com/castminster/propertypulse/internal/recorder"
	"github.com/castminster/propertypulse/internal/sessions"
)

// SessionCookieName carries the anonymous session token.
const SessionCookieName = "pp_session"

type captureRequest struct {
	PropertyID int64  `json:"property_id"`
	Kind       string `json:"kind"`
	UserID     *int64 `json:"user_id,omitempty"`
}

type captureResponse struct {
	Accepted bool `json:"accepted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// handleCaptureInteraction records one interaction. The request is validated
// at the boundary (a well-formed body with a known kind); everything past
// that point is best-effort and the visitor always gets 202.
func (s *Server) handleCaptureInteraction(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if req.PropertyID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "property_id must be positive"})
		return
	}
	kind, err := models.ParseInteractionKind(req.Kind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var existing string
	if c, err := r.Cookie(SessionCookieName); err == nil {
		existing = c.Value
	}

	token := s.recorder.Record(r.Context(), recorder.Capture{
		PropertyID:   req.PropertyID,
		UserID:       req.UserID,
		SessionToken: existing,
		Kind:         kind,
		OccurredAt:   time.Now().UTC(),
	})

	if token != existing {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(sessions.DefaultTTL / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	writeJSON(w, http.StatusAccepted, captureResponse{Accepted: true})
}

// handlePropertyStats returns per-day stats for one property over an
// inclusive date range. Dates use YYYY-MM-DD; the default window is the last
// 30 days.
func (s *Server) handlePropertyStats(w http.ResponseWriter, r *http.Request) {
	propertyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || propertyID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid property id"})
		return
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	start := now.AddDate(0, 0, -29)
	end := now

	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.Parse("2006-01-02", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid start date"})
			return
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.Parse("2006-01-02", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid end date"})
			return
		}
	}
	if end.Before(start) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "end before start"})
		return
	}

	stats, err := s.store.DailyStatsRange(r.Context(), propertyID, start, end)
	if err != nil {
		logging.Error().Err(err).Int64("property_id", propertyID).Msg("Stats range query failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "stats unavailable"})
		return
	}
	if stats == nil {
		stats = []models.DailyStat{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"property_id": propertyID,
		"start":       start.Format("2006-01-02"),
		"end":         end.Format("2006-01-02"),
		"days":        stats,
	})
}

// handleTotals returns platform-wide aggregated totals.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.store.PlatformTotals(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Platform totals query failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "totals unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// handleHealth reports liveness plus database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"reason": "database unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
