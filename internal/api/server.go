// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Package api exposes the HTTP surface: interaction capture, per-property
// statistics, platform totals, health, and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/castminster/propertypulse/internal/config"
	"github.com/castminster/propertypulse/internal/models"
	"github.com/castminster/propertypulse/internal/recorder"
)

// StatsStore is the read surface for the statistics endpoints.
type StatsStore interface {
	DailyStatsRange(ctx context.Context, propertyID int64, start, end time.Time) ([]models.DailyStat, error)
	PlatformTotals(ctx context.Context) (models.StatTotals, error)
	Ping(ctx context.Context) error
}

// InteractionRecorder is the capture surface.
type InteractionRecorder interface {
	Record(ctx context.Context, c recorder.Capture) string
}

// Server holds the handlers and builds the router.
type Server struct {
	store    StatsStore
	recorder InteractionRecorder
	cfg      config.ServerConfig
	recCfg   config.RecorderConfig
}

// NewServer creates a Server.
func NewServer(store StatsStore, rec InteractionRecorder, cfg config.ServerConfig, recCfg config.RecorderConfig) *Server {
	return &Server{store: store, recorder: rec, cfg: cfg, recCfg: recCfg}
}

// Routes assembles the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: s.cfg.CORSAllowCredentials,
		MaxAge:           s.cfg.CORSMaxAge,
	}))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Capture is write-heavy and anonymous, so it gets its own
		// per-IP limit.
		r.With(httprate.LimitByIP(s.recCfg.RateLimitReqs, s.recCfg.RateLimitWindow)).
			Post("/interactions", s.handleCaptureInteraction)

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(300, time.Minute))
			r.Get("/properties/{id}/stats", s.handlePropertyStats)
			r.Get("/stats/totals", s.handleTotals)
		})
	})

	return r
}

// HTTPServer returns a configured http.Server ready to listen.
func (s *Server) HTTPServer() *http.Server {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * time.Minute,
	}
}
