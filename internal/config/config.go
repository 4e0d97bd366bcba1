// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Package config provides layered configuration for PropertyPulse.
//
// Precedence: environment variables > YAML config file > built-in defaults.
// Loading is done with koanf v2; validation combines go-playground/validator
// struct tags with a handful of semantic checks that tags cannot express.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the pipeline daemon and tools.
type Config struct {
	Database    DatabaseConfig    `koanf:"database"`
	Queue       QueueConfig       `koanf:"queue"`
	Recorder    RecorderConfig    `koanf:"recorder"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Watermark   WatermarkConfig   `koanf:"watermark"`
	Sessions    SessionsConfig    `koanf:"sessions"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Empty string opens an in-memory
	// database (used by tests and the dry-run backfill).
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads caps DuckDB's worker threads. 0 = runtime.NumCPU().
	Threads int `koanf:"threads" validate:"min=0"`
}

// QueueConfig holds NATS JetStream and Watermill router settings.
type QueueConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	StreamName          string        `koanf:"stream_name"`
	StreamRetentionDays int           `koanf:"stream_retention_days" validate:"min=1"`
	DurableName         string        `koanf:"durable_name"`
	QueueGroup          string        `koanf:"queue_group"`
	SubscribersCount    int           `koanf:"subscribers_count" validate:"min=1"`
	AckWaitTimeout      time.Duration `koanf:"ack_wait_timeout"`
	CloseTimeout        time.Duration `koanf:"close_timeout"`
	MaxReconnects       int           `koanf:"max_reconnects"`
	ReconnectWait       time.Duration `koanf:"reconnect_wait"`

	// Router retry policy for the watermark and aggregation consumers.
	// The defaults implement the 60s/120s/240s bounded-backoff contract.
	RetryMaxRetries      int           `koanf:"retry_max_retries" validate:"min=0"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	PoisonQueueTopic string `koanf:"poison_queue_topic"`
}

// RecorderConfig holds event-capture settings.
type RecorderConfig struct {
	// SessionTTL is how long a minted anonymous session token stays valid.
	SessionTTL time.Duration `koanf:"session_ttl"`
	// RateLimitReqs/-Window bound the capture endpoint per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// AggregationConfig holds daily rollup settings.
type AggregationConfig struct {
	// ScheduleHour is the local hour (0-23) at which yesterday's rollup is
	// enqueued.
	ScheduleHour int `koanf:"schedule_hour" validate:"min=0,max=23"`
	// Timezone is the reference timezone for calendar-day boundaries.
	Timezone string `koanf:"timezone"`
	// RetentionDays prunes raw events older than N days, never past the
	// most recent aggregated day. 0 disables pruning (events kept forever).
	RetentionDays int `koanf:"retention_days" validate:"min=0"`
}

// WatermarkConfig holds compositing settings for the watermark worker.
type WatermarkConfig struct {
	// AssetPath is the watermark overlay image (PNG with alpha).
	AssetPath string `koanf:"asset_path"`
	// Anchor is one of: center, top_left, top_right, bottom_left, bottom_right.
	Anchor string `koanf:"anchor"`
	// SizeRatio scales the watermark to this fraction of the base width.
	SizeRatio float64 `koanf:"size_ratio" validate:"gt=0,lte=1"`
	// Opacity multiplies the watermark's alpha channel.
	Opacity float64 `koanf:"opacity" validate:"gt=0,lte=1"`
	// MarginRatio is the corner margin as a fraction of the base width.
	MarginRatio float64 `koanf:"margin_ratio" validate:"gte=0,lt=0.5"`
	// JPEGQuality is the re-encode quality.
	JPEGQuality int `koanf:"jpeg_quality" validate:"min=1,max=100"`
}

// SessionsConfig holds the badger-backed anonymous session token store.
type SessionsConfig struct {
	Path string `koanf:"path"`
	// InMemory runs badger without disk persistence (tests, dev).
	InMemory bool `koanf:"in_memory"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// CORSAllowedOrigins lists origins browser dashboards may call the API
	// from. "*" allows any origin.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
	// CORSAllowCredentials lets cross-origin requests carry the session
	// cookie. Incompatible with a wildcard origin.
	CORSAllowCredentials bool `koanf:"cors_allow_credentials"`
	// CORSMaxAge is the preflight cache lifetime in seconds.
	CORSMaxAge int `koanf:"cors_max_age" validate:"min=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// watermarkAnchors is the closed set of composite positions.
var watermarkAnchors = map[string]struct{}{
	"center":       {},
	"top_left":     {},
	"top_right":    {},
	"bottom_left":  {},
	"bottom_right": {},
}

// Validate checks the configuration for structural and semantic errors.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if _, ok := watermarkAnchors[c.Watermark.Anchor]; !ok {
		return fmt.Errorf("watermark.anchor: invalid position %q", c.Watermark.Anchor)
	}
	if _, err := time.LoadLocation(c.Aggregation.Timezone); err != nil {
		return fmt.Errorf("aggregation.timezone: %w", err)
	}
	if c.Queue.Enabled && !c.Queue.EmbeddedServer && c.Queue.URL == "" {
		return fmt.Errorf("queue.url required when embedded server is disabled")
	}
	if c.Queue.RetryMultiplier < 1 {
		return fmt.Errorf("queue.retry_multiplier must be >= 1, got %v", c.Queue.RetryMultiplier)
	}
	if c.Server.CORSAllowCredentials {
		for _, origin := range c.Server.CORSAllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("server.cors_allowed_origins: wildcard origin cannot be combined with cors_allow_credentials")
			}
		}
	}
	return nil
}

// Location resolves the aggregation reference timezone. Validate must have
// succeeded before calling.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Aggregation.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
