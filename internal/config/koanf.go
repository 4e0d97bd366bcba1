// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/propertypulse/config.yaml",
	"/etc/propertypulse/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces environment overrides:
// PROPERTYPULSE_QUEUE_URL -> queue.url
const envPrefix = "PROPERTYPULSE_"

// Default returns a Config with production defaults. These are applied
// first, then overridden by the config file and environment variables.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/propertypulse.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Queue: QueueConfig{
			Enabled:             true,
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamName:          "JOBS",
			StreamRetentionDays: 7,
			DurableName:         "pipeline",
			QueueGroup:          "workers",
			SubscribersCount:    4,
			AckWaitTimeout:      5 * time.Minute,
			CloseTimeout:        30 * time.Second,
			MaxReconnects:       -1,
			ReconnectWait:       2 * time.Second,
			// 60s, 120s, 240s: three retries then the poison queue.
			RetryMaxRetries:      3,
			RetryInitialInterval: time.Minute,
			RetryMaxInterval:     4 * time.Minute,
			RetryMultiplier:      2.0,
			PoisonQueueTopic:     "jobs.poison",
		},
		Recorder: RecorderConfig{
			SessionTTL:      30 * 24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Aggregation: AggregationConfig{
			ScheduleHour:  2,
			Timezone:      "UTC",
			RetentionDays: 0, // keep raw events forever by default
		},
		Watermark: WatermarkConfig{
			AssetPath:   "/data/assets/watermark.png",
			Anchor:      "center",
			SizeRatio:   0.15,
			Opacity:     0.7,
			MarginRatio: 0.02,
			JPEGQuality: 95,
		},
		Sessions: SessionsConfig{
			Path:     "/data/sessions",
			InMemory: false,
		},
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8093,
			Timeout:            30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			CORSAllowedOrigins: []string{"*"},
			CORSMaxAge:         86400,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. PROPERTYPULSE_-prefixed environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf paths.
//
// The first underscore separates the section from the key; the key keeps its
// remaining underscores:
//
//	PROPERTYPULSE_QUEUE_RETRY_MAX_RETRIES -> queue.retry_max_retries
//	PROPERTYPULSE_DATABASE_PATH           -> database.path
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return section
	}
	return section + "." + rest
}
