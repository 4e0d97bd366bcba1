// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Package database provides the DuckDB-backed stores for the interaction
// pipeline: the append-only event store, the daily statistics store, and the
// image store consumed by the watermark worker.
//
// Write disciplines per table:
//   - interaction_events: append-only, INSERT ... ON CONFLICT DO NOTHING so
//     redelivered captures are idempotent. Never updated.
//   - daily_stats: single-statement upsert keyed (property_id, stat_date);
//     the whole counter vector is overwritten on conflict, never incremented.
//   - property_images: one current payload per image; bytes and the
//     is_watermarked flag change together in one conditional UPDATE.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/castminster/propertypulse/internal/config"
	"github.com/castminster/propertypulse/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  config.DatabaseConfig
}

// New opens (or creates) the database and initializes the schema.
// An empty cfg.Path opens an in-memory database.
func New(cfg config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	dsn := ""
	if cfg.Path != "" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
			}
		}
		dsn = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
			cfg.Path, numThreads, cfg.MaxMemory)
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// DuckDB is an embedded single-process engine; a small pool is enough
	// and avoids writer contention.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{conn: conn, cfg: cfg}

	if err := db.createSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database ready")
	return db, nil
}

// Conn exposes the underlying connection for tests and tooling.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close releases the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// createSchema creates tables and indexes if they do not exist.
func (db *DB) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	queries := []string{
		// Minimal properties table: the recorder's existence probe and the
		// image rows reference it. Full listing data lives with the CRUD
		// collaborator, not here.
		`CREATE TABLE IF NOT EXISTS properties (
			id BIGINT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Append-only raw interaction events.
		`CREATE TABLE IF NOT EXISTS interaction_events (
			id UUID PRIMARY KEY,
			property_id BIGINT NOT NULL,
			user_id BIGINT,
			session_token TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		)`,

		// One row per (property, day); counters are absolute day totals.
		`CREATE TABLE IF NOT EXISTS daily_stats (
			property_id BIGINT NOT NULL,
			stat_date DATE NOT NULL,
			views BIGINT NOT NULL DEFAULT 0,
			favorites BIGINT NOT NULL DEFAULT 0,
			shares BIGINT NOT NULL DEFAULT 0,
			inquiries BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			revision BIGINT NOT NULL DEFAULT 1,
			PRIMARY KEY (property_id, stat_date)
		)`,

		// One current byte payload per image plus the watermark flag.
		`CREATE TABLE IF NOT EXISTS property_images (
			id UUID PRIMARY KEY,
			property_id BIGINT NOT NULL,
			bytes BLOB NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'image/jpeg',
			storage_kind TEXT NOT NULL DEFAULT 'local',
			is_watermarked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Outbox-consumer notification rows, idempotent by event_id.
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL UNIQUE,
			event_type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_property_occurred
			ON interaction_events (property_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_occurred
			ON interaction_events (occurred_at)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}
