// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/castminster/propertypulse/internal/config"
)

// StreamManager owns the JOBS stream lifecycle. The stream is provisioned
// once at startup; publishers and subscribers bind to it by name.
type StreamManager struct {
	js   jetstream.JetStream
	nc   *nats.Conn
	cfg  config.QueueConfig
	name string
}

// NewStreamManager connects to the broker at cfg.URL.
func NewStreamManager(cfg config.QueueConfig) (*StreamManager, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return &StreamManager{js: js, nc: nc, cfg: cfg, name: cfg.StreamName}, nil
}

// EnsureStream creates or updates the JOBS stream. The duplicate window
// backs publish-side deduplication via Nats-Msg-Id.
func (m *StreamManager) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:        m.name,
		Subjects:    StreamSubjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      time.Duration(m.cfg.StreamRetentionDays) * 24 * time.Hour,
		Duplicates:  2 * time.Minute,
		Replicas:    1,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}

	if _, err := m.js.Stream(ctx, m.name); err == nil {
		stream, err := m.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream: %w", err)
		}
		return stream, nil
	}

	stream, err := m.js.CreateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	return stream, nil
}

// StreamInfo returns the current stream state.
func (m *StreamManager) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, m.name)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return stream.Info(ctx)
}

// Close releases the NATS connection.
func (m *StreamManager) Close() {
	m.nc.Close()
}
