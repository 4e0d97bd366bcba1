// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package queue

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/castminster/propertypulse/internal/config"
	"github.com/castminster/propertypulse/internal/logging"
	"github.com/castminster/propertypulse/internal/metrics"
)

// NewLogger returns a Watermill logger backed by the process zerolog logger.
func NewLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}

// Router wraps the Watermill router with the pipeline's middleware chain:
// panic recovery, bounded exponential retry, and poison-queue routing for
// messages that exhaust their retries.
type Router struct {
	router   *message.Router
	logger   watermill.LoggerAdapter
	handlers map[string]*message.Handler
	running  bool
}

// NewRouter builds the router from queue config. poisonPublisher receives
// messages that fail after all retries; pass nil to disable the poison queue
// (tests only).
func NewRouter(cfg config.QueueConfig, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = NewLogger()
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router:   wmRouter,
		logger:   logger,
		handlers: make(map[string]*message.Handler),
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(&poisonCountingPublisher{inner: poisonPublisher}, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	return r, nil
}

// poisonCountingPublisher counts messages routed to the poison queue before
// handing them to the real publisher.
type poisonCountingPublisher struct {
	inner message.Publisher
}

func (p *poisonCountingPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		handler := msg.Metadata.Get(middleware.PoisonedHandlerKey)
		metrics.QueuePoisonedMessages.WithLabelValues(handler).Inc()
		logging.Error().
			Str("handler", handler).
			Str("reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey)).
			Str("message_uuid", msg.UUID).
			Msg("Message exhausted retries, routing to poison queue")
	}
	return p.inner.Publish(topic, msgs...)
}

func (p *poisonCountingPublisher) Close() error {
	return p.inner.Close()
}

// AddConsumerHandler registers a consume-only handler. Returning an error
// from the handler nacks the message and triggers the retry chain.
func (r *Router) AddConsumerHandler(name, topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) *message.Handler {
	h := r.router.AddConsumerHandler(name, topic, subscriber, handler)
	r.handlers[name] = h
	return h
}

// Run starts the router and blocks until the context is canceled or Close
// is called.
func (r *Router) Run(ctx context.Context) error {
	r.running = true
	defer func() { r.running = false }()
	return r.router.Run(ctx)
}

// Running returns a channel that closes once all handlers are consuming.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is processing messages.
func (r *Router) IsRunning() bool {
	return r.running
}

// Close stops the router, waiting up to CloseTimeout for in-flight messages.
func (r *Router) Close() error {
	return r.router.Close()
}
