// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Command server runs the full interaction pipeline: HTTP capture surface,
// embedded NATS JetStream broker, background job consumers, and the daily
// aggregation scheduler, all under one supervision tree.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/castminster/propertypulse/internal/aggregate"
	"github.com/castminster/propertypulse/internal/api"
	"github.com/castminster/propertypulse/internal/config"
	"github.com/castminster/propertypulse/internal/database"
	"github.com/castminster/propertypulse/internal/logging"
	"github.com/castminster/propertypulse/internal/outbox"
	"github.com/castminster/propertypulse/internal/queue"
	"github.com/castminster/propertypulse/internal/recorder"
	"github.com/castminster/propertypulse/internal/sessions"
	"github.com/castminster/propertypulse/internal/supervisor"
	"github.com/castminster/propertypulse/internal/supervisor/services"
	"github.com/castminster/propertypulse/internal/watermark"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Starting PropertyPulse")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Database close failed")
		}
	}()

	sessionPath := cfg.Sessions.Path
	if cfg.Sessions.InMemory {
		sessionPath = ""
	}
	sessionStore, err := sessions.Open(sessionPath, cfg.Recorder.SessionTTL)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if err := sessionStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Session store close failed")
		}
	}()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if cfg.Queue.Enabled {
		if err := wireQueue(ctx, cfg, db, tree); err != nil {
			return err
		}
	} else {
		logging.Warn().Msg("Queue disabled, background processing is off")
	}

	rec := recorder.New(db, sessionStore)
	apiServer := api.NewServer(db, rec, cfg.Server, cfg.Recorder)
	tree.AddAPIService(services.NewHTTPServerService(apiServer.HTTPServer(), cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Msg("Supervision tree starting")

	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervision tree: %w", err)
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}

// wireQueue starts the broker (if embedded), provisions the stream, and
// registers every consumer plus the daily scheduler on the tree.
func wireQueue(ctx context.Context, cfg *config.Config, db *database.DB, tree *supervisor.Tree) error {
	queueCfg := cfg.Queue

	if queueCfg.EmbeddedServer {
		srv, err := queue.NewEmbeddedServer(queueCfg)
		if err != nil {
			return fmt.Errorf("start embedded NATS server: %w", err)
		}
		queueCfg.URL = srv.ClientURL()
		logging.Info().Str("url", queueCfg.URL).Msg("Embedded NATS server ready")

		// The broker outlives the tree so consumers can drain on shutdown.
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Embedded NATS shutdown failed")
			}
		}()
	}

	streams, err := queue.NewStreamManager(queueCfg)
	if err != nil {
		return fmt.Errorf("connect stream manager: %w", err)
	}
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := streams.EnsureStream(initCtx); err != nil {
		streams.Close()
		return fmt.Errorf("provision stream: %w", err)
	}
	streams.Close()

	wmLogger := queue.NewLogger()
	publisher, err := queue.NewPublisher(queueCfg, wmLogger)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	subscriber, err := queue.NewSubscriber(queueCfg, wmLogger)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}

	router, err := queue.NewRouter(queueCfg, publisher.WatermillPublisher(), wmLogger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	worker := watermark.NewWorker(db, cfg.Watermark)
	router.AddConsumerHandler("watermark-worker", queue.TopicWatermark,
		subscriber.WatermillSubscriber(), worker.Handler())

	engine := aggregate.New(db)
	router.AddConsumerHandler("aggregation-engine", queue.TopicAggregate,
		subscriber.WatermillSubscriber(), engine.Handler())

	notifications := outbox.New(db)
	router.AddConsumerHandler("outbox-property-created", queue.TopicPropertyCreated,
		subscriber.WatermillSubscriber(), notifications.PropertyCreatedHandler())
	router.AddConsumerHandler("outbox-agent-assigned", queue.TopicAgentAssigned,
		subscriber.WatermillSubscriber(), notifications.AgentAssignedHandler())
	router.AddConsumerHandler("outbox-inquiry", queue.TopicInquiryReceived,
		subscriber.WatermillSubscriber(), notifications.InquiryReceivedHandler())

	tree.AddMessagingService(services.NewRouterService(router))

	scheduler := aggregate.NewScheduler(publisher, db, cfg.Aggregation, cfg.Location())
	tree.AddMessagingService(services.NewSchedulerService(scheduler, "aggregation-scheduler"))

	return nil
}
