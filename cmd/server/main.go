// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

// Package main is the entry point for the Framesight analysis server.
//
// The server consumes camera frames from the ingestion worker over NATS
// JetStream, schedules inference jobs against the engine, detects moments of
// anomalous activity, and serves results over HTTP and WebSocket.
//
// Components start in dependency order: configuration, logging, the
// (optionally embedded) NATS server, the JetStream frames stream, the DuckDB
// store, the engine client, and finally the supervised service tree with the
// frame consumer, WebSocket hub, and HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/framesight/internal/api"
	"github.com/tomtom215/framesight/internal/bus"
	"github.com/tomtom215/framesight/internal/config"
	"github.com/tomtom215/framesight/internal/engine"
	"github.com/tomtom215/framesight/internal/ingest"
	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/moments"
	"github.com/tomtom215/framesight/internal/notify"
	"github.com/tomtom215/framesight/internal/pipeline"
	"github.com/tomtom215/framesight/internal/store"
	"github.com/tomtom215/framesight/internal/supervisor"
	ws "github.com/tomtom215/framesight/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("media_dir", cfg.Media.Dir).
		Bool("embedded_nats", cfg.NATS.EmbeddedServer).
		Bool("webhook_enabled", cfg.Webhook.Enabled).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.NATS.EmbeddedServer {
		embedded, err := bus.NewEmbeddedServer(cfg.NATS)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Error stopping embedded NATS server")
			}
		}()
		cfg.NATS.URL = embedded.ClientURL()
		logging.Info().Str("url", cfg.NATS.URL).Msg("Embedded NATS server running")
	}

	if err := ingest.EnsureStream(ctx, cfg.NATS, cfg.Ingest); err != nil {
		logging.Fatal().Err(err).Msg("Failed to ensure frames stream")
	}

	db, err := store.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	engineClient, err := engine.NewClient(cfg.NATS, cfg.Engine)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect engine client")
	}
	defer engineClient.Close()

	wmLogger := ingest.NewWatermillLogger()

	commands, err := ingest.NewCommandPublisher(cfg.NATS, cfg.Ingest, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create command publisher")
	}
	defer func() {
		if err := commands.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing command publisher")
		}
	}()

	subscriber, err := ingest.NewSubscriber(cfg.NATS, cfg.Ingest, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create frames subscriber")
	}

	hub := ws.NewHub(cfg.Pipeline.StatsBacklog)
	sink := notify.NewSink(cfg.Webhook)
	lifecycle := moments.NewHandler(db, engineClient, cfg.Media.Dir)
	pipe := pipeline.New(cfg.Pipeline, cfg.Media.Dir, db, engineClient, hub, commands, sink, lifecycle)
	consumer := ingest.NewConsumer(subscriber, cfg.Ingest, pipe)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(api.NewHandlers(db, commands, hub)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddTransportService(supervisor.ServeFunc{Name: "engine-client", Run: engineClient.Serve})
	tree.AddAnalysisService(supervisor.ServeFunc{Name: "websocket-hub", Run: hub.Run})
	tree.AddAnalysisService(supervisor.ServeFunc{Name: "frame-consumer", Run: consumer.Serve})
	tree.AddAPIService(supervisor.NewHTTPServerService(httpServer, 10*time.Second))

	logging.Info().Str("addr", httpServer.Addr).Msg("Framesight server starting")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", fmt.Sprint(svc.Service)).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Framesight server stopped")
}
