// Blogstream - High-Throughput Blog Ingest and Batch Persistence
// Copyright 2026 The Blogstream Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/blogstream/blogstream

// Command server runs the Blogstream server: the HTTP ingest and query
// surface plus the batch consumer, under one supervision tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blogstream/blogstream/internal/api"
	"github.com/blogstream/blogstream/internal/config"
	"github.com/blogstream/blogstream/internal/consumer"
	"github.com/blogstream/blogstream/internal/database"
	"github.com/blogstream/blogstream/internal/ingest"
	"github.com/blogstream/blogstream/internal/logging"
	"github.com/blogstream/blogstream/internal/streambus"
	"github.com/blogstream/blogstream/internal/supervisor"
	"github.com/blogstream/blogstream/internal/supervisor/services"
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
		Str("mysql", fmt.Sprintf("%s:%d/%s", cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.DB)).
		Str("redis", cfg.Redis.URL).
		Str("group", cfg.Consumer.Group).
		Msg("Starting Blogstream")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, &cfg.MySQL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize record store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing record store")
		}
	}()

	// Missing procedures are reported at startup; the affected operations
	// fail individually rather than blocking the whole server.
	if _, err := db.VerifyStoredProcedures(ctx); err != nil {
		logging.Warn().Err(err).Msg("Stored procedure check failed")
	}

	bus, err := streambus.New(ctx, cfg.Redis.URL, cfg.Stream.MaxLen)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to stream bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing stream bus")
		}
	}()

	ingestSvc := ingest.New(bus, db)

	cons, err := consumer.New(bus, db, &cfg.Consumer)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build batch consumer")
	}
	logging.Info().Str("consumer", cons.Name()).Msg("Batch consumer configured")

	handler := api.NewHandler(ingestSvc, db, db, bus)
	router := api.NewRouter(handler, api.DefaultRouterConfig())

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(cons)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Blogstream stopped gracefully")
}
