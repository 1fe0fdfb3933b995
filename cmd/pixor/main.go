package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	renderapi "github.com/aliskhannn/pixor/internal/api/handlers/render"
	"github.com/aliskhannn/pixor/internal/api/router"
	"github.com/aliskhannn/pixor/internal/api/server"
	"github.com/aliskhannn/pixor/internal/config"
	"github.com/aliskhannn/pixor/internal/engine"
	"github.com/aliskhannn/pixor/internal/infra/kafka/consumer"
	"github.com/aliskhannn/pixor/internal/infra/kafka/producer"
	rendermsg "github.com/aliskhannn/pixor/internal/kafka/handlers/render"
	jobrepo "github.com/aliskhannn/pixor/internal/repository/job"
	rendersvc "github.com/aliskhannn/pixor/internal/service/render"
	"github.com/aliskhannn/pixor/internal/source"
	"github.com/aliskhannn/pixor/internal/storage/file"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	// Collect slave DSNs for replica connections.
	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))

	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}
	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Retry strategy for Kafka and outbound source fetches.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize file storage (MinIO) for async render outputs.
	storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	// Engine limits and optional watermark overlay asset.
	engineOpts := []engine.Option{}
	if cfg.Engine.MaxDimension > 0 {
		engineOpts = append(engineOpts, engine.WithMaxDimension(cfg.Engine.MaxDimension))
	}
	overlay, err := rendersvc.WatermarkOverlay(cfg.Engine.WatermarkPath)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load watermark overlay")
	}
	if overlay != nil {
		engineOpts = append(engineOpts, engine.WithWatermark(overlay))
	}

	// Initialize repository, producer, fetcher, and service layer.
	repo := jobrepo.NewRepository(db)
	p := producer.New(&cfg.Kafka, strategy)
	fetcher := source.NewFetcher(cfg.Source.Timeout, strategy, cfg.Source.MaxBytes)
	service := rendersvc.NewService(fetcher, storage, p, repo, engineOpts...)

	// Kafka message handler for requested render jobs.
	requestedHandler := rendermsg.NewRequestedHandler(service)

	// HTTP handler for render routes.
	renderHandler := renderapi.NewHandler(service)

	// Kafka consumer for processing render job events.
	c := consumer.New(&cfg.Kafka, strategy, requestedHandler)

	// Start Kafka consumer in a separate goroutine.
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(renderHandler)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	// Close Kafka producer and consumer clients.
	if err = p.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err = c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}
