package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"wunschliste/internal/amqp"
	"wunschliste/internal/backend"
	"wunschliste/internal/cli"
	"wunschliste/internal/metrics"
	"wunschliste/internal/services"
	"wunschliste/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting wunschliste-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	pair, err := backend.NewFactory(logger, m).CreateSyncPair(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to open stores", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := pair.Cleanup(); err != nil {
			logger.Warn("Error closing remote store", "error", err)
		}
	}()

	resync := worker.NewResyncWorker(pair.Remote, pair.Local, m)
	processor := services.NewResyncProcessor(resync, services.ResyncProcessorConfig{PollInterval: cfg.SyncInterval})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Performing startup sync check...")
	if err := resync.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start resync processor", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on periodic resync", "error", err)
		} else {
			defer client.Close()
			g.Go(func() error {
				err := client.ConsumeResync(gctx, resync.HandleResyncMessage)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}
	} else {
		logger.Info("AMQP_URL not set, relying on periodic resync")
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return processor.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		return
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
