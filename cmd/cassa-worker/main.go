package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cassa/internal/amqp"
	"cassa/internal/backend"
	"cassa/internal/cli"
	"cassa/internal/services"
	"cassa/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting cassa-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext()
	defer stop()

	mirror, err := backend.NewMirror(ctx, backend.Kind(cfg.MirrorBackend))
	if err != nil {
		logger.Error("Failed to build ledger mirror", "error", err, "backend", cfg.MirrorBackend)
		os.Exit(1)
	}

	mirrorWorker := worker.NewMirrorWorker(repo, mirror, cfg.MirrorBatchSize)

	// Push anything that went stale while the worker was down before
	// taking new events.
	if err := mirrorWorker.StartupMirrorCheck(ctx); err != nil {
		logger.Error("Startup mirror check failed", "error", err)
	}

	// The poll loop is the safety net for lost or absent events.
	processor := services.NewMirrorProcessor(repo, mirror, services.MirrorProcessorConfig{
		PollInterval: cfg.MirrorInterval,
		BatchSize:    cfg.MirrorBatchSize,
		MaxRetries:   3,
	})
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start mirror processor", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			err := amqpClient.ConsumePaymentEvents(gctx, func(msg *amqp.PaymentEventMessage) error {
				return mirrorWorker.HandlePaymentEvent(gctx, msg)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume payment events: %w", err)
			}
			return nil
		})
		logger.Info("Consuming payment events",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue)
	} else {
		logger.Info("No AMQP broker configured, relying on the poll loop only")
	}

	g.Go(func() error {
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return processor.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
