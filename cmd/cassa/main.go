package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cassa/internal/amqp"
	"cassa/internal/cli"
	"cassa/internal/clock"
	"cassa/internal/core"
	apphttp "cassa/internal/http"
	"cassa/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	gate := cli.InitGate(logger, cfg)

	// Event publishing is optional. Without a broker the mirror worker
	// still catches up through its poll loop.
	var publisher services.PaymentPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to connect to AMQP, continuing without payment events", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher connected",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	clk := clock.NewSystemClock()
	rollover := services.NewRollover(repo, clk)
	members := services.NewMemberService(repo, rollover, clk, publisher)
	ledger := services.NewLedgerService(repo, rollover, clk, publisher)

	defaultDue, err := core.ParseDecimalToCents(cfg.DefaultDueAmount)
	if err != nil {
		logger.Error("Invalid DEFAULT_DUE_AMOUNT", "error", err, "value", cfg.DefaultDueAmount)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, members, ledger, gate, apphttp.Options{
		SessionTTL:       cfg.SessionTTL,
		DefaultDueAmount: core.Money{Cents: defaultDue},
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := cli.SignalContext()
	defer stop()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting cassa server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-shutdownDone
	logger.Info("Server stopped gracefully")
}
