package main

import (
	"context"
	"os"
	"time"

	"sitepay/internal/amqp"
	"sitepay/internal/backend"
	"sitepay/internal/cli"
	applog "sitepay/internal/log"
	"sitepay/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting sitepay-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ledgerCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid ledger configuration", applog.FieldError, err)
		os.Exit(1)
	}
	ledger, err := backend.NewLedger(context.Background(), ledgerCfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", applog.FieldError, err)
		os.Exit(1)
	}

	var consumer worker.Consumer
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	} else {
		logger.Info("AMQP disabled - exporting from the backlog scan only", "interval", cfg.ExportInterval)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	w := worker.NewLedgerWorker(repo, ledger, cfg.ExportBatchSize)
	if err := w.Run(ctx, consumer, cfg.ExportInterval); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker shutdown complete")
}
