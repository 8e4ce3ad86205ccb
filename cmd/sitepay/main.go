package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"sitepay/internal/amqp"
	"sitepay/internal/cache"
	"sitepay/internal/cli"
	"sitepay/internal/core"
	apphttp "sitepay/internal/http"
	applog "sitepay/internal/log"
	"sitepay/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var publisher services.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Entries stay unexported until the worker's backlog scan picks them up.
			logger.Warn("AMQP unavailable, events disabled", applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	totals := cache.NewLRUCache[core.AllSitesTotal](64, cfg.CacheTTL)
	caches := cache.NewManager()
	caches.Register(totals)
	caches.StartCleanup(cfg.CacheTTL)
	defer caches.Stop()

	svc := services.NewSiteService(repo, publisher, totals)

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting sitepay server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
