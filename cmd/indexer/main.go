// Command indexer is the worker process: it reads INDEXER_NAME, loads the
// matching Indexer row, and dispatches to the transfer or balance indexer
// loop named by the row's type (spec.md §4.9).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/config"
	"github.com/csic-platform/evm-indexer/internal/rpcclient"
	"github.com/csic-platform/evm-indexer/internal/store"
	"github.com/csic-platform/evm-indexer/internal/worker"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if cfg.App.Debug {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	if cfg.App.IndexerName == "" {
		logger.Fatal("INDEXER_NAME is required")
	}

	logger.Info("starting indexer worker",
		zap.String("indexer", cfg.App.IndexerName),
		zap.String("environment", cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	postgres, err := store.Open(ctx, store.PoolConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Username:        cfg.Database.Username,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer postgres.Close()

	cachedConfig, err := store.NewCachedConfigStore(ctx, store.CacheConfig{
		Host:      cfg.Redis.Host,
		Port:      cfg.Redis.Port,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
		PoolSize:  cfg.Redis.PoolSize,
		TTL:       cfg.Redis.TTL,
	}, postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer cachedConfig.Close()

	events := store.NewEventPublisher(store.EventsConfig{
		Brokers:        cfg.Kafka.Brokers,
		TransfersTopic: cfg.Kafka.TransfersTopic,
		BalancesTopic:  cfg.Kafka.BalancesTopic,
	}, logger)
	defer events.Close()

	indexerRow, err := cachedConfig.Indexer(ctx, cfg.App.IndexerName)
	if err != nil {
		logger.Fatal("failed to load indexer row", zap.String("indexer", cfg.App.IndexerName), zap.Error(err))
	}

	network, err := cachedConfig.Network(ctx, indexerRow.NetworkID)
	if err != nil {
		logger.Fatal("failed to load network", zap.Error(err))
	}

	client, err := rpcclient.Dial(ctx, network)
	if err != nil {
		logger.Fatal("failed to dial RPC endpoint", zap.String("network", network.Name), zap.Error(err))
	}
	defer client.Close()

	persistence := store.NewPublishingPersistence(postgres, events)

	runner, err := worker.New(ctx, cachedConfig, persistence, client, indexerRow, logger)
	if err != nil {
		logger.Fatal("failed to build worker", zap.String("indexer", cfg.App.IndexerName), zap.Error(err))
	}

	go func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("worker loop exited", zap.String("indexer", cfg.App.IndexerName), zap.Error(err))
		}
	}()

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	server := &http.Server{
		Addr:         cfg.App.ServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("indexer worker liveness endpoint listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("liveness server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down indexer worker", zap.String("indexer", cfg.App.IndexerName))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("liveness server forced to shutdown", zap.Error(err))
	}

	logger.Info("indexer worker stopped", zap.String("indexer", cfg.App.IndexerName))
}
