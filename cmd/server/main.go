package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mehranjanati/saas-backend/api"
	"github.com/mehranjanati/saas-backend/internal/cache"
	"github.com/mehranjanati/saas-backend/internal/config"
	"github.com/mehranjanati/saas-backend/internal/orders"
	"github.com/mehranjanati/saas-backend/internal/query"
	"github.com/mehranjanati/saas-backend/internal/workflow"
	"github.com/mehranjanati/saas-backend/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.NewLogger(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Cache backend: Redis when reachable, no-op fallback otherwise. The
	// service stays up either way.
	backend := cache.Connect(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.DialTimeout, zapLogger)

	aggregator := cache.NewAggregator(zapLogger)
	store := cache.NewStore(backend, aggregator, zapLogger, cache.StoreOptions{
		DefaultTTL:    cfg.Cache.TTL,
		AssumedCostMs: cfg.Cache.AssumedCostMs,
	})

	executor := query.NewExecutor(query.Config{
		Endpoint:    cfg.Hasura.Endpoint,
		AdminSecret: cfg.Hasura.AdminSecret,
		MaxRetries:  cfg.Hasura.MaxRetries,
		RetryDelay:  cfg.Hasura.RetryDelay,
		Timeout:     cfg.Hasura.Timeout,
	}, zapLogger)

	workflowClient := workflow.NewClient(cfg.Workflow.BaseURL, cfg.Workflow.APIKey, zapLogger)

	ordersSvc, err := orders.NewService(zapLogger, orders.Config{
		Retention:     cfg.Orders.Retention,
		SweepInterval: cfg.Orders.SweepInterval,
		StageDelay:    cfg.Orders.StageDelay,
	})
	if err != nil {
		zapLogger.Fatal("Failed to create order service", zap.Error(err))
	}
	if err := ordersSvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start order service", zap.Error(err))
	}

	apiServer := api.NewServer(zapLogger, cfg, store, aggregator, ordersSvc, executor, workflowClient)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		if err := apiServer.Start(addr); err != nil {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	if err := ordersSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop order service", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		zapLogger.Error("Failed to close cache backend", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}
