package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lumia-advisor/internal/engine"
	"lumia-advisor/internal/repository"
	"lumia-advisor/internal/worker/config"
	"lumia-advisor/internal/worker/delivery/consumer"
	"lumia-advisor/internal/worker/service"
	"lumia-advisor/pkg/logger"
	"lumia-advisor/pkg/postgres"
	"lumia-advisor/pkg/redis"
	"lumia-advisor/pkg/telegram"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the signal generation service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Signal Service", logger.Field("name", cfg.App.Name))

	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	assetRepo := repository.NewAssetRepository(db.DB)
	priceRepo := repository.NewDailyPriceRepository(db.DB)
	fundamentalRepo := repository.NewFundamentalRepository(db.DB)
	newsRepo := repository.NewNewsSentimentRepository(db.DB)
	signalRepo := repository.NewDailySignalRepository(db.DB)
	batchRunRepo := repository.NewBatchRunRepository(db.DB)

	// Initialize engines and services
	aggregator := engine.NewSignalAggregator(priceRepo, fundamentalRepo, newsRepo, signalRepo, engine.NewTechnicalAnalyzer(), appLogger)

	var notifier telegram.Notifier
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	} else {
		notifier = telegram.NewNoopNotifier()
	}

	schedulerSvc := service.NewSchedulerService(cfg, assetRepo, batchRunRepo, redisClient, appLogger)
	workerSvc := service.NewSignalWorkerService(cfg, appLogger, redisClient, aggregator, notifier)

	if err := schedulerSvc.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start scheduler", logger.ErrorField(err))
	}

	redisConsumer := consumer.NewRedisConsumer(cfg, redisClient, workerSvc, appLogger)
	redisConsumer.Start(ctx)

	// Expose Prometheus metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: metricsMux,
	}
	go func() {
		appLogger.Info("Metrics server starting", logger.Field("address", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Metrics server failed to start", logger.ErrorField(err))
		}
	}()

	<-ctx.Done()

	appLogger.Info("Shutting down signal service...")

	schedulerSvc.Stop()
	redisConsumer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Metrics server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Signal service exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "signal-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-signal.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing signal-service CLI: %s\n", err)
		os.Exit(1)
	}
}
