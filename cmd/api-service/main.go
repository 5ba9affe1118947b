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

	"lumia-advisor/internal/api/config"
	delivery "lumia-advisor/internal/api/delivery/http"
	"lumia-advisor/internal/engine"
	"lumia-advisor/internal/repository"
	"lumia-advisor/pkg/logger"
	"lumia-advisor/pkg/postgres"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the advisory API service",
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

	appLogger.Info("Starting API Service", logger.Field("name", cfg.App.Name))

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

	// Initialize repositories
	assetRepo := repository.NewAssetRepository(db.DB)
	priceRepo := repository.NewDailyPriceRepository(db.DB)
	fundamentalRepo := repository.NewFundamentalRepository(db.DB)
	newsRepo := repository.NewNewsSentimentRepository(db.DB)
	signalRepo := repository.NewDailySignalRepository(db.DB)

	// Initialize engines
	analyzer := engine.NewTechnicalAnalyzer()
	advisor := engine.NewAdvisor(assetRepo, priceRepo, fundamentalRepo, newsRepo, analyzer, appLogger)
	aggregator := engine.NewSignalAggregator(priceRepo, fundamentalRepo, newsRepo, signalRepo, analyzer, appLogger)
	freshness := engine.NewFreshnessChecker(assetRepo, priceRepo, signalRepo)
	builder, err := engine.NewPortfolioBuilder(assetRepo, signalRepo, cfg.AllocationPresets(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize portfolio builder", logger.ErrorField(err))
	}

	cacheTTL, err := time.ParseDuration(cfg.Advisor.AnalysisCacheTTL)
	if err != nil {
		appLogger.Fatal("Invalid analysis cache TTL", logger.ErrorField(err))
	}

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	analysisHandler := delivery.NewAnalysisHandler(advisor, cacheTTL, appLogger)
	recommendationHandler := delivery.NewRecommendationHandler(builder, freshness, appLogger)
	signalHandler := delivery.NewSignalHandler(assetRepo, aggregator, appLogger)

	apiV1 := e.Group("/api/v1")
	analysisHandler.RegisterRoutes(apiV1.Group("/analysis"))
	recommendationHandler.RegisterRoutes(apiV1.Group("/recommendations"))
	signalHandler.RegisterRoutes(apiV1.Group("/signals"))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop()
		}
	}()

	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "api-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-api.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing api-service CLI: %s\n", err)
		os.Exit(1)
	}
}
