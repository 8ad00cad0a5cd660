// Package main provides the main entry point for the detailing pricing service
//
// @title Detailing Pricing API
// @version 1.0
// @description Dynamic pricing engine for mobile car-detailing services
// @BasePath /
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/amirphl/detailing-pricing/app/handlers"
	"github.com/amirphl/detailing-pricing/app/router"
	"github.com/amirphl/detailing-pricing/app/scheduler"
	"github.com/amirphl/detailing-pricing/app/services"
	businessflow "github.com/amirphl/detailing-pricing/business_flow"
	"github.com/amirphl/detailing-pricing/config"
	"github.com/amirphl/detailing-pricing/repository"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	metrics   *fiber.App
	logger    *slog.Logger
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, closeLog := initializeLogger(cfg.Logging)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting detailing pricing service",
		"environment", cfg.Deployment.Environment,
		"version", cfg.Deployment.Version,
		"commit", cfg.Deployment.CommitHash,
	)

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.Error("server stopped with error", "error", err)
			os.Exit(1)
		}
	}()

	if app.metrics != nil {
		go func() {
			address := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("metrics server starting", "address", address, "path", cfg.Metrics.Path)
			if err := app.metrics.Listen(address, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
				logger.Error("metrics server stopped with error", "error", err)
			}
		}()
	}

	<-sigChan
	logger.Info("shutting down gracefully")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	if app.metrics != nil {
		if err := app.metrics.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("error during metrics shutdown", "error", err)
		}
	}

	logger.Info("server stopped")
}

// initializeLogger builds the process logger. File output rotates through lumberjack.
func initializeLogger(cfg config.LoggingConfig) (*slog.Logger, func()) {
	var writers []io.Writer
	closeFn := func() {}

	if cfg.Output == "stdout" || cfg.Output == "both" || cfg.Output == "" {
		writers = append(writers, os.Stdout)
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writers = append(writers, rotator)
		closeFn = func() { _ = rotator.Close() }
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	out := io.MultiWriter(writers...)
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler).With("service", "detailing-pricing"), closeFn
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(
			slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
			gormlogger.Config{
				SlowThreshold:             cfg.SlowQueryTime,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
	)

	return db, nil
}

// initializeCache returns a Redis client when the redis provider is configured, nil otherwise
func initializeCache(cfg config.CacheConfig, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis connection established", "db", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis. The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *slog.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeMetricsServer exposes the prometheus registry on its own listener
func initializeMetricsServer(cfg config.MetricsConfig) *fiber.App {
	if !cfg.Enabled {
		return nil
	}
	app := fiber.New(fiber.Config{AppName: "Detailing Pricing Metrics"})
	app.Get(cfg.Path, adaptor.HTTPHandler(promhttp.Handler()))
	return app
}

// initializeApplication wires repositories, flows, handlers and background jobs
func initializeApplication(cfg *config.ProductionConfig, logger *slog.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval, logger))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	}

	// Repositories
	serviceRepo := repository.NewServiceRepository(db)
	pricingRepo := repository.NewDynamicPricingRepository(db)
	historyRepo := repository.NewPriceHistoryRepository(db)
	txManager := repository.NewTxManager(db)

	// Services
	clock := utils.SystemClock{}
	var priceCache services.PriceCache = services.NopPriceCache{}
	if cfg.Cache.Enabled {
		priceCache = services.NewPriceCache(rc, cfg.Cache.RedisPrefix, cfg.Cache.DefaultTTL, cfg.Pricing.QuoteCacheSize, logger)
	}

	// Business flows
	pricingFlow := businessflow.NewPricingFlow(serviceRepo, pricingRepo, historyRepo, txManager, priceCache, clock, cfg.Pricing)
	catalogFlow := businessflow.NewServiceCatalogFlow(serviceRepo, clock)

	// Handlers
	pricingHandler := handlers.NewPricingHandler(pricingFlow, logger)
	serviceHandler := handlers.NewServiceHandler(catalogFlow, logger)

	appRouter := router.NewFiberRouter(cfg, logger, pricingHandler, serviceHandler)

	if cfg.Pricing.SchedulerEnabled {
		sched := scheduler.NewPricingScheduler(pricingFlow, logger, clock, cfg.Pricing.SchedulerInterval, cfg.Pricing.SchedulerConcurrency)
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
		logger.Info("pricing scheduler started", "interval", cfg.Pricing.SchedulerInterval.String())
	}

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		metrics:   initializeMetricsServer(cfg.Metrics),
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}
