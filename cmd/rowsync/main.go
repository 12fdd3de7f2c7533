// Package main provides the entry point for the sync service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alselawi/apexo-database/internal/cache"
	"github.com/alselawi/apexo-database/internal/config"
	apierrors "github.com/alselawi/apexo-database/internal/errors"
	"github.com/alselawi/apexo-database/internal/handler"
	"github.com/alselawi/apexo-database/internal/health"
	"github.com/alselawi/apexo-database/internal/identity"
	"github.com/alselawi/apexo-database/internal/metrics"
	"github.com/alselawi/apexo-database/internal/server"
	"github.com/alselawi/apexo-database/internal/service"
	"github.com/alselawi/apexo-database/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("starting rowsync",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.Strings("tables", cfg.Sync.Tables),
	)

	// Initialize row store + change log backend
	st, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer st.Close()
	logger.Info("store initialized")

	// Initialize cache backend
	kv, err := buildKVCache(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize cache backend", zap.Error(err))
	}
	defer kv.Close()
	logger.Info("cache backend initialized")

	queryCache := cache.New(kv, cfg.Cache.TTL, logger)

	// Initialize metrics
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Start metrics server if enabled
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	// Initialize identity verifier
	verifier := buildVerifier(cfg, logger)

	// Initialize services and handlers
	syncService := service.NewSyncService(st, queryCache, m, logger)
	errorHandler := apierrors.NewHandler(logger)
	syncHandler := handler.NewSyncHandler(syncService, cfg.Sync.Tables, errorHandler, m, logger)
	healthChecker := health.NewHealthChecker(st, kv, logger)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg, syncHandler, healthChecker, verifier, errorHandler, logger)
	httpServer.SetupRoutes()

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	logger.Info("HTTP server started", zap.Int("port", cfg.Server.Port))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	logger.Info("rowsync shutdown complete")
}

// buildStore creates the configured row store + change log backend.
func buildStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(
			cfg.Storage.Postgres.Host,
			cfg.Storage.Postgres.Port,
			cfg.Storage.Postgres.Database,
			cfg.Storage.Postgres.User,
			cfg.Storage.Postgres.Password,
			cfg.Storage.Postgres.MaxConnections,
			cfg.Storage.Postgres.MinConnections,
			logger,
		)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(context.Background()); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// buildKVCache creates the configured cache backend.
func buildKVCache(cfg *config.Config, logger *zap.Logger) (store.KVCache, error) {
	switch cfg.Cache.Driver {
	case "redis":
		return store.NewRedisCache(
			cfg.Cache.Redis.Host,
			cfg.Cache.Redis.Port,
			cfg.Cache.Redis.Password,
			cfg.Cache.Redis.DB,
			logger,
		)
	case "memory":
		return store.NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

// buildVerifier creates the configured identity verifier.
func buildVerifier(cfg *config.Config, logger *zap.Logger) identity.Verifier {
	if cfg.Identity.Mode == "static" {
		logger.Warn("using static identity tokens; do not use in production")
		return identity.NewStaticVerifier(cfg.Identity.StaticTokens)
	}
	return identity.NewHTTPVerifier(
		cfg.Identity.Endpoint,
		cfg.Identity.Timeout,
		cfg.Identity.TokenCacheLen,
		cfg.Identity.TokenCacheTTL,
		logger,
	)
}

// initLogger initializes the zap logger from the logging config.
func initLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	return logger
}
