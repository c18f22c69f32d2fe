package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hospimetrics/hospimetrics/internal/config"
	"github.com/hospimetrics/hospimetrics/internal/domain/analytics"
	"github.com/hospimetrics/hospimetrics/internal/domain/catalog"
	"github.com/hospimetrics/hospimetrics/internal/domain/records"
	"github.com/hospimetrics/hospimetrics/internal/platform/cache"
	"github.com/hospimetrics/hospimetrics/internal/platform/db"
	"github.com/hospimetrics/hospimetrics/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "analytics-server",
		Short: "Hospital operations analytics API server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analytics API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Result cache: Redis when configured, else in-process
	var store cache.Store
	if cfg.RedisURL != "" {
		redisStore, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisStore.Close()
		store = redisStore
		logger.Info().Msg("using redis result cache")
	} else {
		memStore := cache.NewMemoryStore()
		cleanupCtx, cancelCleanup := context.WithCancel(ctx)
		defer cancelCleanup()
		memStore.StartCleanup(cleanupCtx, time.Minute)
		store = memStore
		logger.Info().Msg("using in-memory result cache")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Analytics engine
	thresholds := analytics.Thresholds{
		BedOccupancyPct:          cfg.BedOccupancyAlertPct,
		LongStayDays:             cfg.LongStayDays,
		DoctorUtilizationPct:     cfg.DoctorUtilizationCeiling,
		EmergencySurgeMultiplier: cfg.EmergencySurgeMultiplier,
		ShortageHourCount:        cfg.ShortageHourCount,
		MovingAverageWindow:      cfg.MovingAverageWindow,
	}
	svc := analytics.NewService(
		records.NewRepositoryPG(pool),
		catalog.NewLookupPG(pool),
		store,
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
		thresholds,
		cfg.TransferAsScheduled,
	)
	analytics.NewHandler(svc).Register(e.Group("/api"))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
