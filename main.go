package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RugileVa/TiGets/internal/di"
	"github.com/RugileVa/TiGets/internal/metrics"
	"github.com/RugileVa/TiGets/migrations"
	"github.com/RugileVa/TiGets/pkg/config"
	"github.com/RugileVa/TiGets/pkg/database"
	"github.com/RugileVa/TiGets/pkg/logger"
	"github.com/RugileVa/TiGets/pkg/middleware"
	pkgredis "github.com/RugileVa/TiGets/pkg/redis"
	"github.com/RugileVa/TiGets/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("starting marketplace", zap.String("version", cfg.App.Version), zap.String("environment", cfg.App.Environment))

	ctx := context.Background()

	// Initialize tracing
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn("tracing disabled", zap.Error(err))
	}

	// Initialize database connection
	dbCfg := database.FromConfig(cfg.Database, cfg.OTel.Enabled)
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	appLog.Info("database connected", zap.Int32("min_conns", dbCfg.MinConns), zap.Int32("max_conns", dbCfg.MaxConns))
	metrics.RegisterPoolStats(prometheus.DefaultRegisterer, func() metrics.PoolStats { return db.Stats() })

	applied, err := migrations.Apply(ctx, db.Pool())
	if err != nil {
		appLog.Fatal("migrations failed", zap.Error(err))
	}
	if len(applied.Names) > 0 {
		appLog.Info("migrations applied", zap.Strings("files", applied.Names))
	}

	// Redis is optional: without it transfer history is uncached and
	// idempotency keys are not honored
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisCfg := pkgredis.FromConfig(cfg.Redis)
		redisCfg.EnableTracing = cfg.OTel.Enabled
		redisClient, err = pkgredis.NewClient(ctx, redisCfg)
		if err != nil {
			appLog.Warn("redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			appLog.Info("redis connected", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:     db,
		Redis:  redisClient,
		Config: cfg,
	})

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(telemetry.TracingMiddleware())
	router.Use(middleware.Logger(appLog))

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	idempotent := func(c *gin.Context) { c.Next() }
	if redisClient != nil {
		idempotent = middleware.Idempotency(middleware.DefaultIdempotencyConfig(redisClient))
	}
	requireAuth := middleware.RequireAuth(container.AuthService)

	// API routes
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", container.AuthHandler.Register)
		auth.POST("/login", container.AuthHandler.Login)

		v1.GET("/me", requireAuth, container.AuthHandler.Me)
		v1.GET("/users/:username/tickets/market", container.TicketHandler.ListOnMarket)

		tickets := v1.Group("/tickets")
		{
			tickets.GET("/:id", container.TicketHandler.Get)
			tickets.GET("/:id/transfers", container.TicketHandler.Transfers)

			// Write operations with idempotency
			tickets.POST("", requireAuth, idempotent, container.TicketHandler.Import)
			tickets.POST("/:id/buy", requireAuth, idempotent, container.TicketHandler.Buy)
			tickets.PUT("/:id/state", requireAuth, container.TicketHandler.Move)
			tickets.GET("", requireAuth, container.TicketHandler.ListMine)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Start server in goroutine
	go func() {
		appLog.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server forced to shutdown", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Error("failed to flush traces", zap.Error(err))
	}

	appLog.Info("server exited gracefully")
}
