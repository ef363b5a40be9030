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

	"formcoach/server/cache"
	"formcoach/server/config"
	"formcoach/server/estimator"
	"formcoach/server/handlers"
	"formcoach/server/metrics"
	"formcoach/server/middleware"
	"formcoach/server/processor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	router       *gin.Engine
	logger       *zap.Logger
	setProcessor *processor.SetProcessor
	estimator    *estimator.Client
	rateLimiter  *middleware.RateLimiter
	config       *config.Config
}

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	var logger *zap.Logger
	var err error

	if cfg.Logging.Format == "json" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Validate configuration
	if err := cfg.ValidateConfig(logger); err != nil {
		logger.Fatal("Configuration validation failed", zap.Error(err))
	}

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting requests and drain the ones in flight before the
	// processor goes away underneath them.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Shutdown the analysis pipeline, this also closes the result cache
	if err := server.setProcessor.Shutdown(); err != nil {
		logger.Error("Failed to shutdown set processor", zap.Error(err))
	}

	server.rateLimiter.Shutdown()
	server.estimator.Close()

	logger.Info("Server exited")
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry := prometheus.NewRegistry()
	metricsManager := metrics.NewManager("formcoach", "server", registry)

	// Initialize cache, fall back to memory when Redis is unreachable
	var cacheInstance cache.Cache
	if cfg.Cache.Backend == "redis" {
		redisCache, err := cache.NewRedisCache(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			cfg.Analysis.ResultCacheTTL,
			logger,
		)
		if err != nil {
			logger.Warn("Failed to connect to Redis, using memory cache", zap.Error(err))
			cacheInstance = cache.NewMemoryCache(cfg.Cache.MaxEntries, cfg.Cache.CleanupInterval, logger)
		} else {
			cacheInstance = redisCache
		}
	} else {
		cacheInstance = cache.NewMemoryCache(cfg.Cache.MaxEntries, cfg.Cache.CleanupInterval, logger)
	}

	// Initialize pose estimator client
	estimatorClient, err := estimator.NewClient(&cfg.Estimator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create estimator client: %w", err)
	}

	// Initialize set processor
	setProcessor := processor.NewSetProcessor(estimatorClient, cacheInstance, &cfg.Analysis, metricsManager, logger)

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(
		cfg.Security.RateLimitRPS,
		cfg.Security.RateLimitBurst,
		metricsManager,
		logger,
	)

	// Initialize authentication middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.JWTSecretKey, logger)

	// Setup router
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		metricsManager.CounterHandlePanic.Inc()
		logger.Error("Handler panic", zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.Security.MaxRequestSize))
	router.Use(middleware.InputValidation())
	router.Use(middleware.TimeoutHandler(cfg.Security.RequestTimeout))

	// Initialize handlers
	analysisHandler := handlers.NewAnalysisHandler(setProcessor, estimatorClient, logger)
	adminHandler := handlers.NewAdminHandler(setProcessor, estimatorClient, rateLimiter, logger)
	wsHandler := handlers.NewWebSocketHandler(setProcessor, metricsManager, logger)

	// Setup routes
	setupRoutes(router, registry, analysisHandler, adminHandler, wsHandler, authMiddleware, rateLimiter, cfg.Security.AuthRequired)

	return &Server{
		router:       router,
		logger:       logger,
		setProcessor: setProcessor,
		estimator:    estimatorClient,
		rateLimiter:  rateLimiter,
		config:       cfg,
	}, nil
}

func setupRoutes(
	router *gin.Engine,
	registry *prometheus.Registry,
	analysisHandler *handlers.AnalysisHandler,
	adminHandler *handlers.AdminHandler,
	wsHandler *handlers.WebSocketHandler,
	auth *middleware.AuthMiddleware,
	rateLimiter *middleware.RateLimiter,
	authRequired bool,
) {
	// Health check and metrics (no auth required)
	router.GET("/health", analysisHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// WebSocket endpoint. Browsers cannot set headers on the upgrade
	// request, so auth rides in as a query parameter when present.
	router.GET("/ws", rateLimiter.RateLimit(), auth.OptionalAuth(), wsHandler.HandleWebSocket)

	// API routes
	api := router.Group("/api/v1")
	api.Use(rateLimiter.RateLimit())
	if authRequired {
		api.Use(auth.RequireAuth())
	} else {
		api.Use(auth.OptionalAuth())
	}
	{
		api.POST("/analyze", analysisHandler.ProcessSet)
		api.POST("/videos", analysisHandler.SubmitVideo)
		api.GET("/videos/:job_id", analysisHandler.GetVideoJob)
		api.GET("/sessions", analysisHandler.ListSessions)
		api.GET("/sessions/:id", analysisHandler.GetSession)
		api.GET("/stats", analysisHandler.GetStats)

		// Admin endpoints always require authentication
		admin := api.Group("/admin")
		admin.Use(auth.RequireAuth())
		admin.Use(auth.RequireRole("admin"))
		{
			admin.GET("/stats", adminHandler.GetStats)
			admin.POST("/cache/purge", adminHandler.PurgeCache)
		}
	}
}
