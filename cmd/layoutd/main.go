package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamlayout/internal/core/layout"
	"streamlayout/internal/core/services"
	httphandlers "streamlayout/internal/handlers/http"
	"streamlayout/internal/infrastructure/middleware"
	"streamlayout/internal/infrastructure/monitoring"
	"streamlayout/internal/infrastructure/repositories"
	wsignal "streamlayout/internal/infrastructure/signal"
	"streamlayout/pkg/config"
	"streamlayout/pkg/logger"
	"streamlayout/pkg/retry"
	"streamlayout/pkg/tracing"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var configPaths = []string{
	"configs/config.yaml",
	"/etc/streamlayout/config.yaml",
	"config.yaml",
}

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("STREAMLAYOUT_CONFIG"); path != "" {
		return config.Load(path)
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	// No file anywhere: defaults plus env overrides.
	return config.Load(configPaths[0])
}

func main() {
	startTime := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		logger.New("info").Sugar().Fatalw("failed to load configuration", "error", err)
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	clk := clock.New()

	repoFactory, err := repositories.NewRepositoryFactory(cfg, clk, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	sessionRepo := repoFactory.CreateSessionRepository()
	publisher := repoFactory.CreateEventPublisher()

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	layoutService := services.NewLayoutService(
		services.LayoutServiceConfig{
			Constraints: layout.Constraints{
				MaxPinnedStreams:    cfg.Layout.MaxPinnedStreams,
				MaxMosaicStreams:    cfg.Layout.MaxMosaicStreams,
				MaxThumbnailStreams: cfg.Layout.MaxThumbnailStreams,
			},
			DefaultCameraRear: cfg.Layout.DefaultCameraRear,
			Debounce:          cfg.Layout.Debounce,
			UpgradeDebounce:   cfg.Layout.UpgradeDebounce,
		},
		sessionRepo,
		collector,
		publisher,
		clk,
		log,
	)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddSessionRepositoryCheck(sessionRepo, 30*time.Second, time.Second)
	if client := repoFactory.RedisClient(); client != nil {
		healthChecker.AddRedisCheck(client, 30*time.Second, 2*time.Second)
	}

	busCtx, stopBus := context.WithCancel(context.Background())
	if bus := repoFactory.EventBus(); bus != nil {
		go bus.Follow(busCtx, nil, retry.DefaultConfig())
	}

	sessionHandler := httphandlers.NewSessionHandler(layoutService, authService, repoFactory.EventHistory(), log)
	wsServer := wsignal.NewWebSocketServer(layoutService, authService, cfg, log)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	sessionHandler.SetupRoutes(router)
	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"uptime":      time.Since(startTime).String(),
			"connections": wsServer.ConnectionCount(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := healthChecker.CheckAll(ctx)
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting stream layout server",
			"address", cfg.Server.Address,
			"instance_id", repoFactory.InstanceID(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down stream layout server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}
	wsServer.Shutdown()

	// Flush pending recomputations so the last layouts reach the bus.
	ids, err := layoutService.ListSessions(shutdownCtx)
	if err != nil {
		log.Warnw("failed to list sessions on shutdown", "error", err)
	}
	for _, id := range ids {
		if session, err := layoutService.GetSession(shutdownCtx, id); err == nil {
			session.Flush()
		}
		if err := layoutService.CloseSession(shutdownCtx, id); err != nil {
			log.Warnw("failed to close session", "session_id", id, "error", err)
		}
	}

	stopBus()
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer provider", "error", err)
	}

	log.Info("Stream layout server stopped")
}
