// Package main is the entrypoint for the Portalo analytics API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/portalo/portalo/internal/analytics"
	"github.com/portalo/portalo/internal/cache"
	"github.com/portalo/portalo/internal/config"
	"github.com/portalo/portalo/internal/handler"
	"github.com/portalo/portalo/internal/metrics"
	"github.com/portalo/portalo/internal/middleware"
	"github.com/portalo/portalo/internal/repository"
	"github.com/portalo/portalo/internal/server"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.MigrateOnStart {
		if err := migrateUp(cfg.DatabaseURL, logger); err != nil {
			logger.Error("failed to apply migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsRecorder := metrics.NewPrometheus(registry)

	// Services
	directory := repository.NewDirectoryRepository(repo)
	events := repository.NewEventRepository(repo)
	plans := cache.NewPlanCache(cacheClient, directory, cfg.PlanCacheTTL, logger, metricsRecorder)
	links := cache.NewLinkMetaCache(directory, cfg.LinkCacheSize, cfg.LinkCacheTTL, metricsRecorder)

	analyticsService := analytics.NewService(analytics.Deps{
		Events:       events,
		Pages:        directory,
		Links:        links,
		Entitlements: analytics.NewPlanEntitlements(plans),
		Logger:       logger,
		Metrics:      metricsRecorder,
	}, analytics.Config{
		ExportRowLimit: cfg.ExportRowLimit,
		LiveInterval:   cfg.LiveInterval,
		LiveBatchLimit: cfg.LiveBatchLimit,
		AppDomain:      cfg.AppDomain,
	})
	ingestor := analytics.NewIngestor(events, logger, metricsRecorder)
	liveHub := analytics.NewLiveHub()

	// Handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, liveHub, logger)
	trackHandler := handler.NewTrackHandler(ingestor, logger, cfg.MaxTrackBodySize)

	r := setupRouter(routes{
		base:      h,
		health:    healthHandler,
		analytics: analyticsHandler,
		track:     trackHandler,
		metrics:   handler.NewMetricsHandler(registry),
	}, repo, cacheClient, metricsRecorder, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Registered first, closed last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("live-hub", liveHub.Shutdown)

	srv.OnDrain("readiness", healthHandler.SetDraining)
	srv.OnDrain("live-hub", liveHub.Close)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"app_domain", cfg.AppDomain,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func migrateUp(databaseURL string, logger *slog.Logger) error {
	m, err := repository.NewMigrator(databaseURL, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

type routes struct {
	base      *handler.Handler
	health    *handler.HealthHandler
	analytics *handler.AnalyticsHandler
	track     *handler.TrackHandler
	metrics   http.Handler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	rt routes,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	recorder metrics.Recorder,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Operational endpoints (no auth required)
	r.Get("/healthz", rt.health.Healthz)
	r.Get("/readyz", rt.health.Readyz)
	r.Method(http.MethodGet, "/metrics", rt.metrics)

	authCfg := middleware.AuthConfig{
		Logger:        logger,
		Keys:          repo,
		Cache:         cacheClient,
		Metrics:       recorder,
		AllowTestKeys: cfg.TestKeysAllowed(),
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:       logger,
		Cache:        cacheClient,
		Metrics:      recorder,
		APIEnabled:   cfg.RateLimitAPIEnabled,
		TrackEnabled: cfg.TrackRateLimitEnabled,
		TrackRPS:     cfg.TrackRateLimitRPS,
		TrackBurst:   cfg.TrackRateLimitBurst,
	}

	dashboardCORS := middleware.DefaultCORSConfig()
	dashboardCORS.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Owner analytics (API key required)
	r.Route("/analytics", func(r chi.Router) {
		r.Use(middleware.CORS(dashboardCORS))
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAnalyticsRead())
			r.Get("/overview", rt.analytics.Overview)
			r.Get("/timeseries", rt.analytics.Timeseries)
			r.Get("/hourly", rt.analytics.Hourly)
			r.Get("/breakdown", rt.analytics.Breakdown)
			r.Get("/top-links", rt.analytics.TopLinks)
			r.Get("/export", rt.analytics.Export)
			r.Get("/live", rt.analytics.Live)
		})
		r.With(middleware.RequireAnalyticsShare()).Post("/share", rt.analytics.Share)
	})

	// Public ingestion with IP-based rate limiting
	r.Route("/public", func(r chi.Router) {
		r.Use(middleware.CORS(middleware.TrackCORSConfig(cfg.GetTrackAllowedOrigins())))
		r.With(middleware.RateLimitTrack(rateLimitCfg)).Post("/track", rt.track.Track)
	})

	// Public shared summary (token is the credential)
	r.With(middleware.CORS(dashboardCORS)).Get("/shared/analytics/{token}", rt.analytics.Shared)

	r.NotFound(rt.base.NotFound)
	r.MethodNotAllowed(rt.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
