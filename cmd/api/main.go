// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/amirunpri2018/image-space/internal/api"
	"github.com/amirunpri2018/image-space/internal/auth"
	"github.com/amirunpri2018/image-space/internal/config"
	"github.com/amirunpri2018/image-space/internal/db"
	"github.com/amirunpri2018/image-space/internal/health"
	"github.com/amirunpri2018/image-space/internal/iqr"
	"github.com/amirunpri2018/image-space/internal/middleware"
	"github.com/amirunpri2018/image-space/internal/search"
	"github.com/amirunpri2018/image-space/internal/session"
	"github.com/amirunpri2018/image-space/internal/solr"
	"github.com/amirunpri2018/image-space/internal/tracing"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file (env vars take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("Image Space API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "imagespace-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Database
	conn, err := db.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mwMetrics := middleware.NewMetrics()
	if err := mwMetrics.Register(registry); err != nil {
		logger.Error("failed to register middleware metrics", "error", err)
		os.Exit(1)
	}
	searchMetrics := search.NewMetrics()
	if err := searchMetrics.Register(registry); err != nil {
		logger.Error("failed to register search metrics", "error", err)
		os.Exit(1)
	}

	// Rate limit store: Redis when configured, in-memory otherwise
	var rateLimitStore middleware.RateLimitStore
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient,
			middleware.WithStoreLogger(logger),
			middleware.WithStoreMetrics(mwMetrics))
		logger.Info("rate limiting backed by redis")
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		rateLimitStore = memStore
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
		logger.Info("rate limiting backed by in-memory store")
	}

	// Backend clients and core service
	engine := iqr.NewClient(cfg.IQRURL, logger)
	index := solr.NewClient(cfg.SolrURL, cfg.SolrChecksumField, logger)
	repo := session.NewPostgresRepository(conn, logger)
	service := search.NewService(repo, engine, index, logger, searchMetrics)

	jwtService := auth.NewJWTService(cfg.JWTSecret)

	sessionHandlers := api.NewSessionHandlers(service)
	searchHandlers := api.NewSearchHandlers(service, cfg.DefaultResultLimit, cfg.MaxResultLimit)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:     health.NewDBChecker(conn),
		EngineChecker: health.NewHTTPChecker("iqr", cfg.IQRURL),
		IndexChecker:  health.NewHTTPChecker("solr", cfg.SolrURL),
		RedisChecker:  newRedisChecker(redisClient),
	})

	mux := newRouter(routerDeps{
		sessions:  sessionHandlers,
		search:    searchHandlers,
		health:    healthHandlers,
		registry:  registry,
		validator: jwtService,
		store:     rateLimitStore,
	})
	handler := chainMiddleware(mux, logger, mwMetrics, rateLimitStore, cfg.TracingEnabled)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracingProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracing", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}

	logger.Info("server stopped")
}

// routerDeps holds everything the route table needs.
type routerDeps struct {
	sessions  *api.SessionHandlers
	search    *api.SearchHandlers
	health    *api.HealthHandlers
	registry  *prometheus.Registry
	validator middleware.TokenValidator
	store     middleware.RateLimitStore
}

// newRouter builds the route table. Session and search routes require a
// bearer token; refine/results additionally carry the tighter per-user
// search rate limit.
func newRouter(d routerDeps) *http.ServeMux {
	mux := http.NewServeMux()

	authMW := middleware.Auth(d.validator)
	searchLimit := middleware.RateLimiter(d.store, middleware.DefaultSearchLimit(), middleware.UserKeyFunc())

	mux.Handle("POST /sessions", authMW(http.HandlerFunc(d.sessions.CreateSession)))
	mux.Handle("GET /sessions", authMW(http.HandlerFunc(d.sessions.ListSessions)))
	mux.Handle("GET /sessions/folder", authMW(http.HandlerFunc(d.sessions.SessionFolder)))
	mux.Handle("PATCH /sessions/{sid}", authMW(http.HandlerFunc(d.sessions.UpdateSession)))
	mux.Handle("PUT /refine", authMW(searchLimit(http.HandlerFunc(d.search.Refine))))
	mux.Handle("GET /results", authMW(searchLimit(http.HandlerFunc(d.search.Results))))

	mux.HandleFunc("GET /health", d.health.Health)
	mux.HandleFunc("GET /health/ready", d.health.Ready)
	mux.Handle("GET /metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"imagespace-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	return mux
}

// chainMiddleware wraps the mux, outermost first: RequestID -> Tracing ->
// HTTPMetrics -> global rate limit -> Logging. HTTPMetrics wraps Logging
// (not the other way around) so that handler context updates still reach
// the logging response writer.
func chainMiddleware(mux http.Handler, logger *slog.Logger, metrics *middleware.Metrics, store middleware.RateLimitStore, tracingEnabled bool) http.Handler {
	handler := middleware.Logging(logger)(mux)
	handler = middleware.RateLimiter(store, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())(handler)
	handler = middleware.HTTPMetrics(metrics)(handler)
	if tracingEnabled {
		handler = middleware.Tracing("imagespace-api")(handler)
	}
	return middleware.RequestID(handler)
}

// newRedisChecker returns a health checker for the optional Redis client.
// A nil client yields a nil checker, which the health handler reports as ok.
func newRedisChecker(client *redis.Client) api.HealthChecker {
	if client == nil {
		return nil
	}
	return health.NewRedisChecker(client)
}
