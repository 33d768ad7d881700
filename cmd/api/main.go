package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gisulro/jeju-sme-strategy-app/internal/cache"
	"github.com/gisulro/jeju-sme-strategy-app/internal/config"
	"github.com/gisulro/jeju-sme-strategy-app/internal/events"
	"github.com/gisulro/jeju-sme-strategy-app/internal/features"
	"github.com/gisulro/jeju-sme-strategy-app/internal/handler"
	"github.com/gisulro/jeju-sme-strategy-app/internal/middleware"
	"github.com/gisulro/jeju-sme-strategy-app/internal/service"
	"github.com/gisulro/jeju-sme-strategy-app/internal/store"
	"github.com/gisulro/jeju-sme-strategy-app/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Optional JSON config file path")
	flag.Parse()

	// .env is optional; env vars always win.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	tracer, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	_ = tracer
	defer tracing.Shutdown(context.Background())

	db, err := store.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	var c cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisCache.Close()
		c = redisCache
		logger.Info("using redis cache", zap.String("addr", cfg.Redis.Addr))
	} else {
		c = cache.NewMemoryCache()
	}

	flags := features.NewManager()
	defer flags.Shutdown()
	flags.Register(features.FeatureStrictIDs, cfg.App.StrictIDs, "collision re-draw on senior id generation")
	flags.Register(features.FeatureCacheEnabled, cfg.App.MetricsCacheTTLSeconds > 0, "dashboard metrics cache")
	flags.Register(features.FeatureEventHooksEnabled, true, "in-process event hooks")

	em := events.NewManager(flags.IsEnabled(features.FeatureEventHooksEnabled))
	defer em.Shutdown()
	subscribeEventLog(em, logger)

	metricsTTL := time.Duration(cfg.App.MetricsCacheTTLSeconds) * time.Second
	if !flags.IsEnabled(features.FeatureCacheEnabled) {
		metricsTTL = 0
	}

	svc := service.NewService(db, em, c, logger, service.Options{
		PublicURL:          cfg.App.PublicURL,
		StoreName:          cfg.App.StoreName,
		CouponPrefix:       cfg.App.CouponPrefix,
		AlertThresholdDays: cfg.App.AlertThresholdDays,
		MetricsCacheTTL:    metricsTTL,
		StrictIDs:          flags.IsEnabled(features.FeatureStrictIDs),
	})

	h := handler.NewHandler(svc)

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.Tracing.Enabled {
		r.Use(middleware.TracingMiddleware())
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h.Routes(r)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("addr", addr),
		zap.String("database", cfg.Database.Path),
		zap.String("public_url", cfg.App.PublicURL),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// subscribeEventLog attaches a structured-log sink to every event type.
func subscribeEventLog(em *events.Manager, logger *zap.Logger) {
	logEvent := func(ctx context.Context, e events.Event) error {
		logger.Info("event",
			zap.String("type", string(e.Type)),
			zap.Time("at", e.Timestamp),
		)
		return nil
	}

	for _, t := range []events.EventType{
		events.EventCouponIssued,
		events.EventCouponVerified,
		events.EventSeniorRegistered,
		events.EventVisitRecorded,
		events.EventFundEntryAppended,
	} {
		em.Subscribe(t, logEvent)
	}
}
