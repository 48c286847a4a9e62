package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/tag-a-log/api/openapi"
	"github.com/benvon/tag-a-log/internal/config"
	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/handlers"
	"github.com/benvon/tag-a-log/internal/logger"
	"github.com/benvon/tag-a-log/internal/middleware"
	"github.com/benvon/tag-a-log/internal/services/account"
	"github.com/benvon/tag-a-log/internal/services/export"
	"github.com/benvon/tag-a-log/internal/services/identity"
	"github.com/benvon/tag-a-log/internal/services/oidc"
	"github.com/benvon/tag-a-log/internal/telemetry"
	"github.com/benvon/tag-a-log/internal/workers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid server configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(telemetry.ServerService, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", handlers.Version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("store_driver", cfg.StoreDriver),
		zap.Bool("redis_enabled", cfg.RedisURL != ""),
		zap.Bool("federated_enabled", cfg.OIDC().Enabled()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx := context.Background()

	shutdownTracing, tracing := telemetry.Setup(ctx, cfg.OTELEnabled, telemetry.ServerService, handlers.Version, cfg.OTELEndpoint, zapLogger)
	defer shutdownTracing()

	store, err := database.Open(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_open_store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Warn("failed_to_close_store", zap.Error(err))
		}
	}()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	var revoker identity.Revoker = identity.NewMemoryRevoker()
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		revoker = identity.NewRedisRevoker(redisClient)
		zapLogger.Info("connected_to_redis")
	}

	// Repositories
	tagRepo := database.NewTagRepository(store)
	logRepo := database.NewLogRepository(store)
	accountRepo := database.NewAccountRepository(store)
	identityRepo := database.NewIdentityRepository(store)
	settingsRepo := database.NewSettingsRepository(store)

	// Federated sign-in stays nil unless configured
	var verifier identity.IDTokenVerifier
	var exchanger handlers.CodeExchanger
	if oidcCfg := cfg.OIDC(); oidcCfg.Enabled() {
		provider := oidc.NewProvider(oidcCfg)
		verifier = oidc.NewVerifier(oidc.NewJWKSManager(), provider)
		if oidcCfg.RedirectURI != "" {
			exchanger = oidc.NewClient(oidcCfg, provider.Endpoints(ctx))
		}
		zapLogger.Info("federated_sign_in_enabled",
			zap.String("issuer", oidcCfg.Issuer),
			zap.Bool("code_flow", exchanger != nil),
		)
	}

	// Services
	tokens := identity.NewTokenIssuer([]byte(cfg.SessionSigningKey), cfg.SessionTTL)
	identityService := identity.NewService(identityRepo, accountRepo, tokens, revoker, verifier, zapLogger)
	accountManager := account.NewManager(accountRepo, zapLogger)
	exporter := export.NewExporter(logRepo, time.Local)

	// Hot-reloaded CORS and rate limit settings
	corsReloader := middleware.NewCORSReloader(settingsRepo, cfg.FrontendURL, zapLogger, time.Minute)
	limiterStore, err := middleware.NewLimiterStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, settingsRepo, cfg.RateLimit, zapLogger, time.Minute)
	rateLimitMW := rateLimitReloader.Middleware()

	// Handlers
	streamer := handlers.NewStreamer(corsReloader.AllowsOrigin, zapLogger)
	authHandler := handlers.NewAuthHandler(identityService, accountManager, exchanger, zapLogger)
	tagHandler := handlers.NewTagHandler(tagRepo, streamer, zapLogger)
	logHandler := handlers.NewLogHandler(logRepo, exporter, streamer, zapLogger)
	accountHandler := handlers.NewAccountHandler(accountManager, zapLogger)
	healthChecker := handlers.NewHealthChecker(map[string]handlers.HealthCheck{
		"store": store.Ping,
		"redis": redisHealthCheck(redisClient),
	})

	r := mux.NewRouter()

	// Middleware registered first wraps outermost
	if tracing {
		r.Use(otelmux.Middleware(telemetry.ServerService))
	}
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", handlers.VersionInfo).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	handlers.NewOpenAPIHandler(openapi.Document).RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	// Sign-up and sign-in are public but rate limited
	publicAuthRouter := apiRouter.PathPrefix("/auth").Subrouter()
	publicAuthRouter.Use(rateLimitMW)
	authHandler.RegisterPublicRoutes(publicAuthRouter)

	protectedRouter := apiRouter.PathPrefix("").Subrouter()
	protectedRouter.Use(middleware.Auth(identityService, zapLogger))
	protectedRouter.Use(rateLimitMW)
	authHandler.RegisterProtectedRoutes(protectedRouter.PathPrefix("/auth").Subrouter())
	tagHandler.RegisterRoutes(protectedRouter.PathPrefix("/tags").Subrouter())
	logHandler.RegisterRoutes(protectedRouter.PathPrefix("/logs").Subrouter())
	accountHandler.RegisterRoutes(protectedRouter.PathPrefix("/account").Subrouter())

	// Preflight requests; the CORS middleware has already answered them
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   35 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go corsReloader.Start(bgCtx)
	go rateLimitReloader.Start(bgCtx)

	if cfg.ServerRunsPurge {
		eraser := account.NewEraser(accountRepo, identityService, zapLogger)
		sweeper := workers.NewSweeper(accountRepo, workers.NewInlineDispatcher(eraser), zapLogger)
		scheduler := workers.NewScheduler(sweeper, cfg.PurgeInterval, zapLogger)
		go func() {
			if err := scheduler.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("purge_scheduler_stopped_with_error", zap.Error(err))
			}
		}()
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

func redisHealthCheck(client *redis.Client) handlers.HealthCheck {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
