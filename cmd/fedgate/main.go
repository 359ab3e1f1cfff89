package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/fedgate/pkg/audit"
	"github.com/platinummonkey/fedgate/pkg/auth"
	"github.com/platinummonkey/fedgate/pkg/config"
	"github.com/platinummonkey/fedgate/pkg/httputil"
	"github.com/platinummonkey/fedgate/pkg/middleware"
	"github.com/platinummonkey/fedgate/pkg/observability"
	"github.com/platinummonkey/fedgate/pkg/sso"
	"github.com/platinummonkey/fedgate/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	db, err := postgres.Connect(postgres.ConnectionConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
		Timeout:  cfg.Database.Timeout,
	})
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.RunMigrations(context.Background(), db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	tenants := postgres.NewTenantStore(db)
	users := postgres.NewUserStore(db)
	sessions := postgres.NewSessionStore(db)

	states := sso.NewStateCodec([]byte(cfg.Tokens.StateSecret), cfg.Tokens.StateTTL)

	signer, err := auth.NewTokenSigner(auth.SignerConfig{
		AccessSecret:  []byte(cfg.Tokens.AccessSecret),
		RefreshSecret: []byte(cfg.Tokens.RefreshSecret),
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		Issuer:        cfg.Tokens.Issuer,
	})
	if err != nil {
		logger.WithError(err).Error("failed to configure token signer")
		os.Exit(1)
	}
	issuer := auth.NewIssuer(signer, sessions, cfg.Tokens.RefreshTTL)

	ctx := context.Background()
	registry, err := buildRegistry(ctx, cfg, tenants, states, logger)
	if err != nil {
		logger.WithError(err).Error("failed to configure oauth providers")
		os.Exit(1)
	}

	// A nil SAML adapter disables the SAML flows; the gateway reports them as
	// not configured.
	var samlAdapter *sso.SAMLAdapter
	if cfg.SAML.Enabled {
		samlAdapter = sso.NewSAMLAdapter(tenants, states, cfg.Server.BaseURL)
	}
	resolver := sso.NewResolver(users)
	gateway := sso.NewGateway(registry, samlAdapter, resolver, issuer, tenants, states, logger, metrics)
	gateway.SetAuditor(audit.NewStore(db))
	handlers := sso.NewHandlers(gateway, logger)

	router := mux.NewRouter()
	router.Use(httputil.RecoveryMiddleware(logger))
	if cfg.Observability.MetricsEnabled {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	var initiateMiddleware []mux.MiddlewareFunc
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, "fedgate:initiate", cfg.RateLimit.Requests, cfg.RateLimit.Window)
		initiateMiddleware = append(initiateMiddleware, middleware.RateLimit(limiter, logger))
	}
	handlers.RegisterRoutes(router, initiateMiddleware...)
	handlers.RegisterAuthenticatedRoutes(router, middleware.RequireAuth(signer))

	health := observability.NewHealthChecker(db, redisClient)
	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	healthRouter.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter,
	}

	// Hourly purge of expired sessions
	scheduler := cron.New()
	_, err = scheduler.AddFunc("@hourly", func() {
		purged, err := sessions.PurgeExpired(context.Background(), time.Now())
		if err != nil {
			logger.WithError(err).Warn("session purge failed")
			return
		}
		if purged > 0 {
			metrics.RecordSessionsPurged(purged)
			logger.WithField("purged", purged).Info("purged expired sessions")
		}
	})
	if err != nil {
		logger.WithError(err).Error("failed to schedule session purge")
		os.Exit(1)
	}
	scheduler.Start()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("federation gateway listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case <-groupCtx.Done():
		logger.Warn("server exited, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	<-scheduler.Stop().Done()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("api server shutdown error")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("health server shutdown error")
	}
	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("server error")
		os.Exit(1)
	}

	logger.Info("gateway stopped")
}

// buildRegistry configures an adapter for every provider with credentials.
// Providers without credentials are skipped so a deployment can enable any
// subset.
func buildRegistry(ctx context.Context, cfg *config.Config, tenants sso.TenantStore, states *sso.StateCodec, logger *observability.Logger) (*sso.Registry, error) {
	var adapters []sso.OAuthAdapter

	if cfg.Providers.Google.Configured() {
		adapter := sso.NewGoogleAdapter(tenants, states, sso.ClientCredentials{
			ClientID:     cfg.Providers.Google.ClientID,
			ClientSecret: cfg.Providers.Google.ClientSecret,
			RedirectURL:  cfg.Providers.Google.RedirectURL,
		}, nil)
		fetcher, err := sso.NewOIDCFetcher(ctx, "https://accounts.google.com", adapter.OAuthConfig(), false)
		if err != nil {
			return nil, err
		}
		adapter.SetFetcher(fetcher)
		adapters = append(adapters, adapter)
		logger.Info("google provider enabled")
	}

	if cfg.Providers.Microsoft.Configured() {
		adapter := sso.NewMicrosoftAdapter(tenants, states, sso.ClientCredentials{
			ClientID:     cfg.Providers.Microsoft.ClientID,
			ClientSecret: cfg.Providers.Microsoft.ClientSecret,
			RedirectURL:  cfg.Providers.Microsoft.RedirectURL,
		}, nil)
		// The multi-tenant endpoint issues per-tenant issuer URLs, which
		// the discovery document's static issuer cannot match.
		fetcher, err := sso.NewOIDCFetcher(ctx, "https://login.microsoftonline.com/common/v2.0", adapter.OAuthConfig(), true)
		if err != nil {
			return nil, err
		}
		adapter.SetFetcher(fetcher)
		adapters = append(adapters, adapter)
		logger.Info("microsoft provider enabled")
	}

	if cfg.Providers.GitHub.Configured() {
		adapter := sso.NewGitHubAdapter(tenants, states, sso.ClientCredentials{
			ClientID:     cfg.Providers.GitHub.ClientID,
			ClientSecret: cfg.Providers.GitHub.ClientSecret,
			RedirectURL:  cfg.Providers.GitHub.RedirectURL,
		}, nil)
		adapter.SetFetcher(sso.NewGitHubFetcher(adapter.OAuthConfig(), ""))
		adapters = append(adapters, adapter)
		logger.Info("github provider enabled")
	}

	return sso.NewRegistry(adapters...), nil
}
