package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"opsauth/internal/adapters/api"
	"opsauth/internal/adapters/api/middleware"
	rediscache "opsauth/internal/adapters/cache/redis"
	"opsauth/internal/adapters/db/memory"
	pgrepo "opsauth/internal/adapters/db/postgres"
	appauth "opsauth/internal/application/auth"
	"opsauth/internal/config"
	domainauth "opsauth/internal/domain/auth"
	"opsauth/internal/infrastructure/backend"
	"opsauth/internal/infrastructure/identity"
	"opsauth/internal/infrastructure/metrics"
	"opsauth/internal/infrastructure/session"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Str("verifier", cfg.Auth.Verifier).
		Str("issuer_url", cfg.Auth.IssuerURL).
		Strs("allowed_domains", cfg.Auth.AllowedDomains).
		Msg("Starting opsauth server")

	directory, closeDirectory, err := openDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDirectory()

	var claimsDirectory domainauth.IdentityDirectory = directory
	if cfg.Redis.Enabled {
		client, err := rediscache.NewClient(ctx, rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		claimsDirectory = rediscache.NewClaimsCache(directory, client, cfg.Redis.ClaimsTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.ClaimsTTL).Msg("Custom claims cache enabled")
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	var health domainauth.HealthChecker
	if cfg.Backend.BaseURL != "" {
		client, err := backend.NewHealthClient(backend.Config{BaseURL: cfg.Backend.BaseURL, APIKey: cfg.Backend.APIKey})
		if err != nil {
			return err
		}
		health = client
	} else {
		log.Warn().Msg("BACKEND_BASE_URL not set - skipping backend pre-flight checks")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(metrics.Config{Registry: registry})

	authService := appauth.NewService(verifier, claimsDirectory, health, newEmailPolicy(cfg),
		appauth.WithRecorder(recorder),
		appauth.WithTimeouts(cfg.Backend.HealthTimeout, cfg.Auth.VerifyTimeout),
	)
	sessions := session.NewManager(cookieConfig(cfg))

	if err := verifier.Available(ctx); err != nil {
		log.Warn().Err(err).Msg("Token verifier not ready yet - logins will report AUTH_UNAVAILABLE until it recovers")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AllowedOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))
	r.Use(middleware.PageGuard(middleware.PageGuardConfig{CookieName: sessions.Config().Name}))

	handler := api.NewHandler(authService, sessions)
	handler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting opsauth server on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down opsauth server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openDirectory returns the identity directory selected by the configuration.
// The Postgres directory runs pending migrations first.
func openDirectory(ctx context.Context, cfg *config.Config) (domainauth.IdentityAdmin, func(), error) {
	if !cfg.Database.Enabled {
		log.Warn().Msg("DB disabled - using in-memory identity directory")
		return memory.NewIdentityDirectory(), func() {}, nil
	}

	log.Info().Msg("Initializing Postgres identity directory")
	if err := migrate(ctx, cfg); err != nil {
		return nil, nil, err
	}
	pool, err := pgrepo.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	return pgrepo.NewIdentityDirectory(pool), pool.Close, nil
}

// migrate applies the schema migrations, from DB_MIGRATIONS when set
func migrate(ctx context.Context, cfg *config.Config) error {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := pgrepo.OpenDB(pingCtx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var migrations fs.FS = pgrepo.Migrations
	if cfg.Database.Migrations != "" {
		migrations = os.DirFS(cfg.Database.Migrations)
	}
	if err := pgrepo.RunMigrations(ctx, db, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func newVerifier(cfg *config.Config) (domainauth.TokenVerifier, error) {
	vcfg := identity.Config{
		IssuerURL: cfg.Auth.IssuerURL,
		Audience:  cfg.Auth.Audience,
		JWKSURL:   cfg.Auth.JWKSURL,
		CacheTTL:  time.Duration(cfg.Auth.JWKSCacheTTL) * time.Second,
		Leeway:    cfg.Auth.ClockSkew,
	}
	if cfg.Auth.Verifier == "oidc" {
		return identity.NewOIDCVerifier(vcfg)
	}
	return identity.NewJWKSVerifier(vcfg)
}

func newEmailPolicy(cfg *config.Config) *domainauth.EmailPolicy {
	return domainauth.NewEmailPolicy(cfg.Auth.AllowedDomains, domainauth.NewStaticAllowlist(cfg.Auth.Allowlist...))
}

func cookieConfig(cfg *config.Config) session.CookieConfig {
	cookies := session.ConfigForEnvironment(cfg.Environment, cfg.Auth.SessionMaxAge)
	cookies.Domain = cfg.Auth.CookieDomain
	if cfg.Auth.ForceSecure {
		cookies.Secure = true
	}
	return cookies
}
