package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strangerdangercoffee/portal/internal/config"
	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/handler"
	"github.com/strangerdangercoffee/portal/internal/infra/cache"
	"github.com/strangerdangercoffee/portal/internal/infra/emailjs"
	"github.com/strangerdangercoffee/portal/internal/infra/memory"
	"github.com/strangerdangercoffee/portal/internal/infra/observability"
	"github.com/strangerdangercoffee/portal/internal/infra/postgres"
	"github.com/strangerdangercoffee/portal/internal/infra/resilience"
	"github.com/strangerdangercoffee/portal/internal/infra/supabase"
	"github.com/strangerdangercoffee/portal/internal/infra/token"
	"github.com/strangerdangercoffee/portal/internal/port"
	"github.com/strangerdangercoffee/portal/internal/service"

	"go.uber.org/zap"
)

// backend is the storage and identity wiring selected by BACKEND.
type backend struct {
	profiles port.ProfileStore
	requests port.RequestStore
	auth     port.AuthProvider
	checks   []handler.HealthCheck
	close    func()
}

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "failed to read .env:", err)
		os.Exit(1)
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("backend", cfg.Backend),
		zap.Bool("supabase_auth", cfg.UseSupabaseAuth()),
		zap.Bool("email_configured", cfg.EmailConfigured()),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("notify_timeout", cfg.NotifyTimeout),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "portal")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	be, err := buildBackend(startCtx, cfg, httpClient, resilienceCfg, logger)
	cancelStart()
	if err != nil {
		logger.Fatal("failed to initialise backend", zap.Error(err))
	}
	defer be.close()

	var sender port.EmailSender
	if cfg.EmailConfigured() {
		sender = emailjs.NewClient(httpClient, cfg.EmailJSAPIURL, cfg.EmailJSServiceID,
			cfg.EmailJSPublicKey, cfg.EmailJSPrivateKey, resilience.NewCircuitBreaker("emailjs"), logger)
		logger.Info("email notifications enabled", zap.String("api_url", cfg.EmailJSAPIURL))
	} else {
		logger.Warn("email: EmailJS not configured, notifications will be skipped")
	}

	// --- Cache ---
	identities := cache.New[*domain.Identity](cfg.IdentityCacheTTL)
	defer identities.Close()
	revoked := cache.New[struct{}](cfg.TokenRevocationTTL)
	defer revoked.Close()
	pages := handler.NewPages(cfg.PageSessionTTL)
	defer pages.Close()

	// --- Services ---
	profiles := service.NewProfiles(be.profiles, logger)
	requests := service.NewRequests(be.requests, metrics, logger)
	gate := service.NewSessionGate(be.auth, profiles, identities, metrics, logger).WithRevocations(revoked)
	notifier := service.NewDispatcher(sender, service.NotifyConfig{
		RequestTemplate:    cfg.EmailJSRequestTemplate,
		OnboardingTemplate: cfg.EmailJSOnboardingTemplate,
		TeamEmail:          cfg.TeamEmail,
		AdminURL:           cfg.AdminURL(),
		Timeout:            cfg.NotifyTimeout,
	}, resilience.NewBulkhead(cfg.MaxConcurrency), metrics, logger)

	admin := service.NewAdmin(requests, profiles, cfg.AdminEmails, metrics, logger)
	if !admin.Restricted() {
		logger.Warn("admin: ADMIN_EMAILS is empty, every signed-in user can open the admin page")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Gate:           gate,
		Auth:           service.NewAuthService(be.auth, gate, cfg.PasswordResetURL(), logger),
		Dashboard:      service.NewDashboard(gate, profiles, requests, notifier, metrics, logger),
		Admin:          admin,
		Onboarding:     service.NewOnboarding(profiles, notifier, logger),
		Contact:        service.NewContact(sender, cfg.EmailJSContactTemplate, cfg.TeamEmail, metrics, logger),
		Pages:          pages,
		Checks:         be.checks,
		AllowedOrigins: cfg.AllowedOrigins,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}

// buildBackend wires stores and the auth provider. Supabase Auth is used
// whenever it is configured; otherwise the local provider signs tokens with
// DEV_JWT_SECRET.
func buildBackend(ctx context.Context, cfg *config.Config, httpClient *http.Client, rcfg resilience.Config, logger *zap.Logger) (*backend, error) {
	be := &backend{close: func() {}}

	var sb *supabase.Client
	if cfg.SupabaseURL != "" {
		sb = supabase.NewClient(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"), rcfg, logger)
		if cfg.SupabaseJWTSecret != "" {
			sb = sb.WithTokenVerifier(token.NewManager(cfg.SupabaseJWTSecret, cfg.DevTokenTTL))
		}
	}

	switch cfg.Backend {
	case config.BackendSupabase:
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		be.profiles, be.requests = sb, sb
		be.checks = append(be.checks, handler.HealthCheck{Name: "supabase", Check: sb.Ping})

	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.MaxConcurrency)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("using Postgres as data backend")
		be.profiles, be.requests = store, store
		be.checks = append(be.checks, handler.HealthCheck{Name: "postgres", Check: store.Ping})
		be.close = store.Close

	case config.BackendMemory:
		logger.Warn("using in-memory data backend, data is lost on restart")
		store := memory.NewStore()
		be.profiles, be.requests = store, store
	}

	if cfg.UseSupabaseAuth() && sb != nil {
		be.auth = sb
	} else {
		logger.Warn("auth: Supabase Auth not configured, using local accounts")
		be.auth = memory.NewAuth(token.NewManager(cfg.DevJWTSecret, cfg.DevTokenTTL), logger)
	}
	return be, nil
}
