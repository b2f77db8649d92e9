package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Backend selects where profiles and requests are stored.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Backend  string `envconfig:"BACKEND" default:"supabase"`

	// HTTP client
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	// Resilience
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"100ms"`
	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"50"`

	// Cache
	IdentityCacheTTL   time.Duration `envconfig:"IDENTITY_CACHE_TTL" default:"1m"`
	PageSessionTTL     time.Duration `envconfig:"PAGE_SESSION_TTL" default:"30m"`
	TokenRevocationTTL time.Duration `envconfig:"TOKEN_REVOCATION_TTL" default:"1h"`

	// Observability
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Supabase
	SupabaseURL        string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey    string `envconfig:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret  string `envconfig:"SUPABASE_JWT_SECRET"`

	// Direct Postgres (BACKEND=postgres)
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// EmailJS
	EmailJSAPIURL             string        `envconfig:"EMAILJS_API_URL" default:"https://api.emailjs.com"`
	EmailJSServiceID          string        `envconfig:"EMAILJS_SERVICE_ID"`
	EmailJSPublicKey          string        `envconfig:"EMAILJS_PUBLIC_KEY"`
	EmailJSPrivateKey         string        `envconfig:"EMAILJS_PRIVATE_KEY"`
	EmailJSRequestTemplate    string        `envconfig:"EMAILJS_REQUEST_TEMPLATE_ID"`
	EmailJSOnboardingTemplate string        `envconfig:"EMAILJS_ONBOARDING_TEMPLATE_ID"`
	EmailJSContactTemplate    string        `envconfig:"EMAILJS_CONTACT_TEMPLATE_ID"`
	NotifyTimeout             time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
	TeamEmail                 string        `envconfig:"TEAM_EMAIL" default:"team@strangerdangercoffee.com"`

	// Site
	SiteURL        string   `envconfig:"SITE_URL" default:"http://localhost:8888"`
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
	AdminEmails    []string `envconfig:"ADMIN_EMAILS"`

	// Local auth (BACKEND=memory, or postgres without Supabase)
	DevJWTSecret string        `envconfig:"DEV_JWT_SECRET" default:"portal-dev-secret-change-me"`
	DevTokenTTL  time.Duration `envconfig:"DEV_TOKEN_TTL" default:"1h"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations that cannot start.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("config: BACKEND=supabase requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: BACKEND=postgres requires DATABASE_URL")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown BACKEND %q", c.Backend)
	}
	if c.Port <= 0 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	return nil
}

// UseSupabaseAuth reports whether identities come from GoTrue.
func (c *Config) UseSupabaseAuth() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

// EmailConfigured reports whether EmailJS credentials are present.
func (c *Config) EmailConfigured() bool {
	return c.EmailJSServiceID != "" && c.EmailJSPublicKey != ""
}

// PasswordResetURL is where recovery links land.
func (c *Config) PasswordResetURL() string {
	return c.SiteURL + "/reset-password.html"
}

// AdminURL is linked from request notifications.
func (c *Config) AdminURL() string {
	return c.SiteURL + "/admin.html"
}
