// Package supabase provides a client for Supabase (PostgREST + GoTrue).
// It is the production backend for profiles, service requests and user
// authentication.
package supabase

import (
	"context"
	"errors"
	"net/http"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/resilience"
	"github.com/strangerdangercoffee/portal/internal/infra/token"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase REST and Auth APIs.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	anonKey        string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	tokens         *token.Manager
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, anonKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		anonKey:        anonKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// WithTokenVerifier makes GetUser verify access tokens locally with the
// project JWT secret instead of calling /auth/v1/user.
func (c *Client) WithTokenVerifier(m *token.Manager) *Client {
	c.tokens = m
	return c
}

// execute runs fn behind the circuit breaker with retries and maps the
// outcome to domain errors.
func (c *Client) execute(ctx context.Context, service string, fn func() error) error {
	return c.run(ctx, service, c.cfg, fn)
}

// executeOnce is execute without retries. Inserts use it: a 5xx or a lost
// response may follow a committed row, and a second POST would duplicate it.
func (c *Client) executeOnce(ctx context.Context, service string, fn func() error) error {
	cfg := c.cfg
	cfg.MaxRetries = 0
	return c.run(ctx, service, cfg, fn)
}

func (c *Client) run(ctx context.Context, service string, cfg resilience.Config, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, cfg, fn)
	})
	if err == nil {
		return nil
	}

	switch {
	case resilience.IsBreakerOpen(err):
		return &domain.ErrCircuitOpen{Service: service}
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: service}
	case resilience.IsPermanent(err):
		// typed domain error produced by classify
		return errors.Unwrap(err)
	}

	c.logger.Error("supabase: call failed",
		zap.String("service", service),
		zap.Error(err),
	)
	return &domain.ErrExternalService{Service: service, Err: err}
}

// Ping checks that PostgREST answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := c.rest(ctx, http.MethodGet, "service_requests?select=id&limit=1", nil, "")
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase", Err: err}
	}
	return nil
}
