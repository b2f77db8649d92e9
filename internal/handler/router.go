// Package handler is the portal's HTTP surface: a chi router over the
// service flows, with per-user page sessions for the dashboard and admin
// pages.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/observability"
	"github.com/strangerdangercoffee/portal/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Services are the flows the router exposes.
type Services struct {
	Gate       *service.SessionGate
	Auth       *service.AuthService
	Dashboard  *service.Dashboard
	Admin      *service.Admin
	Onboarding *service.Onboarding
	Contact    *service.Contact
	Pages      *Pages

	Checks         []HealthCheck
	AllowedOrigins []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	origins := svc.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(routeDuration(metrics))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Checks))
	r.Get("/readyz", readyzHandler(svc.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/services", servicesHandler())
		r.Get("/session", sessionHandler(svc.Gate, logger))
		r.Post("/contact", contactHandler(svc.Contact, logger))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authSignUpHandler(svc.Auth, logger))
			r.Post("/signin", authSignInHandler(svc.Auth, logger))
			r.Post("/password/forgot", authForgotPasswordHandler(svc.Auth, logger))
			r.Post("/password/reset", authResetPasswordHandler(svc.Auth, logger))
			r.With(BearerAuth(svc.Gate, logger)).Post("/signout", authSignOutHandler(svc.Auth, svc.Pages, logger))
		})

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(svc.Gate, logger))

			r.Post("/onboarding", onboardingHandler(svc.Onboarding, svc.Pages, logger))

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/", dashboardHandler(svc.Dashboard, svc.Pages, logger))
				r.Patch("/profile", dashboardProfileHandler(svc.Dashboard, svc.Pages, logger))
				r.Put("/selection", dashboardSelectHandler(svc.Dashboard, svc.Pages, logger))
				r.Delete("/selection", dashboardClearSelectionHandler(svc.Pages))
				r.Post("/requests", dashboardSubmitHandler(svc.Dashboard, svc.Pages, logger))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin(svc.Admin, logger))
				r.Get("/requests", adminRequestsHandler(svc.Admin, svc.Pages, logger))
				r.Patch("/requests/{id}", adminUpdateStatusHandler(svc.Admin, svc.Pages, logger))
				r.Get("/businesses", adminBusinessesHandler(svc.Admin, svc.Pages, logger))
			})
		})
	})

	return r
}

// routeDuration records latency per matched route pattern.
func routeDuration(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			pattern := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				pattern = rc.RoutePattern()
			}
			metrics.RecordRequestDuration(r.Method+" "+pattern, time.Since(start))
		})
	}
}

func runChecks(ctx context.Context, checks []HealthCheck) []domain.ServiceHealth {
	now := time.Now().Format(time.RFC3339)
	out := []domain.ServiceHealth{{Name: "portal-api", Status: "healthy", LastChecked: now}}
	for _, c := range checks {
		start := time.Now()
		status := "healthy"
		if err := c.Check(ctx); err != nil {
			status = "degraded"
		}
		out = append(out, domain.ServiceHealth{
			Name:        c.Name,
			Status:      status,
			LatencyMs:   time.Since(start).Milliseconds(),
			LastChecked: now,
		})
	}
	return out
}

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		services := runChecks(ctx, checks)
		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
				break
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.Warn("readyz: dependency not ready", zap.String("name", c.Name), zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "dependency": c.Name})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
