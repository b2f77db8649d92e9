package handler

import (
	"net/http"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/service"

	"go.uber.org/zap"
)

// sessionHandler tells the client where to go. The bearer token is
// optional: without one the caller is anonymous.
func sessionHandler(gate *service.SessionGate, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/session")
		defer span.End()

		sess, err := gate.Resolve(ctx, bearerToken(r))
		resp := domain.SessionResponse{State: sess.State, User: sess.Identity, Next: sess.Next()}
		if err != nil {
			logger.Warn("session: resolve failed", zap.Error(err))
			resp.Banner = domain.ErrorBanner("Error loading profile: " + service.UserMessage(err))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func servicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"services": service.ServiceOptions()})
	}
}
