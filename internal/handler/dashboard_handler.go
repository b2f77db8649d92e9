package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Customer dashboard
// ============================================================

// openDashboard loads a fresh session into pg unless a usable one is
// cached. Callers hold pg.mu.
func openDashboard(ctx context.Context, dash *service.Dashboard, pg *page[*service.DashboardSession], force bool) error {
	if !force && pg.session != nil {
		switch pg.session.State {
		case domain.DashboardReady, domain.DashboardServiceSelected:
			return nil
		}
	}
	s, err := dash.Open(ctx, tokenFromContext(ctx))
	pg.session = s
	return err
}

func dashboardHandler(dash *service.Dashboard, pages *Pages, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		pg := pages.dashboard(IdentityFromContext(ctx).ID)
		pg.mu.Lock()
		defer pg.mu.Unlock()

		if err := openDashboard(ctx, dash, pg, true); err != nil {
			writeServiceError(w, err, pg.session.Banner, logger)
			return
		}
		writeJSON(w, http.StatusOK, pg.session.View())
	}
}

func dashboardSelectHandler(dash *service.Dashboard, pages *Pages, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/dashboard/selection")
		defer span.End()

		var req domain.SelectionRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		pg := pages.dashboard(IdentityFromContext(ctx).ID)
		pg.mu.Lock()
		defer pg.mu.Unlock()

		if err := openDashboard(ctx, dash, pg, false); err != nil {
			writeServiceError(w, err, pg.session.Banner, logger)
			return
		}
		if err := pg.session.Select(domain.ServiceType(req.ServiceType)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, pg.session.View())
	}
}

func dashboardClearSelectionHandler(pages *Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pg := pages.dashboard(IdentityFromContext(r.Context()).ID)
		pg.mu.Lock()
		defer pg.mu.Unlock()

		if pg.session == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		pg.session.ClearSelection()
		writeJSON(w, http.StatusOK, pg.session.View())
	}
}

// dashboardSubmitHandler submits the selected service. A body naming a
// service_type selects it first.
func dashboardSubmitHandler(dash *service.Dashboard, pages *Pages, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dashboard/requests")
		defer span.End()

		var req domain.SelectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		pg := pages.dashboard(IdentityFromContext(ctx).ID)
		pg.mu.Lock()
		defer pg.mu.Unlock()

		if err := openDashboard(ctx, dash, pg, false); err != nil {
			writeServiceError(w, err, pg.session.Banner, logger)
			return
		}
		s := pg.session
		if req.ServiceType != "" {
			if err := s.Select(domain.ServiceType(req.ServiceType)); err != nil {
				handleServiceError(w, err, logger)
				return
			}
		}

		if _, err := dash.Submit(ctx, s); err != nil {
			writeServiceError(w, err, s.Banner, logger)
			return
		}
		writeJSON(w, http.StatusCreated, s.View())
	}
}

func dashboardProfileHandler(dash *service.Dashboard, pages *Pages, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/dashboard/profile")
		defer span.End()

		var edit domain.ProfileEdit
		if !decodeJSON(w, r, &edit) {
			return
		}

		pg := pages.dashboard(IdentityFromContext(ctx).ID)
		pg.mu.Lock()
		defer pg.mu.Unlock()

		if err := openDashboard(ctx, dash, pg, false); err != nil {
			writeServiceError(w, err, pg.session.Banner, logger)
			return
		}
		if _, err := dash.EditProfile(ctx, pg.session, edit); err != nil {
			writeServiceError(w, err, pg.session.Banner, logger)
			return
		}
		writeJSON(w, http.StatusOK, pg.session.View())
	}
}
