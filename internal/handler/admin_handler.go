package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Admin: cross-user request management
// ============================================================

// openAdmin loads the listing into pg when nothing is cached or force is
// set. Callers hold pg.mu.
func openAdmin(ctx context.Context, admin *service.Admin, pg *page[*service.AdminSession], force bool) error {
	if !force && pg.session != nil {
		return nil
	}
	s, err := admin.Open(ctx, IdentityFromContext(ctx))
	if err != nil {
		return err
	}
	pg.session = s
	return nil
}

// parseFilter reads business, status and service_type. Empty values match
// everything.
func parseFilter(r *http.Request) (domain.RequestFilter, error) {
	q := r.URL.Query()
	f := domain.RequestFilter{BusinessName: q.Get("business")}
	if v := q.Get("status"); v != "" {
		st, err := domain.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if v := q.Get("service_type"); v != "" {
		t, err := domain.ParseServiceType(v)
		if err != nil {
			return f, err
		}
		f.ServiceType = t
	}
	return f, nil
}

// adminRequestsHandler renders the filtered listing. The listing is loaded
// once per session; refresh=true reloads it.
func adminRequestsHandler(admin *service.Admin, pages *Pages, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/requests")
		defer span.End()

		filter, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

		pg := pages.admin(IdentityFromContext(ctx).ID)
		pg.mu.Lock()
		defer pg.mu.Unlock()

		if err := openAdmin(ctx, admin, pg, refresh); err != nil {
			writeServiceError(w, err, domain.ErrorBanner("Error loading service requests: "+service.UserMessage(err)), logger)
			return
		}
		pg.session.Filter = filter
		writeJSON(w, http.StatusOK, pg.session.View(admin.Activity()))
	}
}

func adminBusinessesHandler(admin *service.Admin, pages *Pages, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/businesses")
		defer span.End()

		pg := pages.admin(IdentityFromContext(ctx).ID)
		pg.mu.Lock()
		defer pg.mu.Unlock()

		if err := openAdmin(ctx, admin, pg, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"businesses": pg.session.Businesses})
	}
}

// adminUpdateStatusHandler commits a status change and patches the cached
// listing in place.
func adminUpdateStatusHandler(admin *service.Admin, pages *Pages, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/admin/requests/{id}")
		defer span.End()

		var update domain.StatusUpdate
		if !decodeJSON(w, r, &update) {
			return
		}

		pg := pages.admin(IdentityFromContext(ctx).ID)
		pg.mu.Lock()
		defer pg.mu.Unlock()

		if err := openAdmin(ctx, admin, pg, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if _, err := admin.UpdateStatus(ctx, pg.session, chi.URLParam(r, "id"), update); err != nil {
			writeServiceError(w, err, pg.session.Banner, logger)
			return
		}
		writeJSON(w, http.StatusOK, pg.session.View(admin.Activity()))
	}
}
