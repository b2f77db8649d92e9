package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AdminSession is the admin page context: everything loaded once, then
// filtered and patched locally.
type AdminSession struct {
	User       *domain.Identity
	Requests   []domain.ServiceRequest
	Businesses []domain.Profile
	Filter     domain.RequestFilter
	Banner     *domain.Banner
}

// Visible returns the requests matching the current filter.
func (s *AdminSession) Visible() []domain.ServiceRequest {
	return FilterRequests(s.Requests, s.Filter)
}

// Patch replaces the request with the same id. It reports whether one was
// found.
func (s *AdminSession) Patch(updated domain.ServiceRequest) bool {
	for i := range s.Requests {
		if s.Requests[i].ID == updated.ID {
			s.Requests[i] = updated
			return true
		}
	}
	return false
}

// View renders the session for the API.
func (s *AdminSession) View(activity *domain.RequestCounters) *domain.AdminView {
	visible := s.Visible()
	return &domain.AdminView{
		User:       s.User,
		Filter:     s.Filter,
		Requests:   visible,
		Stats:      Stats(visible),
		Businesses: BusinessOptions(s.Requests),
		Activity:   activity,
		Banner:     s.Banner,
	}
}

// FilterRequests keeps the requests matching every non-empty predicate,
// preserving order.
func FilterRequests(requests []domain.ServiceRequest, f domain.RequestFilter) []domain.ServiceRequest {
	out := make([]domain.ServiceRequest, 0, len(requests))
	for _, r := range requests {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Stats counts requests per status.
func Stats(requests []domain.ServiceRequest) domain.RequestStats {
	st := domain.RequestStats{Total: len(requests)}
	for _, r := range requests {
		switch r.Status {
		case domain.StatusPending:
			st.Pending++
		case domain.StatusInProgress:
			st.InProgress++
		case domain.StatusCompleted:
			st.Completed++
		}
	}
	return st
}

// BusinessOptions lists the distinct business names found in requests, in
// first-seen order.
func BusinessOptions(requests []domain.ServiceRequest) []string {
	seen := make(map[string]struct{}, len(requests))
	out := []string{}
	for _, r := range requests {
		if r.BusinessName == "" {
			continue
		}
		if _, ok := seen[r.BusinessName]; ok {
			continue
		}
		seen[r.BusinessName] = struct{}{}
		out = append(out, r.BusinessName)
	}
	return out
}

// Admin is the cross-user request management flow.
type Admin struct {
	requests *Requests
	profiles *Profiles
	allowed  map[string]struct{}
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAdmin creates the admin flow. An empty adminEmails lets every
// authenticated user in.
func NewAdmin(requests *Requests, profiles *Profiles, adminEmails []string, metrics *observability.Metrics, logger *zap.Logger) *Admin {
	allowed := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			allowed[e] = struct{}{}
		}
	}
	return &Admin{
		requests: requests,
		profiles: profiles,
		allowed:  allowed,
		metrics:  metrics,
		logger:   logger,
	}
}

// Restricted reports whether an allowlist is configured.
func (a *Admin) Restricted() bool {
	return len(a.allowed) > 0
}

// Authorize checks the allowlist.
func (a *Admin) Authorize(user *domain.Identity) error {
	if user == nil {
		return &domain.ErrUnauthorized{Message: "No active session"}
	}
	if !a.Restricted() {
		return nil
	}
	if _, ok := a.allowed[strings.ToLower(user.Email)]; ok {
		return nil
	}
	return &domain.ErrForbidden{Action: "admin access"}
}

// Open loads every request and every profile concurrently. The profile
// directory is optional: its failure is logged and the page still opens.
func (a *Admin) Open(ctx context.Context, user *domain.Identity) (*AdminSession, error) {
	ctx, span := tracer.Start(ctx, "Admin.Open")
	defer span.End()

	start := time.Now()
	defer func() { a.metrics.RecordRequestDuration("admin_open", time.Since(start)) }()

	if err := a.Authorize(user); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	var (
		requests []domain.ServiceRequest
		profiles []domain.Profile
	)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := a.requests.ListAll(gCtx)
		if err != nil {
			a.logger.Error("admin: failed to load requests", zap.Error(err))
			a.metrics.IncrExternalError("requests")
			return fmt.Errorf("load requests: %w", err)
		}
		requests = r
		return nil
	})

	g.Go(func() error {
		p, err := a.profiles.List(gCtx)
		if err != nil {
			a.logger.Warn("admin: failed to load businesses", zap.Error(err))
			a.metrics.IncrExternalError("profiles")
			return nil
		}
		profiles = p
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []domain.Profile{}
	}
	return &AdminSession{User: user, Requests: requests, Businesses: profiles}, nil
}

// UpdateStatus commits a status change and patches the session's copy with
// the committed row. The listing is not re-fetched.
func (a *Admin) UpdateStatus(ctx context.Context, s *AdminSession, id string, update domain.StatusUpdate) (*domain.ServiceRequest, error) {
	ctx, span := tracer.Start(ctx, "Admin.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", id))

	if err := a.Authorize(s.User); err != nil {
		return nil, err
	}
	updated, err := a.requests.UpdateStatus(ctx, id, update.Status, update.Notes)
	if err != nil {
		s.Banner = failureBanner("Failed to update status: ", err)
		return nil, err
	}
	if !s.Patch(*updated) {
		a.logger.Warn("admin: updated request not in session listing", zap.String("request_id", id))
	}
	s.Banner = domain.SuccessBanner("Request status updated successfully!")
	return updated, nil
}

// Activity snapshots the write counters.
func (a *Admin) Activity() *domain.RequestCounters {
	return a.metrics.Snapshot()
}
