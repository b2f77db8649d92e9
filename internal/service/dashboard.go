package service

import (
	"context"
	"fmt"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DashboardSession is one customer's page context. It replaces the page's
// module-level globals: current user, loaded profile, request list and the
// selected service.
type DashboardSession struct {
	State    domain.DashboardState
	User     *domain.Identity
	Profile  *domain.Profile
	Requests []domain.ServiceRequest
	Selected domain.ServiceType
	Result   *domain.SubmitResult
	Banner   *domain.Banner
}

// Select records the chosen service. It is local and idempotent: selecting
// again replaces the previous choice.
func (s *DashboardSession) Select(t domain.ServiceType) error {
	switch s.State {
	case domain.DashboardReady, domain.DashboardServiceSelected:
	default:
		return &domain.ErrValidation{Message: "Dashboard is not ready"}
	}
	if _, err := domain.ParseServiceType(string(t)); err != nil {
		return err
	}
	s.Selected = t
	s.State = domain.DashboardServiceSelected
	return nil
}

// ClearSelection returns to Ready.
func (s *DashboardSession) ClearSelection() {
	s.Selected = ""
	if s.State == domain.DashboardServiceSelected || s.State == domain.DashboardSubmitting {
		s.State = domain.DashboardReady
	}
}

// View renders the session for the API.
func (s *DashboardSession) View() *domain.DashboardView {
	requests := s.Requests
	if requests == nil {
		requests = []domain.ServiceRequest{}
	}
	return &domain.DashboardView{
		State:    s.State,
		User:     s.User,
		Profile:  s.Profile,
		Services: ServiceOptions(),
		Selected: s.Selected,
		Requests: requests,
		Result:   s.Result,
		Banner:   s.Banner,
	}
}

// ServiceOptions lists the catalog with display names.
func ServiceOptions() []domain.ServiceOption {
	out := make([]domain.ServiceOption, 0, len(domain.ServiceCatalog))
	for _, t := range domain.ServiceCatalog {
		out = append(out, domain.ServiceOption{Type: t, Name: t.DisplayName()})
	}
	return out
}

// Dashboard is the customer create/view loop.
type Dashboard struct {
	gate     *SessionGate
	profiles *Profiles
	requests *Requests
	notifier *Dispatcher
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewDashboard composes the dashboard flow.
func NewDashboard(gate *SessionGate, profiles *Profiles, requests *Requests, notifier *Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		gate:     gate,
		profiles: profiles,
		requests: requests,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Open loads a fresh session: NoSession, NoProfile or Ready with the
// newest requests.
func (d *Dashboard) Open(ctx context.Context, accessToken string) (*DashboardSession, error) {
	ctx, span := tracer.Start(ctx, "Dashboard.Open")
	defer span.End()

	start := time.Now()
	defer func() { d.metrics.RecordRequestDuration("dashboard_open", time.Since(start)) }()

	s := &DashboardSession{State: domain.DashboardLoading}

	sess, err := d.gate.Resolve(ctx, accessToken)
	if err != nil {
		if sess != nil && sess.Identity != nil {
			s.User = sess.Identity
		}
		s.Banner = failureBanner("Error loading profile: ", err)
		return s, err
	}

	switch sess.State {
	case domain.SessionAnonymous:
		s.State = domain.DashboardNoSession
		return s, nil
	case domain.SessionAuthenticatedNoProfile:
		s.State = domain.DashboardNoProfile
		s.User = sess.Identity
		return s, nil
	}

	s.User = sess.Identity
	s.Profile = sess.Profile
	span.SetAttributes(attribute.String("user.id", s.User.ID))

	requests, err := d.requests.ListByUser(ctx, s.User.ID, DashboardLimit)
	if err != nil {
		d.logger.Error("dashboard: failed to load requests",
			zap.String("user_id", s.User.ID),
			zap.Error(err),
		)
		s.Banner = failureBanner("Error loading service requests: ", err)
		requests = []domain.ServiceRequest{}
	}
	s.Requests = requests
	s.State = domain.DashboardReady
	return s, nil
}

// Submit creates a request for the selected service. The session returns to
// Ready with the selection cleared on every terminal outcome. A failed
// notification never fails the submission.
func (d *Dashboard) Submit(ctx context.Context, s *DashboardSession) (*domain.SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "Dashboard.Submit")
	defer span.End()

	if s.Selected == "" {
		s.Banner = domain.ErrorBanner("Please select a service first.")
		return &domain.SubmitResult{Outcome: domain.SubmitFailed}, &domain.ErrValidation{Field: "service_type", Message: s.Banner.Message}
	}
	if s.User == nil || s.Profile == nil {
		s.Banner = domain.ErrorBanner("Please ensure you are logged in and have completed your profile.")
		s.ClearSelection()
		return &domain.SubmitResult{Outcome: domain.SubmitFailed}, &domain.ErrValidation{Message: s.Banner.Message}
	}

	selected := s.Selected
	span.SetAttributes(attribute.String("service.type", string(selected)))
	s.State = domain.DashboardSubmitting
	defer s.ClearSelection()

	req := domain.NewServiceRequest(selected, s.User.ID, firstNonEmpty(s.User.Email, s.Profile.Email), s.Profile)
	created, err := d.requests.Create(ctx, req)
	if err != nil {
		d.logger.Error("dashboard: failed to create service request",
			zap.String("user_id", s.User.ID),
			zap.String("service_type", string(selected)),
			zap.Error(err),
		)
		s.Banner = failureBanner("Failed to create service request: ", err)
		s.Result = &domain.SubmitResult{Outcome: domain.SubmitFailed}
		return s.Result, fmt.Errorf("create request: %w", err)
	}

	status := d.notifier.NotifyRequest(ctx, created, s.Profile, s.User)
	result := &domain.SubmitResult{Outcome: domain.SubmittedOK, Request: created, Notification: status}
	name := selected.DisplayName()
	switch status {
	case domain.NotifySent:
		s.Banner = domain.SuccessBanner(name + " request submitted and notification sent!")
	case domain.NotifyFailed:
		result.Outcome = domain.SubmittedWithNotifyFailure
		s.Banner = domain.SuccessBanner(name + " request submitted! (Note: Email notification may have failed)")
	default:
		s.Banner = domain.SuccessBanner(name + " request submitted!")
	}
	s.Result = result

	// re-fetch for the authoritative id and timestamps
	requests, err := d.requests.ListByUser(ctx, s.User.ID, DashboardLimit)
	if err != nil {
		d.logger.Warn("dashboard: refresh after submit failed",
			zap.String("user_id", s.User.ID),
			zap.Error(err),
		)
		requests = append([]domain.ServiceRequest{*created}, s.Requests...)
		if len(requests) > DashboardLimit {
			requests = requests[:DashboardLimit]
		}
	}
	s.Requests = requests
	return result, nil
}

// EditProfile changes one profile field. The session's profile is replaced
// only after the store commits.
func (d *Dashboard) EditProfile(ctx context.Context, s *DashboardSession, edit domain.ProfileEdit) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Dashboard.EditProfile")
	defer span.End()

	if s.Profile == nil {
		s.Banner = domain.ErrorBanner("User profile not loaded. Please refresh the page.")
		return nil, &domain.ErrValidation{Message: s.Banner.Message}
	}
	field, err := domain.ParseProfileField(edit.Field)
	if err != nil {
		s.Banner = domain.ErrorBanner(UserMessage(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("profile.field", string(field)))

	updated, err := d.profiles.UpdateField(ctx, s.Profile, field, edit.Value)
	if err != nil {
		s.Banner = failureBanner("Failed to update profile: ", err)
		return nil, err
	}
	s.Profile = updated
	s.Banner = domain.SuccessBanner("Profile updated successfully!")
	return updated, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
