package domain

import (
	"strings"
	"time"
)

// ============================================================
// Session gate, navigation and page states
// ============================================================

// SessionState is the result of resolving the current session.
type SessionState string

const (
	SessionAnonymous                SessionState = "anonymous"
	SessionAuthenticatedNoProfile   SessionState = "authenticated_no_profile"
	SessionAuthenticatedWithProfile SessionState = "authenticated_with_profile"
	// SessionProfileUnknown means the profile lookup failed. Callers route to
	// the dashboard instead of bouncing between login and onboarding.
	SessionProfileUnknown SessionState = "profile_unknown"
)

// Route is a page the client should navigate to.
type Route string

const (
	RouteLogin      Route = "/login.html"
	RouteOnboarding Route = "/onboarding.html"
	RouteDashboard  Route = "/dashboard.html"
	RouteAdmin      Route = "/admin.html"
)

// Session is the resolved state of the caller.
type Session struct {
	State    SessionState `json:"state"`
	Identity *Identity    `json:"user,omitempty"`
	Profile  *Profile     `json:"profile,omitempty"`
}

// Next maps the state to a navigation target.
func (s *Session) Next() Route {
	if s == nil {
		return RouteLogin
	}
	switch s.State {
	case SessionAuthenticatedNoProfile:
		return RouteOnboarding
	case SessionAuthenticatedWithProfile, SessionProfileUnknown:
		return RouteDashboard
	default:
		return RouteLogin
	}
}

// SessionResponse is returned by GET /v1/session.
type SessionResponse struct {
	State  SessionState `json:"state"`
	User   *Identity    `json:"user,omitempty"`
	Next   Route        `json:"next"`
	Banner *Banner      `json:"banner,omitempty"`
}

// DashboardState is the customer page lifecycle.
type DashboardState string

const (
	DashboardLoading         DashboardState = "loading"
	DashboardNoSession       DashboardState = "no_session"
	DashboardNoProfile       DashboardState = "no_profile"
	DashboardReady           DashboardState = "ready"
	DashboardServiceSelected DashboardState = "service_selected"
	DashboardSubmitting      DashboardState = "submitting"
)

// SubmitOutcome is the terminal result of a submission.
type SubmitOutcome string

const (
	SubmittedOK                SubmitOutcome = "submitted_ok"
	SubmittedWithNotifyFailure SubmitOutcome = "submitted_with_notify_failure"
	SubmitFailed               SubmitOutcome = "submit_failed"
)

// NotifyStatus is the result of a best-effort notification.
type NotifyStatus string

const (
	NotifySent    NotifyStatus = "sent"
	NotifyFailed  NotifyStatus = "failed"
	NotifySkipped NotifyStatus = "skipped"
)

// SubmitResult is the terminal outcome of one dashboard submission.
type SubmitResult struct {
	Outcome      SubmitOutcome   `json:"outcome"`
	Request      *ServiceRequest `json:"request,omitempty"`
	Notification NotifyStatus    `json:"notification,omitempty"`
}

// DashboardView is the customer page payload.
type DashboardView struct {
	State    DashboardState   `json:"state"`
	User     *Identity        `json:"user,omitempty"`
	Profile  *Profile         `json:"profile,omitempty"`
	Services []ServiceOption  `json:"services"`
	Selected ServiceType      `json:"selected_service,omitempty"`
	Requests []ServiceRequest `json:"requests"`
	Result   *SubmitResult    `json:"result,omitempty"`
	Banner   *Banner          `json:"banner,omitempty"`
}

// SelectionRequest is the body for PUT /v1/dashboard/selection.
type SelectionRequest struct {
	ServiceType string `json:"service_type"`
}

// ProfileEdit is the body for PATCH /v1/dashboard/profile. Exactly one
// field per submission.
type ProfileEdit struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// OnboardingResult is returned by POST /v1/onboarding.
type OnboardingResult struct {
	Profile      *Profile     `json:"profile"`
	Created      bool         `json:"created"`
	Notification NotifyStatus `json:"notification"`
	Next         Route        `json:"next"`
	Banner       *Banner      `json:"banner,omitempty"`
}

// AdminView is the admin page payload for the current filter.
type AdminView struct {
	User       *Identity        `json:"user,omitempty"`
	Filter     RequestFilter    `json:"filter"`
	Requests   []ServiceRequest `json:"requests"`
	Stats      RequestStats     `json:"stats"`
	Businesses []string         `json:"business_options"`
	Activity   *RequestCounters `json:"activity,omitempty"`
	Banner     *Banner          `json:"banner,omitempty"`
}

// ============================================================
// Banner: the single transient message area
// ============================================================

// SuccessBannerTTL is how long success banners stay visible.
const SuccessBannerTTL = 5 * time.Second

// BannerKind is success or error.
type BannerKind string

const (
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

// Banner replaces any previous banner. Error banners persist
// (DismissAfterMs == 0).
type Banner struct {
	Kind           BannerKind `json:"kind"`
	Message        string     `json:"message"`
	DismissAfterMs int64      `json:"dismiss_after_ms"`
}

// SuccessBanner auto-dismisses after SuccessBannerTTL.
func SuccessBanner(msg string) *Banner {
	return &Banner{Kind: BannerSuccess, Message: msg, DismissAfterMs: SuccessBannerTTL.Milliseconds()}
}

// ErrorBanner persists until replaced.
func ErrorBanner(msg string) *Banner {
	return &Banner{Kind: BannerError, Message: msg}
}

// ============================================================
// Contact form
// ============================================================

// ContactMessage is the body for POST /v1/contact.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate trims and checks all fields.
func (m *ContactMessage) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Message = strings.TrimSpace(m.Message)

	if m.Name == "" || m.Email == "" || m.Subject == "" || m.Message == "" {
		return &ErrValidation{Message: "Please fill in all required fields."}
	}
	if !ValidEmail(m.Email) {
		return &ErrValidation{Field: "email", Message: "Please enter a valid email address."}
	}
	return nil
}
