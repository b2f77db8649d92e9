package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/observability"
	"github.com/strangerdangercoffee/portal/internal/infra/resilience"
	"github.com/strangerdangercoffee/portal/internal/port"

	"go.uber.org/zap"
)

// Notification kinds, used as metric labels.
const (
	KindRequest    = "request"
	KindOnboarding = "onboarding"
	KindContact    = "contact"
)

const (
	submissionDateLayout = "1/2/2006"
	submissionTimeLayout = "3:04:05 PM"
	teamName             = "Stranger Danger Coffee Team"
)

// NotifyConfig names the templates and recipients.
type NotifyConfig struct {
	RequestTemplate    string
	OnboardingTemplate string
	TeamEmail          string
	AdminURL           string
	Timeout            time.Duration
}

// Dispatcher sends post-commit notifications. It makes one attempt, never
// returns an error, and reports the outcome as a NotifyStatus.
type Dispatcher struct {
	sender   port.EmailSender
	cfg      NotifyConfig
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. A nil sender skips every notification.
func NewDispatcher(sender port.EmailSender, cfg NotifyConfig, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if bulkhead == nil {
		bulkhead = resilience.NewBulkhead(8)
	}
	return &Dispatcher{
		sender:   sender,
		cfg:      cfg,
		bulkhead: bulkhead,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the submission timestamp source.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// NotifyRequest tells the team about a new service request.
func (d *Dispatcher) NotifyRequest(ctx context.Context, r *domain.ServiceRequest, p *domain.Profile, user *domain.Identity) domain.NotifyStatus {
	return d.dispatch(ctx, KindRequest, d.cfg.RequestTemplate, RequestParams(r, p, user, d.cfg.AdminURL, d.now()))
}

// NotifyOnboarding tells the team about a completed onboarding.
func (d *Dispatcher) NotifyOnboarding(ctx context.Context, p *domain.Profile, user *domain.Identity) domain.NotifyStatus {
	return d.dispatch(ctx, KindOnboarding, d.cfg.OnboardingTemplate, OnboardingParams(p, user, d.cfg.TeamEmail, d.now()))
}

func (d *Dispatcher) dispatch(ctx context.Context, kind, template string, params map[string]string) domain.NotifyStatus {
	ctx, span := tracer.Start(ctx, "Dispatcher."+kind)
	defer span.End()

	if d.sender == nil || template == "" {
		d.logger.Debug("notification skipped, email not configured", zap.String("kind", kind))
		d.metrics.IncrNotification(kind, domain.NotifySkipped)
		return domain.NotifySkipped
	}

	// detached from the caller: the primary write has already committed
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()

	err := d.bulkhead.Do(ctx, func() error {
		return d.sender.Send(ctx, template, params)
	})
	if err != nil {
		fields := []zap.Field{zap.String("kind", kind), zap.Error(err)}
		var nerr *domain.ErrNotification
		if errors.As(err, &nerr) {
			fields = append(fields, zap.Int("status", nerr.Status), zap.String("reason", nerr.Reason()))
		}
		d.logger.Warn("notification failed", fields...)
		span.RecordError(err)
		d.metrics.IncrNotification(kind, domain.NotifyFailed)
		return domain.NotifyFailed
	}

	d.metrics.IncrNotification(kind, domain.NotifySent)
	return domain.NotifySent
}

// RequestParams builds the request template parameters, substituting the
// fixed placeholders for missing values.
func RequestParams(r *domain.ServiceRequest, p *domain.Profile, user *domain.Identity, adminURL string, at time.Time) map[string]string {
	var prof domain.Profile
	if p != nil {
		prof = *p
	}
	var req domain.ServiceRequest
	if r != nil {
		req = *r
	}

	email := req.Email
	if user != nil && user.Email != "" {
		email = user.Email
	}
	requestID := req.ID
	if requestID == "" {
		requestID = domain.PlaceholderRequestID(at)
	}

	return map[string]string{
		"name":             orDefault(prof.PointOfContact, "Customer"),
		"business_name":    orDefault(prof.BusinessName, "Unknown Business"),
		"business_address": orDefault(prof.BusinessAddress, "Address not provided"),
		"service_name":     orDefault(req.ServiceName, "Unknown Service"),
		"service_type":     orDefault(string(req.ServiceType), "unknown"),
		"point_of_contact": orDefault(prof.PointOfContact, "Not specified"),
		"phone_number":     orDefault(prof.PhoneNumber, "Not provided"),
		"user_email":       orDefault(email, orDefault(prof.Email, "No email")),
		"request_id":       requestID,
		"submission_date":  at.Format(submissionDateLayout),
		"submission_time":  at.Format(submissionTimeLayout),
		"admin_link":       adminURL,
	}
}

// OnboardingParams builds the onboarding template parameters.
func OnboardingParams(p *domain.Profile, user *domain.Identity, teamEmail string, at time.Time) map[string]string {
	var prof domain.Profile
	if p != nil {
		prof = *p
	}
	email := prof.Email
	if user != nil && user.Email != "" {
		email = user.Email
	}
	return map[string]string{
		"to_email":         teamEmail,
		"to_name":          teamName,
		"from_name":        prof.PointOfContact,
		"from_email":       email,
		"business_name":    prof.BusinessName,
		"business_address": prof.BusinessAddress,
		"office_size":      strconv.Itoa(prof.OfficeSize),
		"point_of_contact": prof.PointOfContact,
		"phone_number":     prof.PhoneNumber,
		"user_email":       email,
		"submission_date":  at.Format(submissionDateLayout),
		"submission_time":  at.Format(submissionTimeLayout),
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
