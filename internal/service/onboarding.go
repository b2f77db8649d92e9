package service

import (
	"context"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Onboarding saves the first business profile and tells the team.
type Onboarding struct {
	profiles *Profiles
	notifier *Dispatcher
	logger   *zap.Logger
}

// NewOnboarding creates the onboarding flow.
func NewOnboarding(profiles *Profiles, notifier *Dispatcher, logger *zap.Logger) *Onboarding {
	return &Onboarding{profiles: profiles, notifier: notifier, logger: logger}
}

// Submit validates the form and saves the profile. A concurrent or repeated
// submission updates the existing row, leaving one profile per user.
func (o *Onboarding) Submit(ctx context.Context, user *domain.Identity, form *domain.OnboardingForm) (*domain.OnboardingResult, error) {
	ctx, span := tracer.Start(ctx, "Onboarding.Submit")
	defer span.End()

	if user == nil {
		return nil, &domain.ErrUnauthorized{Message: "You must be logged in to complete onboarding. Please sign in first."}
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	if err := form.Validate(); err != nil {
		return nil, err
	}

	profile := form.Profile(user.ID, user.Email)
	saved, created, err := o.profiles.Save(ctx, &profile)
	if err != nil {
		return nil, err
	}

	status := o.notifier.NotifyOnboarding(ctx, saved, user)
	o.logger.Info("onboarding completed",
		zap.String("user_id", user.ID),
		zap.Bool("created", created),
		zap.String("notification", string(status)),
	)
	return &domain.OnboardingResult{
		Profile:      saved,
		Created:      created,
		Notification: status,
		Next:         domain.RouteDashboard,
		Banner:       domain.SuccessBanner("Profile setup completed successfully! Redirecting to dashboard..."),
	}, nil
}
