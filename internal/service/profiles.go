package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/port"

	"go.uber.org/zap"
)

// Profiles adapts a ProfileStore to the portal's profile rules.
type Profiles struct {
	store  port.ProfileStore
	now    func() time.Time
	logger *zap.Logger
}

// NewProfiles creates the profile adapter.
func NewProfiles(store port.ProfileStore, logger *zap.Logger) *Profiles {
	return &Profiles{store: store, now: time.Now, logger: logger}
}

// WithClock overrides the timestamp source.
func (p *Profiles) WithClock(now func() time.Time) *Profiles {
	p.now = now
	return p
}

// Get returns *domain.ErrNotFound when the user has not onboarded.
func (p *Profiles) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	return p.store.GetProfile(ctx, userID)
}

// Create inserts a profile. A second profile for the same user is
// *domain.ErrConflict.
func (p *Profiles) Create(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	return p.store.CreateProfile(ctx, profile)
}

// Update merges fields into the user's profile and stamps updated_at.
func (p *Profiles) Update(ctx context.Context, userID string, fields map[string]any) (*domain.Profile, error) {
	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["updated_at"] = p.now().UTC()
	return p.store.UpdateProfile(ctx, userID, merged)
}

// Save creates the profile, or updates the existing row when creation
// conflicts. created reports which path was taken.
func (p *Profiles) Save(ctx context.Context, profile *domain.Profile) (saved *domain.Profile, created bool, err error) {
	ctx, span := tracer.Start(ctx, "Profiles.Save")
	defer span.End()

	saved, err = p.Create(ctx, profile)
	if err == nil {
		return saved, true, nil
	}
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		return nil, false, fmt.Errorf("create profile: %w", err)
	}

	p.logger.Info("profile exists, updating instead",
		zap.String("user_id", profile.UserID),
	)
	saved, err = p.Update(ctx, profile.UserID, profile.Columns())
	if err != nil {
		return nil, false, fmt.Errorf("update profile: %w", err)
	}
	return saved, false, nil
}

// UpdateField changes exactly one field of current. The returned profile is
// the committed row; current is never modified.
func (p *Profiles) UpdateField(ctx context.Context, current *domain.Profile, field domain.ProfileField, raw string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Profiles.UpdateField")
	defer span.End()

	value, err := field.Normalize(raw)
	if err != nil {
		return nil, err
	}
	updated, err := p.Update(ctx, current.UserID, map[string]any{field.Column(): value})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// List returns every profile ordered by business name.
func (p *Profiles) List(ctx context.Context) ([]domain.Profile, error) {
	return p.store.ListProfiles(ctx)
}
