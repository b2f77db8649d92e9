// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/strangerdangercoffee/portal/internal/domain"
)

// AuthProvider is the hosted identity service (Supabase GoTrue or the local
// development provider).
type AuthProvider interface {
	// GetUser returns *domain.ErrUnauthorized for invalid or expired tokens.
	GetUser(ctx context.Context, accessToken string) (*domain.Identity, error)
	SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error)
	// SignUp returns a nil session when the provider requires email confirmation.
	SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, *domain.AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
	SendPasswordReset(ctx context.Context, email, redirectTo string) error
	// Recover exchanges recovery-link tokens for a usable session.
	Recover(ctx context.Context, accessToken, refreshToken string) (*domain.AuthSession, error)
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// ProfileStore persists business profiles keyed by user id.
type ProfileStore interface {
	// GetProfile returns *domain.ErrNotFound when the user has no profile.
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	// CreateProfile returns *domain.ErrConflict when a row for the user exists.
	CreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	// UpdateProfile applies the column map and returns the committed row.
	UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*domain.Profile, error)
	// ListProfiles returns all profiles ordered by business name ascending.
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
}

// RequestStore persists service requests.
type RequestStore interface {
	// CreateRequest may return a nil record when the backend does not echo
	// the inserted row.
	CreateRequest(ctx context.Context, r *domain.ServiceRequest) (*domain.ServiceRequest, error)
	// ListRequests returns matches newest first.
	ListRequests(ctx context.Context, q domain.RequestQuery) ([]domain.ServiceRequest, error)
	// UpdateRequest returns *domain.ErrNotFound when no row has the id.
	UpdateRequest(ctx context.Context, id string, fields map[string]any) (*domain.ServiceRequest, error)
}

// EmailSender delivers one templated email. Failures are *domain.ErrNotification.
type EmailSender interface {
	Send(ctx context.Context, templateID string, params map[string]string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
