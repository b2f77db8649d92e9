// Package service holds the portal's flows: the session gate, the profile
// and request adapters, the notification dispatcher, and the dashboard,
// admin, auth, onboarding and contact flows composed from them.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/observability"
	"github.com/strangerdangercoffee/portal/internal/infra/token"
	"github.com/strangerdangercoffee/portal/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// SessionGate decides whether a caller is anonymous, still onboarding, or
// ready for the dashboard.
type SessionGate struct {
	auth       port.AuthProvider
	profiles   *Profiles
	identities port.Cache[*domain.Identity]
	revoked    port.Cache[struct{}]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewSessionGate creates a SessionGate. identities caches token lookups and
// is keyed by the token's hash.
func NewSessionGate(
	auth port.AuthProvider,
	profiles *Profiles,
	identities port.Cache[*domain.Identity],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SessionGate {
	return &SessionGate{
		auth:       auth,
		profiles:   profiles,
		identities: identities,
		metrics:    metrics,
		logger:     logger,
	}
}

// WithRevocations rejects tokens passed to Revoke for as long as c keeps
// them. Its TTL should cover the access token lifetime, since a locally
// verified JWT stays valid at the provider until it expires.
func (g *SessionGate) WithRevocations(c port.Cache[struct{}]) *SessionGate {
	g.revoked = c
	return g
}

// Identify returns the identity behind accessToken.
func (g *SessionGate) Identify(ctx context.Context, accessToken string) (*domain.Identity, error) {
	if accessToken == "" {
		return nil, &domain.ErrUnauthorized{Message: "No active session"}
	}

	key := token.Hash(accessToken)
	if g.revoked != nil {
		if _, ok := g.revoked.Get(key); ok {
			return nil, &domain.ErrUnauthorized{Message: "Session has ended, please sign in again"}
		}
	}
	if id, ok := g.identities.Get(key); ok {
		g.metrics.IncrCacheHit("identity")
		return id, nil
	}
	g.metrics.IncrCacheMiss("identity")

	id, err := g.auth.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	g.identities.Set(key, id)
	return id, nil
}

// Remember primes the identity cache after a sign-in.
func (g *SessionGate) Remember(accessToken string, id *domain.Identity) {
	if accessToken == "" || id == nil {
		return
	}
	g.identities.Set(token.Hash(accessToken), id)
}

// Forget drops the cached identity for accessToken.
func (g *SessionGate) Forget(accessToken string) {
	g.identities.Delete(token.Hash(accessToken))
}

// Revoke forgets accessToken and, with revocations enabled, rejects it
// from now on.
func (g *SessionGate) Revoke(accessToken string) {
	if accessToken == "" {
		return
	}
	key := token.Hash(accessToken)
	g.identities.Delete(key)
	if g.revoked != nil {
		g.revoked.Set(key, struct{}{})
	}
}

// Resolve classifies the caller. A missing or rejected token is Anonymous,
// a missing profile is AuthenticatedNoProfile. Any other profile failure
// returns a ProfileUnknown session together with the error so callers can
// still route to the dashboard.
func (g *SessionGate) Resolve(ctx context.Context, accessToken string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "SessionGate.Resolve")
	defer span.End()

	if accessToken == "" {
		return &domain.Session{State: domain.SessionAnonymous}, nil
	}

	id, err := g.Identify(ctx, accessToken)
	if err != nil {
		var unauthorized *domain.ErrUnauthorized
		if errors.As(err, &unauthorized) {
			return &domain.Session{State: domain.SessionAnonymous}, nil
		}
		return &domain.Session{State: domain.SessionAnonymous}, fmt.Errorf("identify: %w", err)
	}
	return g.ResolveIdentity(ctx, id)
}

// ResolveIdentity classifies an already authenticated identity.
func (g *SessionGate) ResolveIdentity(ctx context.Context, id *domain.Identity) (*domain.Session, error) {
	span := spanFrom(ctx)
	span.SetAttributes(attribute.String("user.id", id.ID))

	profile, err := g.profiles.Get(ctx, id.ID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return &domain.Session{State: domain.SessionAuthenticatedNoProfile, Identity: id}, nil
		}
		g.logger.Error("session gate: profile lookup failed",
			zap.String("user_id", id.ID),
			zap.Error(err),
		)
		return &domain.Session{State: domain.SessionProfileUnknown, Identity: id}, fmt.Errorf("profile lookup: %w", err)
	}
	return &domain.Session{State: domain.SessionAuthenticatedWithProfile, Identity: id, Profile: profile}, nil
}
