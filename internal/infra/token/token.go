// Package token signs and verifies Supabase-style HS256 access tokens.
// The Supabase adapter uses it to verify tokens locally when the project JWT
// secret is configured; the memory provider uses it to issue them.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Audience is the aud claim GoTrue stamps on user tokens.
const Audience = "authenticated"

// Claims represents the claims in GoTrue access tokens.
type Claims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens with one shared secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager builds a Manager. ttl only matters for signing.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of signed tokens.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Sign issues an access token for the identity.
func (m *Manager) Sign(id *domain.Identity) (string, error) {
	now := m.now()
	claims := Claims{
		Email: id.Email,
		Role:  Audience,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if id.FullName != "" {
		claims.UserMetadata = map[string]any{"full_name": id.FullName}
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

// Verify checks signature, expiry and audience.
func (m *Manager) Verify(tokenString string) (*domain.Identity, error) {
	t, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithAudience(Audience), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Invalid or expired session"}
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "Invalid session"}
	}

	id := &domain.Identity{ID: claims.Subject, Email: claims.Email}
	if name, ok := claims.UserMetadata["full_name"].(string); ok {
		id.FullName = name
	}
	return id, nil
}

// NewOpaque returns a random refresh token and its storage hash.
func NewOpaque() (raw string, hashed string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	return raw, Hash(raw), nil
}

// Hash is the cache and storage key for a token.
func Hash(tok string) string {
	h := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(h[:])
}
