package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// AuthProvider implementation: GoTrue (/auth/v1)
// ============================================================

type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u *gotrueUser) toDomain() *domain.Identity {
	if u == nil || u.ID == "" {
		return nil
	}
	id := &domain.Identity{ID: u.ID, Email: u.Email}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		id.FullName = name
	}
	return id
}

type gotrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         *gotrueUser `json:"user"`
}

func (s *gotrueSession) toDomain() *domain.AuthSession {
	return &domain.AuthSession{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
		User:         s.User.toDomain(),
	}
}

// authCall runs one GoTrue request and decodes the response into out.
// Rejected credentials and malformed input become permanent errors.
func (c *Client) authCall(ctx context.Context, op, method, path string, data any, userToken string, out any) error {
	return c.execute(ctx, "supabase/auth", func() error {
		body, err := c.auth(ctx, method, path, data, userToken)
		if err != nil {
			if e, ok := asAPIError(err); ok {
				return classify(e, op, "")
			}
			return err
		}
		if out == nil || isEmpty(body) {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return resilience.Permanent(&domain.ErrExternalService{Service: "supabase/auth", Err: fmt.Errorf("decode %s: %w", op, err)})
		}
		return nil
	})
}

// GetUser resolves an access token to an identity.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUser")
	defer span.End()

	if accessToken == "" {
		return nil, &domain.ErrUnauthorized{Message: "No active session"}
	}
	if c.tokens != nil {
		return c.tokens.Verify(accessToken)
	}

	var u gotrueUser
	if err := c.authCall(ctx, "user", http.MethodGet, "user", nil, accessToken, &u); err != nil {
		return nil, err
	}
	id := u.toDomain()
	if id == nil {
		return nil, &domain.ErrUnauthorized{Message: "No active session"}
	}
	return id, nil
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignIn")
	defer span.End()

	var s gotrueSession
	err := c.authCall(ctx, "signin", http.MethodPost, "token?grant_type=password",
		map[string]string{"email": email, "password": password}, "", &s)
	if err != nil {
		// GoTrue answers bad credentials with 400
		var v *domain.ErrValidation
		if errors.As(err, &v) {
			return nil, &domain.ErrUnauthorized{Message: v.Message}
		}
		return nil, err
	}

	c.logger.Info("supabase: user signed in", zap.String("user_id", idOf(s.User)))
	return s.toDomain(), nil
}

// SignUp registers a user with full_name metadata. When email
// confirmation is enabled GoTrue returns only the user.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, *domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignUp")
	defer span.End()

	var raw json.RawMessage
	err := c.authCall(ctx, "signup", http.MethodPost, "signup", map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}, "", &raw)
	if err != nil {
		return nil, nil, err
	}

	var s gotrueSession
	if err := json.Unmarshal(raw, &s); err == nil && s.AccessToken != "" {
		session := s.toDomain()
		return session.User, session, nil
	}
	var u gotrueUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, nil, &domain.ErrExternalService{Service: "supabase/auth", Err: fmt.Errorf("decode signup: %w", err)}
	}
	return u.toDomain(), nil, nil
}

// SignOut revokes the user's refresh tokens.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	return c.authCall(ctx, "logout", http.MethodPost, "logout", nil, accessToken, nil)
}

// SendPasswordReset emails a recovery link that lands on redirectTo.
func (c *Client) SendPasswordReset(ctx context.Context, email, redirectTo string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SendPasswordReset")
	defer span.End()

	path := "recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.authCall(ctx, "recover", http.MethodPost, path, map[string]string{"email": email}, "", nil)
}

// Recover turns recovery-link tokens into a session, refreshing when the
// access token has already expired.
func (c *Client) Recover(ctx context.Context, accessToken, refreshToken string) (*domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Recover")
	defer span.End()

	user, err := c.GetUser(ctx, accessToken)
	if err == nil {
		return &domain.AuthSession{AccessToken: accessToken, RefreshToken: refreshToken, User: user}, nil
	}
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) || refreshToken == "" {
		return nil, err
	}

	var s gotrueSession
	err = c.authCall(ctx, "refresh", http.MethodPost, "token?grant_type=refresh_token",
		map[string]string{"refresh_token": refreshToken}, "", &s)
	if err != nil {
		var v *domain.ErrValidation
		if errors.As(err, &v) {
			return nil, &domain.ErrUnauthorized{Message: v.Message}
		}
		return nil, err
	}
	return s.toDomain(), nil
}

// UpdatePassword sets a new password for the token's user.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdatePassword")
	defer span.End()

	return c.authCall(ctx, "user", http.MethodPut, "user", map[string]string{"password": newPassword}, accessToken, nil)
}

func idOf(u *gotrueUser) string {
	if u == nil {
		return ""
	}
	return u.ID
}
