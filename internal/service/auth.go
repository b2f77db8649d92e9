package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/port"

	"go.uber.org/zap"
)

// AuthService runs the sign-up, sign-in, sign-out and password flows.
// Form validation happens here so invalid input never reaches the provider.
type AuthService struct {
	auth     port.AuthProvider
	gate     *SessionGate
	resetURL string
	logger   *zap.Logger
}

// NewAuthService creates the auth flows. resetURL is where recovery links land.
func NewAuthService(auth port.AuthProvider, gate *SessionGate, resetURL string, logger *zap.Logger) *AuthService {
	return &AuthService{auth: auth, gate: gate, resetURL: resetURL, logger: logger}
}

// SignUp registers the user and sends them to onboarding.
func (s *AuthService) SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.SignUpResponse, error) {
	ctx, span := tracer.Start(ctx, "AuthService.SignUp")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, session, err := s.auth.SignUp(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, err
	}
	if session != nil {
		s.gate.Remember(session.AccessToken, session.User)
	}

	s.logger.Info("user signed up", zap.String("user_id", idOrEmpty(user)))
	return &domain.SignUpResponse{
		User:    user,
		Session: session,
		Next:    domain.RouteOnboarding,
		Message: "Account created successfully! Redirecting to onboarding...",
	}, nil
}

// SignIn authenticates and picks the next page. When the profile lookup
// fails the user is sent to the dashboard.
func (s *AuthService) SignIn(ctx context.Context, req *domain.SignInRequest) (*domain.SignInResponse, error) {
	ctx, span := tracer.Start(ctx, "AuthService.SignIn")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	session, err := s.auth.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if session.User == nil {
		session.User, err = s.auth.GetUser(ctx, session.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("load signed-in user: %w", err)
		}
	}
	s.gate.Remember(session.AccessToken, session.User)

	next := domain.RouteDashboard
	resolved, err := s.gate.ResolveIdentity(ctx, session.User)
	if err != nil {
		s.logger.Warn("sign in: profile check failed, defaulting to dashboard",
			zap.String("user_id", session.User.ID),
			zap.Error(err),
		)
	} else {
		next = resolved.Next()
	}
	return &domain.SignInResponse{Session: session, Next: next}, nil
}

// SignOut revokes the session at the provider and locally.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "AuthService.SignOut")
	defer span.End()

	s.gate.Revoke(accessToken)
	if err := s.auth.SignOut(ctx, accessToken); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// ForgotPassword emails a recovery link.
func (s *AuthService) ForgotPassword(ctx context.Context, req *domain.ForgotPasswordRequest) error {
	ctx, span := tracer.Start(ctx, "AuthService.ForgotPassword")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return &domain.ErrValidation{Field: "email", Message: "Please enter your email address"}
	}
	if !domain.ValidEmail(email) {
		return &domain.ErrValidation{Field: "email", Message: "Please enter a valid email address."}
	}
	return s.auth.SendPasswordReset(ctx, email, s.resetURL)
}

// ResetPassword validates the recovery link and the new password, restores
// the recovery session, then sets the password.
func (s *AuthService) ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error {
	ctx, span := tracer.Start(ctx, "AuthService.ResetPassword")
	defer span.End()

	if err := req.Validate(); err != nil {
		return err
	}

	session, err := s.auth.Recover(ctx, req.AccessToken, req.RefreshToken)
	if err != nil {
		return &domain.ErrUnauthorized{Message: "This password reset link has expired or is invalid. Please request a new one."}
	}
	if err := s.auth.UpdatePassword(ctx, session.AccessToken, req.Password); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.gate.Forget(req.AccessToken)

	s.logger.Info("password reset", zap.String("user_id", idOrEmpty(session.User)))
	return nil
}

func idOrEmpty(id *domain.Identity) string {
	if id == nil {
		return ""
	}
	return id.ID
}
