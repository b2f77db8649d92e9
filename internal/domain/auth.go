package domain

import (
	"regexp"
	"strings"
	"time"
)

// ============================================================
// Auth: identities, sessions and request bodies
// ============================================================

// MinPasswordLength is enforced on sign-up and password reset.
const MinPasswordLength = 6

// Identity is an authenticated user as reported by the auth provider.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// AuthSession is the token pair issued by the auth provider.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int       `json:"expires_in"`
	User         *Identity `json:"user"`
}

// SignUpRequest is the body for POST /v1/auth/signup.
type SignUpRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// SignUpResponse is returned by POST /v1/auth/signup.
type SignUpResponse struct {
	User    *Identity    `json:"user"`
	Session *AuthSession `json:"session,omitempty"`
	Next    Route        `json:"next"`
	Message string       `json:"message"`
}

// SignInRequest is the body for POST /v1/auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResponse carries the session and where the user goes next.
type SignInResponse struct {
	Session *AuthSession `json:"session"`
	Next    Route        `json:"next"`
}

// ForgotPasswordRequest is the body for POST /v1/auth/password/forgot.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body for POST /v1/auth/password/reset.
// The tokens come from the recovery link fragment.
type ResetPasswordRequest struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	Type            string `json:"type"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// RecoveryTokenType marks a password recovery link.
const RecoveryTokenType = "recovery"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ValidateNewPassword checks length and confirmation.
func ValidateNewPassword(password, confirm string) error {
	if password != confirm {
		return &ErrValidation{Field: "confirm_password", Message: "Passwords do not match"}
	}
	if len(password) < MinPasswordLength {
		return &ErrValidation{Field: "password", Message: "Password must be at least 6 characters long"}
	}
	return nil
}

// Validate checks the sign-up form without contacting the provider.
func (r *SignUpRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if r.Name == "" || r.Email == "" || r.Password == "" || r.ConfirmPassword == "" {
		return &ErrValidation{Message: "Please fill in all fields"}
	}
	return ValidateNewPassword(r.Password, r.ConfirmPassword)
}

// Validate checks the sign-in form.
func (r *SignInRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || r.Password == "" {
		return &ErrValidation{Message: "Please fill in all fields"}
	}
	return nil
}

// Validate checks the recovery tokens and the new password.
func (r *ResetPasswordRequest) Validate() error {
	if r.Type != RecoveryTokenType || r.AccessToken == "" {
		return &ErrValidation{Field: "token", Message: "Invalid or missing password reset link"}
	}
	if r.Password == "" || r.ConfirmPassword == "" {
		return &ErrValidation{Message: "Please fill in all fields"}
	}
	return ValidateNewPassword(r.Password, r.ConfirmPassword)
}

// TokenClaims are the claims carried by a Supabase-style access token.
type TokenClaims struct {
	Subject   string
	Email     string
	FullName  string
	Role      string
	ExpiresAt time.Time
}
