package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUp_ValidatesBeforeCallingProvider(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.SignUpRequest
		msg  string
	}{
		{"missing name", domain.SignUpRequest{Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret1"}, "Please fill in all fields"},
		{"mismatch", domain.SignUpRequest{Name: "Dana", Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret2"}, "Passwords do not match"},
		{"short", domain.SignUpRequest{Name: "Dana", Email: "a@b.co", Password: "abc", ConfirmPassword: "abc"}, "Password must be at least 6 characters long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := h.authSvc.SignUp(ctx, &req)
			var v *domain.ErrValidation
			require.True(t, errors.As(err, &v), "got %v", err)
			assert.Equal(t, tt.msg, v.Message)
		})
	}
	assert.Equal(t, int32(0), h.auth.signUp.Load())
}

func TestSignUp_GoesToOnboarding(t *testing.T) {
	h := newHarness(t)

	resp, err := h.authSvc.SignUp(context.Background(), &domain.SignUpRequest{
		Name: "Dana", Email: "owner@cafe.test", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RouteOnboarding, resp.Next)
	assert.Equal(t, "Dana", resp.User.FullName)
	require.NotNil(t, resp.Session)

	_, err = h.authSvc.SignUp(context.Background(), &domain.SignUpRequest{
		Name: "Dana", Email: "owner@cafe.test", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.Error(t, err)
}

func TestSignIn_NextRoute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t, "new@cafe.test")
	h.onboard(t, "owner@cafe.test", "Bean There")

	resp, err := h.authSvc.SignIn(ctx, &domain.SignInRequest{Email: "new@cafe.test", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RouteOnboarding, resp.Next)

	resp, err = h.authSvc.SignIn(ctx, &domain.SignInRequest{Email: "owner@cafe.test", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RouteDashboard, resp.Next)

	h.store.getProfileErr = errors.New("connection refused")
	resp, err = h.authSvc.SignIn(ctx, &domain.SignInRequest{Email: "new@cafe.test", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RouteDashboard, resp.Next, "profile errors must not loop back to login")
}

func TestSignIn_Errors(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "owner@cafe.test")

	_, err := h.authSvc.SignIn(context.Background(), &domain.SignInRequest{Email: " "})
	var v *domain.ErrValidation
	require.True(t, errors.As(err, &v))

	_, err = h.authSvc.SignIn(context.Background(), &domain.SignInRequest{Email: "owner@cafe.test", Password: "nope"})
	var unauthorized *domain.ErrUnauthorized
	require.True(t, errors.As(err, &unauthorized))
}

func TestSignOut_RevokesAndForgets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.signUp(t, "owner@cafe.test")

	_, err := h.gate.Identify(ctx, session.AccessToken)
	require.NoError(t, err)
	require.NoError(t, h.authSvc.SignOut(ctx, session.AccessToken))

	sess, err := h.gate.Resolve(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionAnonymous, sess.State)
}

func TestSignOut_RejectsTokenStillValidAtProvider(t *testing.T) {
	h := newHarness(t)
	h.auth.statelessTokens = true
	ctx := context.Background()
	session := h.signUp(t, "owner@cafe.test")

	_, err := h.gate.Identify(ctx, session.AccessToken)
	require.NoError(t, err)
	require.NoError(t, h.authSvc.SignOut(ctx, session.AccessToken))

	_, err = h.gate.Identify(ctx, session.AccessToken)
	var unauthorized *domain.ErrUnauthorized
	require.True(t, errors.As(err, &unauthorized), "got %v", err)

	sess, err := h.gate.Resolve(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionAnonymous, sess.State)
}

func TestForgotPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t, "owner@cafe.test")

	err := h.authSvc.ForgotPassword(ctx, &domain.ForgotPasswordRequest{Email: "not-an-email"})
	var v *domain.ErrValidation
	require.True(t, errors.As(err, &v))

	require.NoError(t, h.authSvc.ForgotPassword(ctx, &domain.ForgotPasswordRequest{Email: " owner@cafe.test "}))
	_, ok := h.memAuth.RecoveryToken("owner@cafe.test")
	assert.True(t, ok)
}

func TestResetPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t, "owner@cafe.test")
	require.NoError(t, h.authSvc.ForgotPassword(ctx, &domain.ForgotPasswordRequest{Email: "owner@cafe.test"}))
	recovery, ok := h.memAuth.RecoveryToken("owner@cafe.test")
	require.True(t, ok)

	err := h.authSvc.ResetPassword(ctx, &domain.ResetPasswordRequest{AccessToken: recovery, Type: "signup", Password: "newsecret", ConfirmPassword: "newsecret"})
	var v *domain.ErrValidation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "Invalid or missing password reset link", v.Message)

	err = h.authSvc.ResetPassword(ctx, &domain.ResetPasswordRequest{AccessToken: recovery, Type: "recovery", Password: "newsecret", ConfirmPassword: "other"})
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "Passwords do not match", v.Message)

	err = h.authSvc.ResetPassword(ctx, &domain.ResetPasswordRequest{AccessToken: "garbage", Type: "recovery", Password: "newsecret", ConfirmPassword: "newsecret"})
	var unauthorized *domain.ErrUnauthorized
	require.True(t, errors.As(err, &unauthorized))

	require.NoError(t, h.authSvc.ResetPassword(ctx, &domain.ResetPasswordRequest{
		AccessToken: recovery, Type: "recovery", Password: "newsecret", ConfirmPassword: "newsecret",
	}))
	_, err = h.authSvc.SignIn(ctx, &domain.SignInRequest{Email: "owner@cafe.test", Password: "newsecret"})
	require.NoError(t, err)
}
