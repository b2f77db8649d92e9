package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/memory"
	"github.com/strangerdangercoffee/portal/internal/infra/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newAuth() *memory.Auth {
	return memory.NewAuth(token.NewManager("test-secret", time.Hour), zap.NewNop()).WithBcryptCost(bcrypt.MinCost)
}

func TestAuth_SignUpSignInSignOut(t *testing.T) {
	ctx := context.Background()
	a := newAuth()

	id, session, err := a.SignUp(ctx, "owner@cafe.test", "secret1", "Dana")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "Dana", id.FullName)

	_, err = a.SignIn(ctx, "owner@cafe.test", "wrong")
	var unauthorized *domain.ErrUnauthorized
	require.True(t, errors.As(err, &unauthorized))

	s, err := a.SignIn(ctx, "OWNER@cafe.test", "secret1")
	require.NoError(t, err)

	got, err := a.GetUser(ctx, s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id.ID, got.ID)

	require.NoError(t, a.SignOut(ctx, s.AccessToken))
	_, err = a.GetUser(ctx, s.AccessToken)
	require.Error(t, err)
}

func TestAuth_DuplicateSignUp(t *testing.T) {
	ctx := context.Background()
	a := newAuth()

	_, _, err := a.SignUp(ctx, "owner@cafe.test", "secret1", "Dana")
	require.NoError(t, err)
	_, _, err = a.SignUp(ctx, "owner@cafe.test", "secret2", "Dana")
	var v *domain.ErrValidation
	require.True(t, errors.As(err, &v))
}

func TestAuth_PasswordRecovery(t *testing.T) {
	ctx := context.Background()
	a := newAuth()

	_, _, err := a.SignUp(ctx, "owner@cafe.test", "secret1", "Dana")
	require.NoError(t, err)
	require.NoError(t, a.SendPasswordReset(ctx, "owner@cafe.test", "http://localhost/reset-password.html"))

	recovery, ok := a.RecoveryToken("owner@cafe.test")
	require.True(t, ok)

	s, err := a.Recover(ctx, recovery, "")
	require.NoError(t, err)
	require.NoError(t, a.UpdatePassword(ctx, s.AccessToken, "newsecret"))

	_, err = a.SignIn(ctx, "owner@cafe.test", "secret1")
	require.Error(t, err)
	_, err = a.SignIn(ctx, "owner@cafe.test", "newsecret")
	require.NoError(t, err)
}

func TestAuth_RecoverWithRefreshToken(t *testing.T) {
	ctx := context.Background()
	a := newAuth()

	_, session, err := a.SignUp(ctx, "owner@cafe.test", "secret1", "")
	require.NoError(t, err)

	s, err := a.Recover(ctx, "expired-or-garbage", session.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, s.AccessToken)

	// refresh tokens rotate
	_, err = a.Recover(ctx, "expired-or-garbage", session.RefreshToken)
	require.Error(t, err)
}

func TestAuth_ResetUnknownEmailIsSilent(t *testing.T) {
	require.NoError(t, newAuth().SendPasswordReset(context.Background(), "nobody@cafe.test", ""))
}
