package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type account struct {
	identity domain.Identity
	hash     []byte
}

// Auth is a local auth provider: bcrypt password hashes and HS256 access
// tokens shaped like GoTrue's.
type Auth struct {
	mu         sync.RWMutex
	accounts   map[string]*account // by lower-cased email
	refresh    map[string]string   // refresh hash -> user id
	revoked    map[string]struct{} // access token hashes
	recovery   map[string]string   // email -> last recovery access token
	tokens     *token.Manager
	bcryptCost int
	logger     *zap.Logger
}

// NewAuth builds a provider that signs with m.
func NewAuth(m *token.Manager, logger *zap.Logger) *Auth {
	return &Auth{
		accounts:   make(map[string]*account),
		refresh:    make(map[string]string),
		revoked:    make(map[string]struct{}),
		recovery:   make(map[string]string),
		tokens:     m,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger,
	}
}

// WithBcryptCost lowers the hashing cost for tests.
func (a *Auth) WithBcryptCost(cost int) *Auth {
	a.bcryptCost = cost
	return a
}

func (a *Auth) GetUser(_ context.Context, accessToken string) (*domain.Identity, error) {
	if accessToken == "" {
		return nil, &domain.ErrUnauthorized{Message: "No active session"}
	}
	a.mu.RLock()
	_, revoked := a.revoked[token.Hash(accessToken)]
	a.mu.RUnlock()
	if revoked {
		return nil, &domain.ErrUnauthorized{Message: "Session has been signed out"}
	}
	return a.tokens.Verify(accessToken)
}

func (a *Auth) SignIn(_ context.Context, email, password string) (*domain.AuthSession, error) {
	a.mu.RLock()
	acc, ok := a.accounts[strings.ToLower(email)]
	a.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, &domain.ErrUnauthorized{Message: "Invalid login credentials"}
	}
	return a.issue(&acc.identity)
}

func (a *Auth) SignUp(_ context.Context, email, password, fullName string) (*domain.Identity, *domain.AuthSession, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return nil, nil, &domain.ErrValidation{Field: "password", Message: err.Error()}
	}

	key := strings.ToLower(email)
	a.mu.Lock()
	if _, exists := a.accounts[key]; exists {
		a.mu.Unlock()
		return nil, nil, &domain.ErrValidation{Field: "email", Message: "User already registered"}
	}
	acc := &account{
		identity: domain.Identity{ID: uuid.NewString(), Email: email, FullName: fullName},
		hash:     hash,
	}
	a.accounts[key] = acc
	a.mu.Unlock()

	session, err := a.issue(&acc.identity)
	if err != nil {
		return nil, nil, err
	}
	id := acc.identity
	return &id, session, nil
}

func (a *Auth) SignOut(_ context.Context, accessToken string) error {
	id, err := a.tokens.Verify(accessToken)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.revoked[token.Hash(accessToken)] = struct{}{}
	for h, uid := range a.refresh {
		if uid == id.ID {
			delete(a.refresh, h)
		}
	}
	return nil
}

// SendPasswordReset mints a recovery token and logs the link. Unknown
// emails succeed silently, like GoTrue.
func (a *Auth) SendPasswordReset(_ context.Context, email, redirectTo string) error {
	a.mu.RLock()
	acc, ok := a.accounts[strings.ToLower(email)]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	session, err := a.issue(&acc.identity)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.recovery[strings.ToLower(email)] = session.AccessToken
	a.mu.Unlock()

	a.logger.Info("memory auth: password recovery link issued",
		zap.String("email", email),
		zap.String("link", redirectTo+"#type=recovery&access_token="+session.AccessToken+"&refresh_token="+session.RefreshToken),
	)
	return nil
}

// RecoveryToken returns the last recovery access token sent to email.
func (a *Auth) RecoveryToken(email string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.recovery[strings.ToLower(email)]
	return t, ok
}

func (a *Auth) Recover(ctx context.Context, accessToken, refreshToken string) (*domain.AuthSession, error) {
	id, err := a.GetUser(ctx, accessToken)
	if err == nil {
		return &domain.AuthSession{AccessToken: accessToken, RefreshToken: refreshToken, User: id}, nil
	}
	if refreshToken == "" {
		return nil, err
	}

	a.mu.Lock()
	uid, ok := a.refresh[token.Hash(refreshToken)]
	delete(a.refresh, token.Hash(refreshToken))
	a.mu.Unlock()
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "Invalid Refresh Token"}
	}

	acc := a.byID(uid)
	if acc == nil {
		return nil, &domain.ErrUnauthorized{Message: "User not found"}
	}
	return a.issue(&acc.identity)
}

func (a *Auth) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	id, err := a.GetUser(ctx, accessToken)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.bcryptCost)
	if err != nil {
		return &domain.ErrValidation{Field: "password", Message: err.Error()}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	acc, ok := a.accounts[strings.ToLower(id.Email)]
	if !ok {
		return &domain.ErrUnauthorized{Message: "User not found"}
	}
	acc.hash = hash
	return nil
}

func (a *Auth) issue(id *domain.Identity) (*domain.AuthSession, error) {
	access, err := a.tokens.Sign(id)
	if err != nil {
		return nil, err
	}
	raw, hashed, err := token.NewOpaque()
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.refresh[hashed] = id.ID
	a.mu.Unlock()

	user := *id
	return &domain.AuthSession{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresIn:    int(a.tokens.TTL().Seconds()),
		User:         &user,
	}, nil
}

func (a *Auth) byID(userID string) *account {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, acc := range a.accounts {
		if acc.identity.ID == userID {
			return acc
		}
	}
	return nil
}
