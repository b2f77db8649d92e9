package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/cache"
	"github.com/strangerdangercoffee/portal/internal/infra/memory"
	"github.com/strangerdangercoffee/portal/internal/infra/observability"
	"github.com/strangerdangercoffee/portal/internal/infra/resilience"
	"github.com/strangerdangercoffee/portal/internal/infra/token"
	"github.com/strangerdangercoffee/portal/internal/port"
	"github.com/strangerdangercoffee/portal/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- Fakes ---

type sentEmail struct {
	template string
	params   map[string]string
}

type fakeSender struct {
	mu    sync.Mutex
	err   error
	block bool
	sent  []sentEmail
}

func (f *fakeSender) Send(ctx context.Context, template string, params map[string]string) error {
	if f.block {
		<-ctx.Done()
		return &domain.ErrNotification{Template: template, Text: ctx.Err().Error()}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{template: template, params: params})
	return nil
}

func (f *fakeSender) emails() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

// countingAuth counts provider calls.
type countingAuth struct {
	port.AuthProvider
	getUser atomic.Int32
	signUp  atomic.Int32

	// statelessTokens makes SignOut a no-op at the provider, like a
	// provider whose tokens are verified locally until they expire.
	statelessTokens bool
}

func (c *countingAuth) SignOut(ctx context.Context, accessToken string) error {
	if c.statelessTokens {
		return nil
	}
	return c.AuthProvider.SignOut(ctx, accessToken)
}

func (c *countingAuth) GetUser(ctx context.Context, accessToken string) (*domain.Identity, error) {
	c.getUser.Add(1)
	return c.AuthProvider.GetUser(ctx, accessToken)
}

func (c *countingAuth) SignUp(ctx context.Context, email, password, fullName string) (*domain.Identity, *domain.AuthSession, error) {
	c.signUp.Add(1)
	return c.AuthProvider.SignUp(ctx, email, password, fullName)
}

// flakyStore wraps the memory store with injectable failures.
type flakyStore struct {
	*memory.Store
	getProfileErr  error
	listProfileErr error
	createReqErr   error
	listReqErr     error
	noEcho         bool
	listCalls      atomic.Int32
}

func (f *flakyStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if f.getProfileErr != nil {
		return nil, f.getProfileErr
	}
	return f.Store.GetProfile(ctx, userID)
}

func (f *flakyStore) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	if f.listProfileErr != nil {
		return nil, f.listProfileErr
	}
	return f.Store.ListProfiles(ctx)
}

func (f *flakyStore) CreateRequest(ctx context.Context, r *domain.ServiceRequest) (*domain.ServiceRequest, error) {
	if f.createReqErr != nil {
		return nil, f.createReqErr
	}
	created, err := f.Store.CreateRequest(ctx, r)
	if f.noEcho {
		return nil, err
	}
	return created, err
}

func (f *flakyStore) ListRequests(ctx context.Context, q domain.RequestQuery) ([]domain.ServiceRequest, error) {
	f.listCalls.Add(1)
	if f.listReqErr != nil {
		return nil, f.listReqErr
	}
	return f.Store.ListRequests(ctx, q)
}

// clock hands out strictly increasing timestamps.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// --- Harness ---

type harness struct {
	store      *flakyStore
	memAuth    *memory.Auth
	auth       *countingAuth
	sender     *fakeSender
	metrics    *observability.Metrics
	clock      *clock
	gate       *service.SessionGate
	profiles   *service.Profiles
	requests   *service.Requests
	notifier   *service.Dispatcher
	dashboard  *service.Dashboard
	admin      *service.Admin
	authSvc    *service.AuthService
	onboarding *service.Onboarding
}

func newHarness(t *testing.T, adminEmails ...string) *harness {
	t.Helper()
	logger := zap.NewNop()
	clk := newClock()
	store := &flakyStore{Store: memory.NewStore().WithClock(clk.now)}
	memAuth := memory.NewAuth(token.NewManager("test-secret", time.Hour), logger).WithBcryptCost(bcrypt.MinCost)
	auth := &countingAuth{AuthProvider: memAuth}
	sender := &fakeSender{}
	metrics := observability.NewMetrics()

	identities := cache.New[*domain.Identity](time.Minute)
	t.Cleanup(identities.Close)
	revoked := cache.New[struct{}](time.Hour)
	t.Cleanup(revoked.Close)

	profiles := service.NewProfiles(store, logger).WithClock(clk.now)
	requests := service.NewRequests(store, metrics, logger).WithClock(clk.now)
	gate := service.NewSessionGate(auth, profiles, identities, metrics, logger).WithRevocations(revoked)
	notifier := service.NewDispatcher(sender, service.NotifyConfig{
		RequestTemplate:    "template_request",
		OnboardingTemplate: "template_onboarding",
		TeamEmail:          "team@strangerdangercoffee.com",
		AdminURL:           "http://portal.test/admin.html",
		Timeout:            time.Second,
	}, resilience.NewBulkhead(4), metrics, logger).WithClock(clk.now)

	return &harness{
		store:      store,
		memAuth:    memAuth,
		auth:       auth,
		sender:     sender,
		metrics:    metrics,
		clock:      clk,
		gate:       gate,
		profiles:   profiles,
		requests:   requests,
		notifier:   notifier,
		dashboard:  service.NewDashboard(gate, profiles, requests, notifier, metrics, logger),
		admin:      service.NewAdmin(requests, profiles, adminEmails, metrics, logger),
		authSvc:    service.NewAuthService(auth, gate, "http://portal.test/reset-password.html", logger),
		onboarding: service.NewOnboarding(profiles, notifier, logger),
	}
}

// signUp registers a user and returns its session.
func (h *harness) signUp(t *testing.T, email string) *domain.AuthSession {
	t.Helper()
	_, session, err := h.memAuth.SignUp(context.Background(), email, "secret1", "Dana")
	require.NoError(t, err)
	return session
}

// onboard signs up and saves a profile.
func (h *harness) onboard(t *testing.T, email, business string) *domain.AuthSession {
	t.Helper()
	session := h.signUp(t, email)
	_, err := h.onboarding.Submit(context.Background(), session.User, &domain.OnboardingForm{
		BusinessName:    business,
		BusinessAddress: "1 Main St",
		OfficeSize:      12,
		PointOfContact:  "Dana",
		PhoneNumber:     "555-0100",
	})
	require.NoError(t, err)
	return session
}
