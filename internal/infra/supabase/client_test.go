package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/resilience"
	"github.com/strangerdangercoffee/portal/internal/infra/supabase"
	"github.com/strangerdangercoffee/portal/internal/infra/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, h http.HandlerFunc) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return supabase.NewClient(
		srv.Client(), srv.URL, "anon-key", "service-key",
		resilience.NewCircuitBreaker("supabase-test"),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
}

func TestGetProfile_SendsKeysAndDecodes(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/profiles", r.URL.Path)
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":"p1","user_id":"user-1","business_name":"Bean There","office_size":12,"created_at":"2024-05-01T10:00:00+00:00","updated_at":"2024-05-01T10:00:00+00:00"}]`))
	})

	p, err := c.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Bean There", p.BusinessName)
	assert.Equal(t, 12, p.OfficeSize)
}

func TestGetProfile_EmptyIsNotFound(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[]`))
	})

	_, err := c.GetProfile(context.Background(), "user-1")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "not found must not be retried")
}

func TestGetProfile_NoRowsCode(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotAcceptable)
		w.Write([]byte(`{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`))
	})

	_, err := c.GetProfile(context.Background(), "user-1")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)
}

func TestCreateProfile_DuplicateIsConflict(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"profiles_user_id_key\""}`))
	})

	_, err := c.CreateProfile(context.Background(), &domain.Profile{UserID: "user-1", BusinessName: "Bean There"})
	var conflict *domain.ErrConflict
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreateRequest_BodyUsesTableColumns(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/service_requests", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for k := range body {
			assert.Contains(t, domain.RequestColumns, k, "column %q is not in service_requests", k)
		}
		assert.Equal(t, "pending", body["status"])
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":7,"user_id":"user-1","service_type":"coffee-refill","status":"pending","created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-01T10:00:00Z"}]`))
	})

	p := &domain.Profile{BusinessName: "Bean There", BusinessAddress: "1 Main St", PointOfContact: "Dana", PhoneNumber: "555-0100"}
	req := domain.NewServiceRequest(domain.ServiceCoffeeRefill, "user-1", "owner@cafe.test", p)
	got, err := c.CreateRequest(context.Background(), &req)
	require.NoError(t, err)
	assert.Equal(t, "7", got.ID)
}

func TestCreateRequest_NotRetriedAfterServerError(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		// the row may have committed before the gateway failed
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	req := domain.NewServiceRequest(domain.ServiceNitrogenRefill, "user-1", "owner@cafe.test", nil)
	_, err := c.CreateRequest(context.Background(), &req)
	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreateProfile_NotRetriedAfterServerError(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.CreateProfile(context.Background(), &domain.Profile{UserID: "user-1", BusinessName: "Bean There"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListRequests_QueryShape(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/rest/v1/service_requests", r.URL.Path)
		assert.Equal(t, "eq.user-1", q.Get("user_id"))
		assert.Equal(t, "eq.Bean There", q.Get("business_name"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "10", q.Get("limit"))
		w.Write([]byte(`[{"id":42,"user_id":"user-1","service_type":"coffee-refill","status":"pending","admin_notes":null,"created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-01T10:00:00Z"}]`))
	})

	reqs, err := c.ListRequests(context.Background(), domain.RequestQuery{UserID: "user-1", BusinessName: "Bean There", Limit: 10})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "42", reqs[0].ID)
	assert.Equal(t, domain.ServiceCoffeeRefill, reqs[0].ServiceType)
	assert.Empty(t, reqs[0].AdminNotes)
}

func TestListRequests_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	})

	reqs, err := c.ListRequests(context.Background(), domain.RequestQuery{})
	require.NoError(t, err)
	assert.Empty(t, reqs)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestListRequests_BackendErrorSurfacesMessage(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"permission denied for table service_requests"}`))
	})

	_, err := c.ListRequests(context.Background(), domain.RequestQuery{})
	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext), "got %v", err)
	assert.Contains(t, err.Error(), "permission denied for table service_requests")
}

func TestUpdateRequest_SendsPatchAndReturnsRow(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.req-1", r.URL.Query().Get("id"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "completed", body["status"])
		_, hasNotes := body["admin_notes"]
		assert.False(t, hasNotes)

		w.Write([]byte(`[{"id":"req-1","status":"completed","created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-02T10:00:00Z"}]`))
	})

	got, err := c.UpdateRequest(context.Background(), "req-1", map[string]any{"status": "completed", "updated_at": time.Now()})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestUpdateRequest_UnknownID(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := c.UpdateRequest(context.Background(), "missing", map[string]any{"status": "completed"})
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)
}

func TestSignIn_BadCredentialsIsUnauthorized(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})

	_, err := c.SignIn(context.Background(), "owner@cafe.test", "wrong")
	var unauthorized *domain.ErrUnauthorized
	require.True(t, errors.As(err, &unauthorized), "got %v", err)
	assert.Equal(t, "Invalid login credentials", err.Error())
}

func TestSignIn_ReturnsSession(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600,"user":{"id":"user-1","email":"owner@cafe.test","user_metadata":{"full_name":"Dana"}}}`))
	})

	s, err := c.SignIn(context.Background(), "owner@cafe.test", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken)
	require.NotNil(t, s.User)
	assert.Equal(t, "Dana", s.User.FullName)
}

func TestSignUp_WithoutSessionWhenConfirmationRequired(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"full_name": "Dana"}, body["data"])
		w.Write([]byte(`{"id":"user-1","email":"owner@cafe.test","user_metadata":{"full_name":"Dana"}}`))
	})

	id, session, err := c.SignUp(context.Background(), "owner@cafe.test", "secret1", "Dana")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, "user-1", id.ID)
}

func TestGetUser_RemoteAndLocal(t *testing.T) {
	var remote int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&remote, 1)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		w.Write([]byte(`{"id":"user-1","email":"owner@cafe.test"}`))
	})

	id, err := c.GetUser(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.ID)

	_, err = c.GetUser(context.Background(), "bad")
	var unauthorized *domain.ErrUnauthorized
	require.True(t, errors.As(err, &unauthorized))

	m := token.NewManager("jwt-secret", time.Hour)
	signed, err := m.Sign(&domain.Identity{ID: "user-2", Email: "two@cafe.test"})
	require.NoError(t, err)

	before := atomic.LoadInt32(&remote)
	id, err = c.WithTokenVerifier(m).GetUser(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-2", id.ID)
	assert.Equal(t, before, atomic.LoadInt32(&remote), "local verification must not call GoTrue")
}

func TestRecover_RefreshesExpiredToken(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/user":
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"msg":"token is expired"}`))
		case "/auth/v1/token":
			assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
			b, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(b), "rt-1")
			w.Write([]byte(`{"access_token":"fresh","refresh_token":"rt-2","user":{"id":"user-1"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	s, err := c.Recover(context.Background(), "stale", "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", s.AccessToken)
}

func TestSendPasswordReset_RedirectTo(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/recover", r.URL.Path)
		assert.Equal(t, "https://portal.test/reset-password.html", r.URL.Query().Get("redirect_to"))
		w.Write([]byte(`{}`))
	})

	require.NoError(t, c.SendPasswordReset(context.Background(), "owner@cafe.test", "https://portal.test/reset-password.html"))
}
