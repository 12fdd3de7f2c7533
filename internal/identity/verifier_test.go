package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newIdentityServer(t *testing.T, tokens map[string]string, calls *int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++

		var req struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		tenant, ok := tokens[req.Token]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"tenant": tenant,
		})
	}))
}

func TestHTTPVerifierAcceptsKnownToken(t *testing.T) {
	calls := 0
	srv := newIdentityServer(t, map[string]string{"tok": "clinic-a"}, &calls)
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, time.Second, 16, time.Minute, zap.NewNop())

	tenant, ok, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "clinic-a", tenant)
}

func TestHTTPVerifierRejectsUnknownToken(t *testing.T) {
	calls := 0
	srv := newIdentityServer(t, map[string]string{}, &calls)
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, time.Second, 16, time.Minute, zap.NewNop())

	tenant, ok, err := v.Verify(context.Background(), "bogus")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, tenant)
}

func TestHTTPVerifierCachesSuccessfulVerdicts(t *testing.T) {
	calls := 0
	srv := newIdentityServer(t, map[string]string{"tok": "clinic-a"}, &calls)
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, time.Second, 16, time.Minute, zap.NewNop())

	for i := 0; i < 5; i++ {
		tenant, ok, err := v.Verify(context.Background(), "tok")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "clinic-a", tenant)
	}
	assert.Equal(t, 1, calls, "repeated verifications should be served from cache")
}

func TestHTTPVerifierDoesNotCacheRejections(t *testing.T) {
	calls := 0
	srv := newIdentityServer(t, map[string]string{}, &calls)
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, time.Second, 16, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, ok, err := v.Verify(context.Background(), "bogus")
		require.NoError(t, err)
		require.False(t, ok)
	}
	assert.Equal(t, 3, calls)
}

func TestHTTPVerifierServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, time.Second, 16, time.Minute, zap.NewNop())

	_, ok, err := v.Verify(context.Background(), "tok")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestHTTPVerifierUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	v := NewHTTPVerifier(srv.URL, time.Second, 16, time.Minute, zap.NewNop())

	_, ok, err := v.Verify(context.Background(), "tok")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestHTTPVerifierRejectsVerdictWithoutTenant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "tenant": ""})
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, time.Second, 16, time.Minute, zap.NewNop())

	_, ok, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(map[string]string{"dev-token": "dev-tenant"})

	tenant, ok, err := v.Verify(context.Background(), "dev-token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dev-tenant", tenant)

	_, ok, err = v.Verify(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, ok)
}
