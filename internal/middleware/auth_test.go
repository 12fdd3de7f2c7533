package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apierrors "github.com/alselawi/apexo-database/internal/errors"
	"github.com/alselawi/apexo-database/internal/identity"
)

type failingVerifier struct{}

func (failingVerifier) Verify(ctx context.Context, token string) (string, bool, error) {
	return "", false, errors.New("identity service down")
}

func authedHandler(t *testing.T, v identity.Verifier) (http.Handler, *string) {
	t.Helper()

	var seenTenant string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := TenantFrom(r.Context())
		require.True(t, ok)
		seenTenant = tenant
		w.WriteHeader(http.StatusOK)
	})

	errs := apierrors.NewHandler(zap.NewNop())
	return Auth(v, errs, zap.NewNop())(inner), &seenTenant
}

func TestAuthPassesTenantToHandler(t *testing.T) {
	h, seen := authedHandler(t, identity.NewStaticVerifier(map[string]string{"tok": "clinic-a"}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clinic-a", *seen)
}

func TestAuthMissingHeader(t *testing.T) {
	h, _ := authedHandler(t, identity.NewStaticVerifier(nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH_MISSING")
}

func TestAuthMalformedHeader(t *testing.T) {
	h, _ := authedHandler(t, identity.NewStaticVerifier(map[string]string{"tok": "clinic-a"}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH_MISSING")
}

func TestAuthRejectedToken(t *testing.T) {
	h, _ := authedHandler(t, identity.NewStaticVerifier(map[string]string{}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whoever")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH_FAILED")
}

func TestAuthVerifierFailure(t *testing.T) {
	h, _ := authedHandler(t, failingVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "BACKEND_ERROR")
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"well formed", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer abc123", "abc123"},
		{"no header", "", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"scheme only", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, bearerToken(req))
		})
	}
}

func TestTenantFromEmptyContext(t *testing.T) {
	_, ok := TenantFrom(context.Background())
	assert.False(t, ok)
}
