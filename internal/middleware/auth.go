package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apierrors "github.com/alselawi/apexo-database/internal/errors"
	"github.com/alselawi/apexo-database/internal/identity"
)

// Auth resolves the bearer token to a tenant and stores it in the request
// context. Handlers downstream read the tenant from the context only; no
// per-request state lives anywhere else.
func Auth(verifier identity.Verifier, errs *apierrors.Handler, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")

			token := bearerToken(r)
			if token == "" {
				errs.WriteErrorResponse(w, http.StatusUnauthorized,
					apierrors.CodeAuthMissing, "missing bearer token", requestID)
				return
			}

			tenant, ok, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Error("identity verification failed",
					zap.Error(err),
					zap.String("request_id", requestID))
				errs.WriteErrorResponse(w, http.StatusBadGateway,
					apierrors.CodeBackendError, "identity service unavailable", requestID)
				return
			}
			if !ok {
				errs.WriteErrorResponse(w, http.StatusUnauthorized,
					apierrors.CodeAuthFailed, "token rejected", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), TenantKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFrom returns the authenticated tenant stored in ctx.
func TenantFrom(ctx context.Context) (string, bool) {
	tenant, ok := ctx.Value(TenantKey).(string)
	return tenant, ok && tenant != ""
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
