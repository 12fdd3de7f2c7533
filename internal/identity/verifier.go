// Package identity resolves bearer tokens to tenants. Verification is
// delegated to an external identity service; the tenant it returns is treated
// as an opaque partition key with no further validation of its shape.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Verifier authenticates a bearer token.
type Verifier interface {
	// Verify returns the tenant for token. ok is false when the identity
	// service rejects the token; err reports transport or service failure.
	Verify(ctx context.Context, token string) (tenant string, ok bool, err error)
}

// HTTPVerifier verifies tokens against an external identity service over
// HTTP. Successful verdicts are cached in an expiring LRU so hot tokens do
// not round-trip on every request.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
	cache    *expirable.LRU[string, string]
	logger   *zap.Logger
}

// NewHTTPVerifier creates a verifier calling the given identity endpoint.
func NewHTTPVerifier(endpoint string, timeout time.Duration, cacheSize int, cacheTTL time.Duration, logger *zap.Logger) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		cache:    expirable.NewLRU[string, string](cacheSize, nil, cacheTTL),
		logger:   logger,
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	OK     bool   `json:"ok"`
	Tenant string `json:"tenant"`
}

// Verify implements Verifier.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (string, bool, error) {
	if tenant, ok := v.cache.Get(token); ok {
		return tenant, true, nil
	}

	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return "", false, fmt.Errorf("failed to encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", false, nil
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var verdict verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return "", false, fmt.Errorf("failed to decode verify response: %w", err)
	}

	if !verdict.OK || verdict.Tenant == "" {
		return "", false, nil
	}

	v.cache.Add(token, verdict.Tenant)
	v.logger.Debug("Verified token", zap.String("tenant", verdict.Tenant))
	return verdict.Tenant, true, nil
}

// StaticVerifier resolves tokens from a fixed token→tenant map. Used in
// development mode and tests.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier creates a verifier over a fixed token→tenant map.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	return &StaticVerifier{tokens: tokens}
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(ctx context.Context, token string) (string, bool, error) {
	tenant, ok := v.tokens[token]
	return tenant, ok, nil
}
