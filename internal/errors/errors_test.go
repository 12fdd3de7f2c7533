package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(CodeInvalidTable, "table %q is not configured", "invoices")

	assert.Equal(t, CodeInvalidTable, err.Code)
	assert.Equal(t, `table "invoices" is not configured`, err.Message)
	assert.Equal(t, `INVALID_TABLE: table "invoices" is not configured`, err.Error())
}

func TestBackendPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Backend("append change", cause)

	assert.Equal(t, CodeBackendError, err.Code)
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"tagged error", New(CodeEmptyPayload, "no rows"), CodeEmptyPayload},
		{"wrapped tagged error", fmt.Errorf("handler: %w", New(CodeAuthFailed, "rejected")), CodeAuthFailed},
		{"backend error", Backend("get rows", stderrors.New("timeout")), CodeBackendError},
		{"plain error", stderrors.New("boom"), CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidTable, http.StatusBadRequest},
		{CodeInvalidVersion, http.StatusBadRequest},
		{CodeInvalidPage, http.StatusBadRequest},
		{CodeMalformedBody, http.StatusBadRequest},
		{CodeEmptyPayload, http.StatusBadRequest},
		{CodeNoIDsProvided, http.StatusBadRequest},
		{CodeAuthMissing, http.StatusUnauthorized},
		{CodeAuthFailed, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeBackendError, http.StatusBadGateway},
		{CodeInternalError, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestAsUnwrapsThroughWrapping(t *testing.T) {
	inner := New(CodeNoIDsProvided, "empty id list")
	wrapped := fmt.Errorf("delete: %w", inner)

	var e *Error
	require.True(t, As(wrapped, &e))
	assert.Equal(t, CodeNoIDsProvided, e.Code)
}
