package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit-facade/internal/client"
	"conduit-facade/internal/domain"
	"conduit-facade/internal/feed"
	"conduit-facade/internal/resilience"
	"conduit-facade/internal/session"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		status     int
		retryAfter int
		code       string
		retryable  bool
		wantAfter  int
	}{
		{http.StatusBadGateway, 0, CodeBackendUnavailable, true, 5},
		{http.StatusServiceUnavailable, 0, CodeServiceUnavailable, true, 10},
		{http.StatusServiceUnavailable, 30, CodeServiceUnavailable, true, 30},
		{http.StatusTooManyRequests, 0, CodeRateLimitExceeded, true, 60},
		{http.StatusTooManyRequests, 7, CodeRateLimitExceeded, true, 7},
		{http.StatusUnauthorized, 0, CodeInvalidToken, false, 0},
		{http.StatusForbidden, 0, CodeAccessDenied, false, 0},
		{http.StatusInternalServerError, 0, CodeInternalError, true, 5},
		{http.StatusGatewayTimeout, 0, CodeGatewayTimeout, true, 10},
		{http.StatusBadRequest, 0, CodeBadRequest, false, 0},
		{http.StatusNotFound, 0, CodeNotFound, false, 0},
		{http.StatusUnprocessableEntity, 0, CodeValidationFailed, false, 0},
		{http.StatusTeapot, 0, CodeUnknownError, false, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.status), func(t *testing.T) {
			n := NormalizeStatus(tt.status, tt.retryAfter, "req-1")

			assert.Equal(t, tt.code, n.Code)
			assert.Equal(t, tt.retryable, n.IsRetryable)
			assert.Equal(t, tt.wantAfter, n.RetryAfter)
			assert.Equal(t, "req-1", n.RequestID)
			assert.NotEmpty(t, n.Message)
		})
	}
}

func TestNormalizeError(t *testing.T) {
	fetchErr := func(err error, parse bool) error {
		return &feed.FetchError{URI: "/articles/?limit=10&offset=0", Err: err, Parse: parse}
	}

	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"invalid page", fmt.Errorf("%w: -1", domain.ErrInvalidPage), CodeBadRequest, http.StatusBadRequest},
		{"empty selector", domain.ErrEmptySelector, CodeBadRequest, http.StatusBadRequest},
		{"empty token", session.ErrEmptyToken, CodeBadRequest, http.StatusBadRequest},
		{"circuit open", fetchErr(resilience.ErrCircuitOpen, false), CodeServiceUnavailable, http.StatusServiceUnavailable},
		{"upstream unauthorized", fetchErr(&client.StatusError{StatusCode: 401}, false), CodeInvalidToken, http.StatusUnauthorized},
		{"upstream 500", fetchErr(&client.StatusError{StatusCode: 500}, false), CodeInternalError, http.StatusInternalServerError},
		{"upstream unmapped", fetchErr(&client.StatusError{StatusCode: 418}, false), CodeUnknownError, http.StatusBadGateway},
		{"parse failure", fetchErr(errors.New("decode feed"), true), CodeBackendUnavailable, http.StatusBadGateway},
		{"transport failure", fetchErr(errors.New("connection refused"), false), CodeNetworkError, http.StatusBadGateway},
		{"timeout", fetchErr(context.DeadlineExceeded, false), CodeGatewayTimeout, http.StatusGatewayTimeout},
		{"caller canceled", context.Canceled, CodeRequestCanceled, StatusClientClosedRequest},
		{"unexpected", errors.New("nil map"), CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, status := NormalizeError(tt.err, "req-9")

			assert.Equal(t, tt.code, n.Code)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, "req-9", n.RequestID)
		})
	}
}

func TestNormalizeError_RetryAfterFromUpstream(t *testing.T) {
	err := &feed.FetchError{URI: "/tags", Err: &client.StatusError{StatusCode: 429, RetryAfter: 12}}

	n, status := NormalizeError(err, "")

	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, 12, n.RetryAfter)
	assert.True(t, n.IsRetryable)
}

func TestNormalizedError_JSON(t *testing.T) {
	n := NormalizeStatus(http.StatusUnauthorized, 0, "req-1")

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "INVALID_TOKEN", decoded["code"])
	assert.Equal(t, false, decoded["is_retryable"])
	assert.NotContains(t, decoded, "retry_after")
	assert.Equal(t, "req-1", decoded["request_id"])
}
