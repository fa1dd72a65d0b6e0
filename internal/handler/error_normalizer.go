// Package handler provides the HTTP handlers of the facade.
package handler

import (
	"context"
	"errors"
	"net/http"

	"conduit-facade/internal/client"
	"conduit-facade/internal/domain"
	"conduit-facade/internal/feed"
	"conduit-facade/internal/resilience"
	"conduit-facade/internal/session"
)

// StatusClientClosedRequest is reported when the SPA went away mid-request.
const StatusClientClosedRequest = 499

// NormalizedError represents a standardized error response for the frontend.
// It provides consistent error information including retry guidance.
type NormalizedError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	IsRetryable bool   `json:"is_retryable"`
	RetryAfter  int    `json:"retry_after,omitempty"` // seconds
	RequestID   string `json:"request_id"`
}

func (e *NormalizedError) Error() string {
	return e.Code + ": " + e.Message
}

// Error codes
const (
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeGatewayTimeout     = "GATEWAY_TIMEOUT"
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNetworkError       = "NETWORK_ERROR"
	CodeRequestCanceled    = "REQUEST_CANCELED"
	CodeUnknownError       = "UNKNOWN_ERROR"
)

type errorKind struct {
	code        string
	message     string
	isRetryable bool
	retryAfter  int
}

// errorMapping defines how upstream HTTP status codes map to normalized errors
var errorMapping = map[int]errorKind{
	http.StatusBadGateway: {
		code:        CodeBackendUnavailable,
		message:     "Conduit API is temporarily unavailable",
		isRetryable: true,
		retryAfter:  5,
	},
	http.StatusServiceUnavailable: {
		code:        CodeServiceUnavailable,
		message:     "Service is temporarily unavailable",
		isRetryable: true,
		retryAfter:  10,
	},
	http.StatusTooManyRequests: {
		code:        CodeRateLimitExceeded,
		message:     "Rate limit exceeded, please slow down",
		isRetryable: true,
		retryAfter:  60,
	},
	http.StatusUnauthorized: {
		code:    CodeInvalidToken,
		message: "Authentication token is invalid or expired",
	},
	http.StatusForbidden: {
		code:    CodeAccessDenied,
		message: "Access to this resource is denied",
	},
	http.StatusInternalServerError: {
		code:        CodeInternalError,
		message:     "An internal error occurred",
		isRetryable: true,
		retryAfter:  5,
	},
	http.StatusGatewayTimeout: {
		code:        CodeGatewayTimeout,
		message:     "Conduit API timed out",
		isRetryable: true,
		retryAfter:  10,
	},
	http.StatusBadRequest: {
		code:    CodeBadRequest,
		message: "The request was malformed or invalid",
	},
	http.StatusNotFound: {
		code:    CodeNotFound,
		message: "The requested resource was not found",
	},
	http.StatusUnprocessableEntity: {
		code:    CodeValidationFailed,
		message: "The request was rejected by the Conduit API",
	},
}

var (
	parseFailure = errorKind{
		code:        CodeBackendUnavailable,
		message:     "Conduit API returned an unreadable response",
		isRetryable: true,
		retryAfter:  5,
	}
	networkFailure = errorKind{
		code:        CodeNetworkError,
		message:     "Unable to connect to the Conduit API",
		isRetryable: true,
		retryAfter:  5,
	}
	circuitOpen = errorKind{
		code:        CodeServiceUnavailable,
		message:     "Conduit API is failing, requests are paused",
		isRetryable: true,
		retryAfter:  10,
	}
	canceled = errorKind{
		code:    CodeRequestCanceled,
		message: "The request was canceled",
	}
)

func (s errorKind) normalize(requestID string) *NormalizedError {
	return &NormalizedError{
		Code:        s.code,
		Message:     s.message,
		IsRetryable: s.isRetryable,
		RetryAfter:  s.retryAfter,
		RequestID:   requestID,
	}
}

// NormalizeStatus converts an upstream status code to a normalized error.
// A positive retryAfter from the Retry-After header overrides the default.
func NormalizeStatus(statusCode, retryAfter int, requestID string) *NormalizedError {
	mapping, ok := errorMapping[statusCode]
	if !ok {
		return &NormalizedError{
			Code:      CodeUnknownError,
			Message:   "An unexpected error occurred",
			RequestID: requestID,
		}
	}

	n := mapping.normalize(requestID)
	if retryAfter > 0 {
		n.RetryAfter = retryAfter
	}
	return n
}

// NormalizeError classifies err and returns the normalized body together
// with the HTTP status to send to the SPA.
func NormalizeError(err error, requestID string) (*NormalizedError, int) {
	var statusErr *client.StatusError

	switch {
	case isBadRequest(err):
		n := errorMapping[http.StatusBadRequest].normalize(requestID)
		n.Message = err.Error()
		return n, http.StatusBadRequest
	case errors.Is(err, resilience.ErrCircuitOpen):
		return circuitOpen.normalize(requestID), http.StatusServiceUnavailable
	case errors.As(err, &statusErr):
		n := NormalizeStatus(statusErr.StatusCode, statusErr.RetryAfter, requestID)
		if n.Code == CodeUnknownError {
			return n, http.StatusBadGateway
		}
		return n, statusErr.StatusCode
	case errors.Is(err, feed.ErrParseFailed):
		return parseFailure.normalize(requestID), http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return errorMapping[http.StatusGatewayTimeout].normalize(requestID), http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return canceled.normalize(requestID), StatusClientClosedRequest
	case errors.Is(err, feed.ErrFetchFailed):
		return networkFailure.normalize(requestID), http.StatusBadGateway
	default:
		n := errorMapping[http.StatusInternalServerError].normalize(requestID)
		n.IsRetryable = false
		n.RetryAfter = 0
		return n, http.StatusInternalServerError
	}
}

func isBadRequest(err error) bool {
	return errors.Is(err, domain.ErrEmptySelector) ||
		errors.Is(err, domain.ErrInvalidPage) ||
		errors.Is(err, session.ErrEmptyToken) ||
		errors.Is(err, errBadInput)
}
