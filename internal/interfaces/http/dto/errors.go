package dto

import (
	"net/http"

	"github.com/erpsync/backend/internal/domain/shared"
)

// Error code constants
// Format: ERR_<CATEGORY>
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeValidation is used when input was rejected as invalid
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used when a document already exists remotely
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeMapping is used when no account mapping covers the input
	ErrCodeMapping = "ERR_MAPPING"
	// ErrCodeUpstreamAuth is used when a remote session could not be established
	ErrCodeUpstreamAuth = "ERR_UPSTREAM_AUTH"
	// ErrCodeUpstreamUnavailable is used when a remote system is unreachable
	ErrCodeUpstreamUnavailable = "ERR_UPSTREAM_UNAVAILABLE"
	// ErrCodePartialWrite is used when a remote write half-completed
	ErrCodePartialWrite = "ERR_PARTIAL_WRITE"
	// ErrCodeRateLimited is used when the API rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeValidation:          http.StatusUnprocessableEntity,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeMapping:             http.StatusUnprocessableEntity,
	ErrCodeUpstreamAuth:        http.StatusBadGateway,
	ErrCodeUpstreamUnavailable: http.StatusServiceUnavailable,
	ErrCodePartialWrite:        http.StatusInternalServerError,
	ErrCodeRateLimited:         http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status for an error code
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// CodeForKind maps a failure classification to an API error code
func CodeForKind(kind shared.ErrorKind) string {
	switch kind {
	case shared.KindValidation:
		return ErrCodeValidation
	case shared.KindConflict:
		return ErrCodeConflict
	case shared.KindMapping:
		return ErrCodeMapping
	case shared.KindAuthExpired:
		return ErrCodeUpstreamAuth
	case shared.KindTransientIO:
		return ErrCodeUpstreamUnavailable
	case shared.KindPartialWrite:
		return ErrCodePartialWrite
	default:
		return ErrCodeInternal
	}
}
