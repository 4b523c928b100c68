package shared

import "errors"

// ErrorKind classifies a failure for retry and marker policy.
// The orchestrator retries kinds whose Retryable() is true, re-authenticates
// once for KindAuthExpired, and sets a terminal failure marker for the rest.
type ErrorKind string

const (
	// KindTransientIO covers network errors, timeouts and rate limiting.
	KindTransientIO ErrorKind = "TRANSIENT_IO"
	// KindAuthExpired means the remote session expired and a re-login is needed.
	KindAuthExpired ErrorKind = "AUTH_EXPIRED"
	// KindValidation means the remote system rejected the input as malformed.
	// Retrying identical input cannot succeed.
	KindValidation ErrorKind = "VALIDATION"
	// KindConflict means the document already exists. Once confirmed via the
	// existence check this is treated as success, not an error.
	KindConflict ErrorKind = "CONFLICT"
	// KindMapping means no account mapping exists for an instrument/location.
	KindMapping ErrorKind = "MAPPING"
	// KindPartialWrite means the document was created but a follow-up
	// cross-reference write failed. Recoverable on the next pass.
	KindPartialWrite ErrorKind = "PARTIAL_WRITE"
	// KindUnknown is the fallback classification.
	KindUnknown ErrorKind = "UNKNOWN"
)

// Retryable reports whether an error of this kind is worth retrying
// with the same input.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTransientIO, KindAuthExpired, KindPartialWrite:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind
func (k ErrorKind) String() string {
	return string(k)
}

// ClassifiedError attaches an ErrorKind to an underlying error
type ClassifiedError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

// Unwrap exposes the underlying error to errors.Is/As
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify wraps err with the given kind. A nil err returns nil.
func Classify(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from err, walking the wrap chain.
// Unclassified errors report KindUnknown.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err carries a retryable classification
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
