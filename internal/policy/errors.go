package policy

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes offline-layer failures.
type ErrorCode string

const (
	// ErrCodeNetworkUnavailable indicates the origin could not be reached.
	ErrCodeNetworkUnavailable ErrorCode = "NETWORK_UNAVAILABLE"

	// ErrCodeCacheMiss indicates neither network nor cache could answer.
	ErrCodeCacheMiss ErrorCode = "CACHE_MISS"

	// ErrCodeReplayFailed indicates a queued mutation was not accepted remotely.
	ErrCodeReplayFailed ErrorCode = "REPLAY_FAILED"

	// ErrCodeStoreUnavailable indicates the persistent store cannot be used.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// OfflineError is a classified failure of the offline layer.
type OfflineError struct {
	Code    ErrorCode
	Message string
	URL     string
	Err     error
}

// Error implements the error interface.
func (e *OfflineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.URL != "" {
		msg += fmt.Sprintf(" (url=%s)", e.URL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *OfflineError) Unwrap() error {
	return e.Err
}

// NetworkError wraps a transport failure for url.
func NetworkError(url string, err error) *OfflineError {
	return &OfflineError{
		Code:    ErrCodeNetworkUnavailable,
		Message: "network request failed",
		URL:     url,
		Err:     err,
	}
}

// StoreError wraps a persistent-store failure.
func StoreError(err error) *OfflineError {
	return &OfflineError{
		Code:    ErrCodeStoreUnavailable,
		Message: "persistent store unavailable",
		Err:     err,
	}
}

// HasCode reports whether err is an OfflineError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code ErrorCode) bool {
	var oe *OfflineError
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}

// IsNetworkError reports whether err is a network-unavailable failure.
func IsNetworkError(err error) bool {
	return HasCode(err, ErrCodeNetworkUnavailable)
}
