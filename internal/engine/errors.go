package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/nbhd/internal/community"
)

// ResolutionError is the typed error recorded in State.LastError.
//
// Resolution errors include:
//   - Gateway unavailable: no gateway configured, or its client is closed
//   - Query failed: one specific gateway call returned an error
//   - Timeout: the safety timeout fired before the cycle finished
//
// An actor who belongs nowhere is not an error; that cycle succeeds with an
// empty candidate list.
type ResolutionError struct {
	// Code identifies the error category.
	Code ResolutionErrorCode

	// Message is a human-readable description.
	Message string

	// Op names the gateway operation that failed (query errors only).
	Op string

	// Actor is the identity being resolved.
	Actor community.ActorID

	// Attempt is the cycle the error belongs to.
	Attempt int64

	// Err is the underlying gateway error, if any.
	Err error
}

// ResolutionErrorCode categorizes resolution errors.
type ResolutionErrorCode string

const (
	// ErrCodeGatewayUnavailable indicates the gateway transport is not initialized.
	ErrCodeGatewayUnavailable ResolutionErrorCode = "GATEWAY_UNAVAILABLE"

	// ErrCodeQueryFailed indicates a gateway call returned an error.
	ErrCodeQueryFailed ResolutionErrorCode = "QUERY_FAILED"

	// ErrCodeTimeout indicates the safety timeout fired.
	ErrCodeTimeout ResolutionErrorCode = "TIMEOUT"
)

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s (op=%s)", msg, e.Op)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying gateway error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether automatic retry applies. Timeouts end the
// current cycle as a failure but still consume the retry budget, so every
// code is retryable.
func (e *ResolutionError) Retryable() bool {
	switch e.Code {
	case ErrCodeGatewayUnavailable, ErrCodeQueryFailed, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

func hasCode(err error, code ResolutionErrorCode) bool {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsTimeout returns true if the error is a safety timeout.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

// IsQueryFailed returns true if the error is a failed gateway query.
func IsQueryFailed(err error) bool {
	return hasCode(err, ErrCodeQueryFailed)
}

// IsGatewayUnavailable returns true if the gateway was not usable.
func IsGatewayUnavailable(err error) bool {
	return hasCode(err, ErrCodeGatewayUnavailable)
}

// IsRetryable returns true if err is a ResolutionError that automatic retry
// applies to.
func IsRetryable(err error) bool {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// NewTimeoutError creates a ResolutionError for a fired safety timeout.
func NewTimeoutError(actor community.ActorID, attempt int64, after time.Duration) *ResolutionError {
	return &ResolutionError{
		Code:    ErrCodeTimeout,
		Message: fmt.Sprintf("resolution did not finish within %s", after),
		Actor:   actor,
		Attempt: attempt,
	}
}

// NewUnavailableError creates a ResolutionError for a missing or closed gateway.
func NewUnavailableError(actor community.ActorID, op string, err error) *ResolutionError {
	return &ResolutionError{
		Code:    ErrCodeGatewayUnavailable,
		Message: "persistence gateway is not available",
		Op:      op,
		Actor:   actor,
		Err:     err,
	}
}

// NewQueryError creates a ResolutionError for a failed gateway call.
func NewQueryError(actor community.ActorID, op string, err error) *ResolutionError {
	return &ResolutionError{
		Code:    ErrCodeQueryFailed,
		Message: "gateway query failed",
		Op:      op,
		Actor:   actor,
		Err:     err,
	}
}
