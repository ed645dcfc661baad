package asr

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTiming is returned by [Normalize] when a transcription contains
// neither word nor segment timestamps. Callers treat it as the trigger for
// synthesizing fallback timing; it is never surfaced to end users.
var ErrNoTiming = errors.New("asr: transcription contains no usable timing")

// Code classifies provider failures at the service boundary.
type Code string

const (
	// CodeRateLimited means the provider rejected the call due to rate
	// limiting. Retryable; RetryAfter carries the provider's hint when
	// available.
	CodeRateLimited Code = "rate_limited"

	// CodePayloadTooLarge means the audio exceeds the provider's size limit.
	// Not retryable with the same payload.
	CodePayloadTooLarge Code = "payload_too_large"

	// CodeInternal is the generic classification for everything else.
	CodeInternal Code = "internal_error"
)

// Error is a classified provider failure.
type Error struct {
	// Code classifies the failure.
	Code Code

	// RetryAfter is the provider's retry hint for rate-limited calls, zero
	// when absent or not applicable.
	RetryAfter time.Duration

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("asr: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("asr: %s", e.Code)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the call may succeed if repeated later.
func (e *Error) Retryable() bool { return e.Code == CodeRateLimited }

// CodeOf extracts the [Code] from err, or [CodeInternal] when err carries no
// classification.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}
