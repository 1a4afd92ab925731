package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is a sentinel error for "not found" cases
var ErrNotFound = errors.New("not found")

// Credential errors are terminal - the workspace must go through the OAuth
// flow again before any further delivery can succeed. None of these are retried.
var (
	ErrNoCredential      = errors.New("no credential found for workspace")
	ErrCredentialExpired = errors.New("credential expired and no refresh token available")
	ErrReauthRequired    = errors.New("refresh token rejected, workspace must re-authorize")
)

// ValidationError indicates malformed or missing input. It is never retried
// and is surfaced to the caller as a client error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotInChannelError indicates the bot is not a member of the target channel.
// It carries remediation guidance so callers can render an actionable message.
type NotInChannelError struct {
	ChannelID string
}

func (e *NotInChannelError) Error() string {
	return fmt.Sprintf(
		"bot is not a member of channel %s - invite it with /invite @YourBot or re-add it from the channel settings",
		e.ChannelID,
	)
}

// RateLimitedError indicates the external API rejected a call with a
// too-many-requests response. RetryAfter carries the server's hint, which
// takes precedence over any computed backoff delay.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by external API, retry after %s", e.RetryAfter)
}

// TransientError wraps failures that are worth retrying: connection failures,
// timeouts and server-side (5xx) errors from the external API.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransientError checks if an error is transient (retryable by default policy)
func IsTransientError(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsRateLimitedError checks if an error is a rate-limit response and returns
// the server's retry-after hint when present
func IsRateLimitedError(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// IsCredentialError checks if an error belongs to the terminal credential
// family that requires re-authorization
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrCredentialExpired) ||
		errors.Is(err, ErrReauthRequired)
}

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
