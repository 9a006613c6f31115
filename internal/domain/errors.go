package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors.
var (
	// ErrMissingCredential is returned when an API key required for a call is unset.
	ErrMissingCredential = errors.New("missing credential")

	// ErrEmptyInput is returned when there is nothing to work on.
	ErrEmptyInput = errors.New("empty input")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNetwork is matched by every *NetworkError.
	ErrNetwork = errors.New("network error")

	// ErrUpstream is matched by every *UpstreamError.
	ErrUpstream = errors.New("upstream error")

	// ErrTimeout is reported when the session watchdog abandons an operation.
	ErrTimeout = errors.New("operation abandoned by watchdog")

	// ErrBusy is returned when the same kind of operation is already running.
	ErrBusy = errors.New("operation already in progress")

	// ErrSuperseded is returned when a run finished after a reset or a newer run.
	ErrSuperseded = errors.New("result discarded: run was superseded")

	// ErrIndexOutOfRange is returned for a comment index that does not exist.
	ErrIndexOutOfRange = errors.New("comment index out of range")

	// ErrInvalidAPIKeyFormat is returned when a saved key has the wrong prefix.
	ErrInvalidAPIKeyFormat = errors.New("invalid API key format")

	// ErrDuplicatePrompt is returned when a prompt with the same name already exists.
	ErrDuplicatePrompt = errors.New("a prompt with this name already exists")

	// ErrPromptNotFound is returned when a prompt cannot be found.
	ErrPromptNotFound = errors.New("prompt not found")

	// ErrSettingsNotFound is returned by repositories when a user has no row yet.
	ErrSettingsNotFound = errors.New("settings not found")
)

// Service names used in credential and upstream errors.
const (
	ServiceApify  = "apify"
	ServiceOpenAI = "openai"
)

// CredentialError names the service whose key is missing.
type CredentialError struct {
	Service string
}

func (e *CredentialError) Error() string {
	switch e.Service {
	case ServiceApify:
		return "Apify API key is not set in settings"
	case ServiceOpenAI:
		return "OpenAI API key is not set in settings"
	}
	return e.Service + " API key is not set in settings"
}

// Unwrap lets errors.Is match ErrMissingCredential.
func (e *CredentialError) Unwrap() error {
	return ErrMissingCredential
}

// NewCredentialError creates a CredentialError for service.
func NewCredentialError(service string) *CredentialError {
	return &CredentialError{Service: service}
}

// ValidationError enumerates every offending value of one field.
type ValidationError struct {
	Field   string
	Reason  string
	Invalid []string
}

func (e *ValidationError) Error() string {
	if len(e.Invalid) == 0 {
		return e.Field + ": " + e.Reason
	}
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Reason, strings.Join(e.Invalid, ", "))
}

// Is reports ErrValidation as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string, invalid ...string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Invalid: invalid}
}

// NetworkError is a transport-level failure: the request never completed.
type NetworkError struct {
	Service string
	TweetID string
	Err     error
}

func (e *NetworkError) Error() string {
	msg := e.Service + " request failed to complete (check network connectivity, proxy or CORS settings)"
	if e.TweetID != "" {
		msg += " [tweet " + e.TweetID + "]"
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is reports ErrNetwork as a match.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// UpstreamError is a non-success answer from an external service.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
	Body       string
	TweetID    string
	TweetIndex int
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s API error", e.Service)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.TweetID != "" {
		msg += fmt.Sprintf(" [tweet %d: %s]", e.TweetIndex, e.TweetID)
	}
	return msg + ": " + e.Message
}

// Is reports ErrUpstream as a match.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// AttachTweet annotates transport and upstream errors with the tweet being
// processed. Other errors are returned unchanged.
func AttachTweet(err error, tweetID string, index int) error {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		cp := *upstream
		cp.TweetID = tweetID
		cp.TweetIndex = index
		return &cp
	}
	var network *NetworkError
	if errors.As(err, &network) {
		cp := *network
		cp.TweetID = tweetID
		return &cp
	}
	return err
}
