package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"
)

var (
	ErrInvalidURL     = errors.New("invalid build URL")
	ErrDuplicateBuild = errors.New("build is already tracked")
)

// ErrorKind classifies failures talking to the CI provider.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnauthorized
	KindOrganizationNotFound
	KindBuildNotFound
	KindRateLimited
	KindInvalidResponse
	KindDecoding
	KindNetwork
)

// String returns the taxonomy name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindOrganizationNotFound:
		return "organization-not-found"
	case KindBuildNotFound:
		return "build-not-found"
	case KindRateLimited:
		return "rate-limited"
	case KindInvalidResponse:
		return "invalid-response"
	case KindDecoding:
		return "decoding-error"
	case KindNetwork:
		return "network-error"
	default:
		return "unknown"
	}
}

// Code is the stable short code shown to users and written to diagnostics.
func (k ErrorKind) Code() string {
	switch k {
	case KindUnauthorized:
		return "AUTH-401"
	case KindOrganizationNotFound:
		return "ORG-404"
	case KindBuildNotFound:
		return "BUILD-404"
	case KindRateLimited:
		return "RATE-429"
	case KindInvalidResponse:
		return "RESP-001"
	case KindDecoding:
		return "DECODE-001"
	case KindNetwork:
		return "NET-001"
	default:
		return "UNKNOWN-001"
	}
}

// IsTransient reports whether polling should continue after this kind of
// failure. Bad credentials and missing organizations will not fix themselves.
func (k ErrorKind) IsTransient() bool {
	return k != KindUnauthorized && k != KindOrganizationNotFound
}

// Severity is the diagnostic level for the kind: "error" or "warning".
func (k ErrorKind) Severity() string {
	switch k {
	case KindRateLimited, KindNetwork, KindBuildNotFound:
		return "warning"
	default:
		return "error"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	// RetryAfter is the server's hint for rate-limited responses, zero if absent.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the stable short code of the error's kind.
func (e *Error) Code() string { return e.Kind.Code() }

// IsTransient reports whether monitoring should keep running.
func (e *Error) IsTransient() bool { return e.Kind.IsTransient() }

// Severity returns the diagnostic level for the error.
func (e *Error) Severity() string { return e.Kind.Severity() }

// Detail is the stringified underlying cause, empty when there is none.
func (e *Error) Detail() string {
	if e.Err == nil {
		if e.StatusCode != 0 {
			return fmt.Sprintf("HTTP %d", e.StatusCode)
		}
		return ""
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return e.Err.Error()
}

// UserMessage renders the kind's message template. org fills the
// organization-not-found template.
func (e *Error) UserMessage(org string) string {
	switch e.Kind {
	case KindUnauthorized:
		return "Authentication failed. Check your Buildkite API token."
	case KindOrganizationNotFound:
		return fmt.Sprintf("Organization %q was not found or is not accessible.", org)
	case KindBuildNotFound:
		return "Build not found."
	case KindRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("Buildkite rate limit reached. Resets in %s.", e.RetryAfter.Round(time.Second))
		}
		return "Buildkite rate limit reached. Retrying next interval."
	case KindInvalidResponse:
		if e.StatusCode != 0 {
			return fmt.Sprintf("Buildkite returned an unexpected response (status %d).", e.StatusCode)
		}
		return "Buildkite returned an unexpected response."
	case KindDecoding:
		return "Could not read the Buildkite response."
	case KindNetwork:
		return "Network error talking to Buildkite."
	default:
		return "An unexpected error occurred."
	}
}

// NewError builds a classified error wrapping cause.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// NewStatusError builds a classified error for an HTTP status.
func NewStatusError(kind ErrorKind, status int, cause error) *Error {
	return &Error{Kind: kind, StatusCode: status, Err: cause}
}

// Classify converts any error into a *Error. Already classified errors are
// returned as-is; transport and JSON failures are recognised by type.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var (
		urlErr    *url.Error
		netErr    net.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &urlErr), errors.As(err, &netErr):
		return NewError(KindNetwork, err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return NewError(KindDecoding, err)
	}
	return NewError(KindUnknown, err)
}

// KindOf returns the classified kind of err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	return Classify(err).Kind
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts API errors to user-friendly messages for the CLI.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrInvalidURL) {
		return &UserError{
			Message: "Invalid build URL",
			Hint:    "Expected format:\n  - https://buildkite.com/org/pipeline/builds/123",
			Err:     err,
		}
	}

	if errors.Is(err, ErrDuplicateBuild) {
		return &UserError{
			Message: "Build is already being watched",
			Err:     err,
		}
	}

	var classified *Error
	if !errors.As(err, &classified) {
		return err
	}

	switch classified.Kind {
	case KindUnauthorized:
		return &UserError{
			Message: "Authentication failed",
			Hint:    "Check that BUILDKITE_API_TOKEN is valid and has the read_builds and read_user scopes.",
			Err:     err,
		}
	case KindOrganizationNotFound:
		return &UserError{
			Message: "Organization not found",
			Hint:    "Check the organization slug (BUILDKITE_ORG or --org).",
			Err:     err,
		}
	case KindBuildNotFound:
		return &UserError{
			Message: "Build not found",
			Hint:    "Check that the build URL is correct and your token can access the pipeline.",
			Err:     err,
		}
	case KindRateLimited:
		return &UserError{
			Message: "Rate limited by Buildkite",
			Hint:    "Increase the polling interval or wait for the limit to reset.",
			Err:     err,
		}
	}

	return err
}
