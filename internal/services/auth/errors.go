package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gasamara891-boop/river/supabase/client"
)

// ErrorKind tells API clients which credential field a failure concerns, so
// the UI can attach the message to the right input instead of parsing
// message text.
type ErrorKind string

const (
	// KindName covers a missing display name at signup.
	KindName ErrorKind = "name"
	// KindEmail covers unknown, unconfirmed, or malformed email addresses.
	KindEmail ErrorKind = "email"
	// KindPassword covers rejected credentials.
	KindPassword ErrorKind = "password"
	// KindGeneral covers everything else, rate limits and outages included.
	KindGeneral ErrorKind = "general"
)

// Error is a classified authentication failure.
type Error struct {
	Kind    ErrorKind
	Message string
	err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.err }

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, err: cause}
}

// classify maps GoTrue failures onto error kinds at the one place that sees
// raw provider responses.
func classify(err error) *Error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return newError(KindGeneral, "authentication service unavailable", err)
	}

	msg := strings.ToLower(apiErr.Message)
	switch {
	case strings.Contains(msg, "email not confirmed"):
		return newError(KindEmail, "email not confirmed; check your inbox or resend the confirmation", err)
	case strings.Contains(msg, "invalid login credentials"):
		return newError(KindPassword, "incorrect email or password", err)
	case strings.Contains(msg, "already registered"):
		return newError(KindEmail, "an account with this email already exists", err)
	case strings.Contains(msg, "invalid email") || strings.Contains(msg, "validate email"):
		return newError(KindEmail, "enter a valid email address", err)
	case strings.Contains(msg, "password"):
		return newError(KindPassword, apiErr.Message, err)
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return newError(KindGeneral, "too many attempts; try again shortly", err)
	default:
		return newError(KindGeneral, fmt.Sprintf("authentication failed: %s", apiErr.Message), err)
	}
}
