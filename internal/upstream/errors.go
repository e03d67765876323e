// Package upstream normalizes failures from external collaborators (DID
// resolver, status oracle, RPC node, log-index API) into a single taxonomy so
// callers can tell retryable conditions from permanent ones.
package upstream

import (
	"errors"
	"fmt"
)

// Category classifies an upstream failure.
type Category string

const (
	// CategoryTimeout indicates the collaborator took too long to respond.
	CategoryTimeout Category = "timeout"

	// CategoryRateLimited indicates the collaborator throttled us. Always
	// retryable and never silently swallowed.
	CategoryRateLimited Category = "rate_limited"

	// CategoryOutage indicates the collaborator is unavailable.
	CategoryOutage Category = "outage"

	// CategoryBadData indicates the collaborator returned malformed data.
	CategoryBadData Category = "bad_data"

	// CategoryAuthentication indicates credential or permission issues with
	// the collaborator (bad API key).
	CategoryAuthentication Category = "authentication"

	// CategoryNotFound indicates the requested record does not exist.
	CategoryNotFound Category = "not_found"
)

// Error wraps a collaborator failure with normalized categorization.
type Error struct {
	Category     Category
	Collaborator string
	Message      string
	Underlying   error
	Retryable    bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Collaborator, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Collaborator, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a categorized upstream error. Timeouts, outages, and rate
// limits are retryable; everything else is permanent.
func New(category Category, collaborator, message string, underlying error) *Error {
	retryable := category == CategoryTimeout ||
		category == CategoryOutage ||
		category == CategoryRateLimited

	return &Error{
		Category:     category,
		Collaborator: collaborator,
		Message:      message,
		Underlying:   underlying,
		Retryable:    retryable,
	}
}

// IsRetryable reports whether err is an upstream error worth retrying.
func IsRetryable(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}

// CategoryOf returns the category carried by err, or "" when err is not an
// upstream error.
func CategoryOf(err error) Category {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Category
	}
	return ""
}
