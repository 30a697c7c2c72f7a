// Package driven declares the ports the application uses to reach external
// systems, and the errors adapters map their failures to.
package driven

import (
	"context"
	"errors"
)

// Sentinel errors returned (wrapped) by driven adapters.
var (
	// ErrUnauthorized is returned when a credential is rejected or lacks access.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when a project, ticket, or endpoint does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned when the remote side throttles the caller.
	ErrRateLimited = errors.New("rate limited")
	// ErrNetwork is returned for transport failures and timeouts.
	ErrNetwork = errors.New("network error")
)

// IsUnavailable reports whether err means the remote side could not be
// reached or answered in time, as opposed to rejecting one request.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
