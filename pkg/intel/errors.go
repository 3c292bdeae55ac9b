package intel

import (
	"errors"
	"fmt"
)

// Authentication failures surfaced by the session state machine.
var (
	// ErrInvalidCredentials means the identity provider rejected the
	// configured email/password pair.
	ErrInvalidCredentials = errors.New("intel: invalid identity credentials")

	// ErrChallengeRequired means the identity provider answered with a
	// verification/checkpoint page instead of a session. There is nothing
	// the client can do programmatically; a human has to clear it.
	ErrChallengeRequired = errors.New("intel: identity provider requires a challenge")

	// ErrSessionExpiredNoCredentials is terminal for cookie-only clients:
	// the injected cookies stopped working and no credentials are
	// configured to mint fresh ones.
	ErrSessionExpiredNoCredentials = errors.New("intel: session expired and no credentials configured")

	// ErrPersistentAuthFailure means a request still classified as an auth
	// failure after one full re-authentication cycle.
	ErrPersistentAuthFailure = errors.New("intel: request failed authentication after re-login")

	// ErrMissingCredentials means a login was required but the client was
	// constructed without an email/password pair.
	ErrMissingCredentials = errors.New("intel: credentials required but not configured")
)

// Parse failures.
var (
	// ErrTokenNotFound means no CSRF token marker was present in the page.
	ErrTokenNotFound = errors.New("intel: csrf token not found in page")

	// ErrMalformedResponse means the service answered with a payload that
	// does not match the expected shape.
	ErrMalformedResponse = errors.New("intel: malformed response payload")
)

// HTTPError reports a non-auth HTTP error status. It is never retried.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("intel: unexpected status %d from %s", e.StatusCode, e.URL)
}
