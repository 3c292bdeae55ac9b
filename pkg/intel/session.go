package intel

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthState is the session's authentication lifecycle state.
type AuthState int32

const (
	// Unauthenticated means no login has happened yet, or the last attempt
	// failed and may be retried.
	Unauthenticated AuthState = iota
	// Authenticating means a login attempt is in flight; concurrent callers
	// wait for its outcome instead of starting their own.
	Authenticating
	// Authenticated means the jar and CSRF token are believed valid.
	Authenticated
	// Expired means an authenticated request was classified as an auth
	// failure; the next EnsureAuthenticated re-enters the login flow.
	Expired
)

func (s AuthState) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// AuthMode selects how the session obtains its cookies.
type AuthMode int

const (
	// ModeCredentials runs the identity-provider login flow on demand.
	ModeCredentials AuthMode = iota
	// ModeCookiesOnly trusts externally injected cookies; there is no
	// automatic recovery once they expire.
	ModeCookiesOnly
)

// Session owns the cookie jar, the CSRF token and the authentication state
// shared by all in-flight API calls. All fields behind mu; the jar is
// committed by pointer swap so concurrent readers see either the old jar or
// the fully updated one, never a partial merge.
type Session struct {
	id     string
	mode   AuthMode
	flow   loginFlow
	logger *zap.Logger

	mu         sync.Mutex
	state      AuthState
	jar        *CookieJar
	csrfToken  string
	apiVersion string
	// inflight is non-nil while state == Authenticating and is closed when
	// the attempt settles; waiters block on it and re-check state.
	inflight chan struct{}
	// lastErr holds the outcome of the most recent login attempt so
	// waiters that lost the race receive the same error as the initiator.
	lastErr error
}

// newSession builds an empty session in the given mode.
func newSession(mode AuthMode, flow loginFlow, logger *zap.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:     id,
		mode:   mode,
		flow:   flow,
		logger: logger.With(zap.String("session_id", id)),
		jar:    NewCookieJar(),
	}
}

// ID returns the session's identifier, used in log correlation only.
func (s *Session) ID() string { return s.id }

// State returns the current authentication state.
func (s *Session) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddCookie injects one cookie. The injected value survives until a login
// commit overwrites it with a fresher one of the same name.
func (s *Session) AddCookie(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jar := s.jar.Clone()
	jar.Add(name, value)
	s.jar = jar
}

// mergeJar overlays other onto the session jar as one atomic commit.
func (s *Session) mergeJar(other *CookieJar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jar := s.jar.Clone()
	jar.Merge(other)
	s.jar = jar
}

// snapshot returns the request-building state as one consistent view.
func (s *Session) snapshot() (jar *CookieJar, csrfToken, apiVersion string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar, s.csrfToken, s.apiVersion
}

// commitCookies folds response cookies into the jar without disturbing the
// rest of the session state.
func (s *Session) commitCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	jar := s.jar.Clone()
	jar.MergeCookies(cookies)
	s.jar = jar
}

// Invalidate marks an authenticated session as expired. Called by the
// pipeline when a response carries the auth-failure signature.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Authenticated {
		s.logger.Warn("Session marked as expired.")
		s.state = Expired
		s.csrfToken = ""
		// Drop the stale token cookie so the next login re-enters the SSO
		// exchange instead of trusting a dead token.
		jar := s.jar.Clone()
		jar.Remove(cookieCSRFToken)
		s.jar = jar
	}
}

// EnsureAuthenticated drives the session to Authenticated, running at most
// one login flow at a time. Callers that observe an attempt in flight wait
// for its outcome and share its error. A cancelled initiator resets the
// state to Unauthenticated so later callers can retry.
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	for {
		s.mu.Lock()
		switch s.state {
		case Authenticated:
			s.mu.Unlock()
			return nil

		case Authenticating:
			ch := s.inflight
			s.mu.Unlock()
			select {
			case <-ch:
				// Re-check; the attempt may have failed.
				s.mu.Lock()
				err := s.lastErr
				state := s.state
				s.mu.Unlock()
				if state == Authenticated {
					return nil
				}
				if err != nil {
					return err
				}
				// The attempt was cancelled by its initiator; loop and
				// start a fresh one.
				continue
			case <-ctx.Done():
				return ctx.Err()
			}

		case Expired:
			if s.mode == ModeCookiesOnly {
				s.mu.Unlock()
				return ErrSessionExpiredNoCredentials
			}
			fallthrough

		case Unauthenticated:
			ch := make(chan struct{})
			s.inflight = ch
			s.state = Authenticating
			s.lastErr = nil
			jar := s.jar
			s.mu.Unlock()

			return s.runLogin(ctx, ch, jar)

		default:
			s.mu.Unlock()
			return ErrMissingCredentials
		}
	}
}

// runLogin executes the flow outside the lock and commits the result
// atomically.
func (s *Session) runLogin(ctx context.Context, done chan struct{}, jar *CookieJar) error {
	s.logger.Info("Starting authentication.", zap.String("mode", modeName(s.mode)))

	result, err := s.flow.Login(ctx, jar)

	s.mu.Lock()
	if err != nil {
		s.state = Unauthenticated
		s.lastErr = err
		if ctx.Err() != nil {
			// Cancellation is not a login verdict; waiters retry.
			s.lastErr = nil
		}
	} else {
		s.jar = result.jar
		s.csrfToken = result.csrfToken
		s.apiVersion = result.apiVersion
		s.state = Authenticated
	}
	s.inflight = nil
	close(done)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Authentication failed.", zap.Error(err))
		return err
	}
	s.logger.Info("Authentication succeeded.")
	return nil
}

func modeName(m AuthMode) string {
	if m == ModeCookiesOnly {
		return "cookies-only"
	}
	return "credentials"
}
