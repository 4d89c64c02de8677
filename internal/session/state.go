// Package session owns the client-side lifecycle of an identity-provider session:
// silent restore, explicit login, periodic refresh and logout.
package session

import (
	"time"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
)

// State is the lifecycle state of a session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateRestoring       State = "restoring"
	StateAuthenticated   State = "authenticated"
	StateRefreshing      State = "refreshing"
	StateInvalid         State = "invalid"
)

// Logout reason codes appended to the login surface after a forced logout.
const (
	ReasonUnauthorized   = "unauthorized"
	ReasonSessionExpired = "session_expired"
)

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	State    State
	Identity *domainauth.Identity
	// Rejection is the last validation failure, transient or terminal.
	Rejection *domainauth.Rejection
	// LogoutReason is set after a forced logout.
	LogoutReason string
	Expiry       time.Time
}

// Authenticated reports whether the snapshot carries a usable identity.
func (s Snapshot) Authenticated() bool {
	return s.Identity != nil && (s.State == StateAuthenticated || s.State == StateRefreshing)
}

// session is the mutable state owned by a Controller.
type session struct {
	state        State
	token        domainauth.Token
	identity     *domainauth.Identity
	rejection    *domainauth.Rejection
	logoutReason string

	// pendingLogin is the in-flight authorization request; consumed by the first callback.
	pendingLogin *pendingLogin
	// pendingRedirect is where to go after the next successful authentication; consumed once.
	pendingRedirect string
}

type pendingLogin struct {
	state       string
	nonce       string
	verifier    string
	redirectURL string
}

func (s *session) snapshot() Snapshot {
	snap := Snapshot{
		State:        s.state,
		Rejection:    s.rejection,
		LogoutReason: s.logoutReason,
		Expiry:       s.token.Expiry,
	}
	if s.identity != nil {
		id := *s.identity
		id.Roles = append([]domainauth.Role(nil), s.identity.Roles...)
		snap.Identity = &id
	}
	return snap
}

// takeRedirect returns the deferred destination and clears it.
func (s *session) takeRedirect() string {
	dest := s.pendingRedirect
	s.pendingRedirect = ""
	return dest
}

func (s *session) reset(state State) {
	s.state = state
	s.token = domainauth.Token{}
	s.identity = nil
	s.pendingLogin = nil
	s.pendingRedirect = ""
}

// awaitingRetry reports whether a token is held after a transient validation failure.
func (s *session) awaitingRetry() bool {
	return s.state == StateUnauthenticated &&
		s.token.AccessToken != "" &&
		s.rejection != nil && s.rejection.Transient()
}
