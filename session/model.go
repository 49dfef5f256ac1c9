// Package session implements the Redis-backed authentication session used
// by the authgate engine. A session records how far a user has progressed
// through the factors, plus the ephemeral state of in-flight ceremonies.
package session

import "errors"

// ErrFirstFactorRequired is returned by transitions that only make sense
// after the password factor completed.
var ErrFirstFactorRequired = errors.New("session: first factor not completed")

// IdentityCheck records a completed identity verification: the user proved
// control of their mailbox for the given challenge. Flows that need the
// proof (device registration, password reset) require a matching check in
// the session before proceeding.
type IdentityCheck struct {
	Challenge string
	Username  string
}

// AuthenticationSession is the per-cookie server-side state. The zero value
// is a valid anonymous session.
type AuthenticationSession struct {
	Username string
	Email    string
	Groups   []string

	FirstFactor  bool
	SecondFactor bool

	KeepMeLoggedIn bool

	// IdentityCheck, when non-nil, is the completed identity verification
	// for this browser.
	IdentityCheck *IdentityCheck

	// RegisterRequest and SignRequest hold opaque ceremony state between
	// the start and finish halves of a device ceremony.
	RegisterRequest []byte
	SignRequest     []byte

	// Redirect is the URL the user originally asked for, replayed after
	// authentication completes.
	Redirect string
}

// ApplyFirstFactor records a successful password authentication. Any prior
// second-factor state is discarded: a fresh bind restarts the ladder.
func (s *AuthenticationSession) ApplyFirstFactor(username, email string, groups []string) {
	s.Username = username
	s.Email = email
	s.Groups = groups
	s.FirstFactor = true
	s.SecondFactor = false
}

// ApplySecondFactor records a successful second factor. It fails if the
// first factor has not completed; the level ladder never skips a rung.
func (s *AuthenticationSession) ApplySecondFactor() error {
	if !s.FirstFactor {
		return ErrFirstFactorRequired
	}
	s.SecondFactor = true
	return nil
}

// RecordIdentityCheck notes a completed identity verification.
func (s *AuthenticationSession) RecordIdentityCheck(challenge, username string) {
	s.IdentityCheck = &IdentityCheck{Challenge: challenge, Username: username}
}

// ClearIdentityCheck drops the recorded verification, if any.
func (s *AuthenticationSession) ClearIdentityCheck() {
	s.IdentityCheck = nil
}

// Reset returns the session to the anonymous zero state.
func (s *AuthenticationSession) Reset() {
	*s = AuthenticationSession{}
}
