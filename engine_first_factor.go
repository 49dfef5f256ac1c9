package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FirstFactor validates a username/password pair against the directory and
// promotes the session to the one-factor level.
//
// The sequence is strict: regulation is consulted before the directory is
// touched, and a regulated user generates no new attempt trace. A bind
// failure is the only outcome recorded as a failed attempt; directory
// faults after a successful bind surface as infrastructure errors without
// touching the regulation window.
//
// On success the returned redirect is the requested target URL, falling
// back to the configured default.
func (e *Engine) FirstFactor(ctx context.Context, sessionID, username, password string, keepMeLoggedIn bool, targetURL string) (string, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metricObserve(MetricFirstFactorLatency, time.Since(start)) }()
	}

	if err := e.regulation.Regulate(ctx, username); err != nil {
		if errors.Is(err, ErrAuthenticationRegulated) {
			e.metricInc(MetricFirstFactorRegulated)
			e.emitAudit(ctx, auditFirstFactorRegulated, username, false, err)
		}
		return "", err
	}

	// An empty password must never reach the directory: some LDAP servers
	// treat an empty-password bind as anonymous and report success.
	if password == "" {
		e.regulation.Mark(ctx, username, false)
		e.metricInc(MetricFirstFactorFailure)
		e.emitAudit(ctx, auditFirstFactorFailure, username, false, ErrInvalidCredentials)
		return "", ErrInvalidCredentials
	}

	if err := e.ldap.Bind(ctx, username, password); err != nil {
		e.regulation.Mark(ctx, username, false)
		e.metricInc(MetricFirstFactorFailure)
		e.emitAudit(ctx, auditFirstFactorFailure, username, false, ErrInvalidCredentials)
		return "", ErrInvalidCredentials
	}

	details, err := e.ldap.Search(ctx, username)
	if err != nil {
		// The credentials were right; the directory lookup failed. This is
		// an infrastructure fault, not an authentication failure, so it
		// must not count against the user.
		e.emitAudit(ctx, auditFirstFactorFailure, username, false, ErrLDAPSearch)
		return "", fmt.Errorf("%w: %v", ErrLDAPSearch, err)
	}
	if len(details.Emails) == 0 {
		e.emitAudit(ctx, auditFirstFactorFailure, username, false, ErrIdentityMissing)
		return "", ErrIdentityMissing
	}

	e.regulation.Mark(ctx, username, true)

	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	sess.ApplyFirstFactor(username, details.Emails[0], details.Groups)
	sess.KeepMeLoggedIn = keepMeLoggedIn
	if targetURL != "" {
		sess.Redirect = targetURL
	}
	if err := e.saveSession(ctx, sessionID, sess); err != nil {
		return "", err
	}

	e.metricInc(MetricFirstFactorSuccess)
	e.emitAudit(ctx, auditFirstFactorSuccess, username, true, nil)

	redirect := targetURL
	if redirect == "" {
		redirect = e.config.DefaultRedirect
	}
	return redirect, nil
}
