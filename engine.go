package authgate

import (
	"context"
	"errors"

	"github.com/authgate/authgate/internal/metrics"
	"github.com/authgate/authgate/session"
)

// Engine is the authentication core: it validates factors, enforces
// brute-force regulation and access control, and drives the self-service
// identity verification flows. Construct one through [Builder.Build]; all
// methods are then safe for concurrent use.
type Engine struct {
	config Config

	sessions    *session.Store
	regulation  *regulator
	tokens      *tokenService
	totpSecrets *totpSecretStore
	devices     *deviceStore
	preferences *preferenceStore
	acl         *accessController
	totp        *totpManager

	ldap          LDAPProvider
	notifier      Notifier
	duo           DuoProvider
	authenticator DeviceAuthenticator

	audit   *auditDispatcher
	metrics *metrics.Metrics
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// getSession loads the authentication session bound to sessionID.
func (e *Engine) getSession(ctx context.Context, sessionID string) (*session.AuthenticationSession, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (e *Engine) saveSession(ctx context.Context, sessionID string, sess *session.AuthenticationSession) error {
	return e.sessions.Save(ctx, sessionID, sess)
}

// requireFirstFactor loads the session and rejects anonymous callers.
func (e *Engine) requireFirstFactor(ctx context.Context, sessionID string) (*session.AuthenticationSession, error) {
	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.FirstFactor || sess.Username == "" {
		return nil, ErrFirstFactorRequired
	}
	return sess, nil
}

func (e *Engine) applySecondFactor(ctx context.Context, sessionID string, sess *session.AuthenticationSession) error {
	if err := sess.ApplySecondFactor(); err != nil {
		if errors.Is(err, session.ErrFirstFactorRequired) {
			return ErrFirstFactorRequired
		}
		return err
	}
	return e.saveSession(ctx, sessionID, sess)
}

// completionRedirect resolves where the browser lands once the session
// reaches the two-factor level: the target stored at first factor if the
// user is actually allowed to reach it, the configured default otherwise.
func (e *Engine) completionRedirect(sess *session.AuthenticationSession) string {
	if sess.Redirect == "" {
		return e.config.DefaultRedirect
	}
	domain, err := domainFromTarget(sess.Redirect)
	if err != nil || !e.acl.Authorized(domain, sess.Username, sess.Groups) {
		return e.config.DefaultRedirect
	}
	return sess.Redirect
}

func (e *Engine) deviceUser(sess *session.AuthenticationSession) DeviceUser {
	return DeviceUser{
		ID:          []byte(sess.Username),
		Name:        sess.Username,
		DisplayName: sess.Username,
	}
}
