package authgate

import (
	"context"
	"errors"
	"net/url"
)

// State reports the session's progress through the factor ladder, for the
// portal frontend.
func (e *Engine) State(ctx context.Context, sessionID string) (State, error) {
	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return State{}, err
	}

	level := LevelNotAuthenticated
	switch {
	case sess.SecondFactor:
		level = LevelTwoFactor
	case sess.FirstFactor:
		level = LevelOneFactor
	}

	return State{
		Username:            sess.Username,
		AuthenticationLevel: level,
		DefaultRedirect:     e.config.DefaultRedirect,
	}, nil
}

// Logout returns the session to the anonymous state.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	username := sess.Username

	if err := e.sessions.Reset(ctx, sessionID); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditLogout, username, true, nil)
	return nil
}

// PreferredMethod returns the user's preferred second-factor method,
// defaulting to TOTP when none was chosen.
func (e *Engine) PreferredMethod(ctx context.Context, sessionID string) (Method, error) {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return e.preferences.Get(ctx, sess.Username, MethodTOTP)
}

// SetPreferredMethod stores the user's preferred second-factor method.
func (e *Engine) SetPreferredMethod(ctx context.Context, sessionID string, method Method) error {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return err
	}

	switch method {
	case MethodTOTP, MethodWebAuthn, MethodDuoPush:
	default:
		return errors.New("unknown second factor method")
	}

	return e.preferences.Save(ctx, sess.Username, method)
}

// VerifyAccess decides whether the session may reach targetURL. It is the
// forward-auth entry point a fronting proxy calls for every request: the
// session must be fully authenticated and the access control rules must
// allow the target domain.
func (e *Engine) VerifyAccess(ctx context.Context, sessionID, targetURL string) (*AccessResult, error) {
	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.FirstFactor || sess.Username == "" {
		return nil, ErrFirstFactorRequired
	}
	if !sess.SecondFactor {
		return nil, ErrSecondFactorRequired
	}

	domain, err := domainFromTarget(targetURL)
	if err != nil {
		e.metricInc(MetricAccessDenied)
		e.emitAccessAudit(ctx, sess.Username, targetURL, false)
		return nil, ErrAccessDenied
	}

	if !e.acl.Authorized(domain, sess.Username, sess.Groups) {
		e.metricInc(MetricAccessDenied)
		e.emitAccessAudit(ctx, sess.Username, domain, false)
		return nil, ErrAccessDenied
	}

	e.metricInc(MetricAccessGranted)
	e.emitAccessAudit(ctx, sess.Username, domain, true)
	return &AccessResult{
		Username: sess.Username,
		Groups:   sess.Groups,
	}, nil
}

func domainFromTarget(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.New("target url has no host")
	}
	return host, nil
}
