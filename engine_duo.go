package authgate

import (
	"context"
	"fmt"
)

// DuoPush asks the Duo capability to prompt the user's phone and promotes
// the session to the two-factor level on approval. On success it returns
// the post-login redirect stored at first factor, subject to access
// control.
func (e *Engine) DuoPush(ctx context.Context, sessionID string) (string, error) {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if !e.config.Duo.Enabled || e.duo == nil {
		return "", ErrDuoUnavailable
	}

	allowed, err := e.duo.Push(ctx, sess.Username, clientIPFromContext(ctx))
	if err != nil {
		e.metricInc(MetricDuoFailure)
		e.emitAudit(ctx, auditDuoFailure, sess.Username, false, ErrDuoUnavailable)
		return "", fmt.Errorf("%w: %v", ErrDuoUnavailable, err)
	}
	if !allowed {
		e.metricInc(MetricDuoFailure)
		e.emitAudit(ctx, auditDuoFailure, sess.Username, false, ErrAccessDenied)
		return "", ErrAccessDenied
	}

	if err := e.applySecondFactor(ctx, sessionID, sess); err != nil {
		return "", err
	}

	e.metricInc(MetricDuoSuccess)
	e.emitAudit(ctx, auditDuoSuccess, sess.Username, true, nil)
	return e.completionRedirect(sess), nil
}
