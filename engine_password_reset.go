package authgate

import (
	"context"
	"fmt"
)

// ResetPassword sets a new directory password for the user who completed
// the password reset verification in this browser.
func (e *Engine) ResetPassword(ctx context.Context, sessionID, newPassword string) error {
	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.IdentityCheck == nil || sess.IdentityCheck.Challenge != string(ChallengeResetPassword) {
		return ErrAccessDenied
	}
	username := sess.IdentityCheck.Username

	if newPassword == "" {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditPasswordReset, username, false, ErrPasswordUpdate)
		return ErrPasswordUpdate
	}

	if err := e.ldap.UpdatePassword(ctx, username, newPassword); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditPasswordReset, username, false, ErrPasswordUpdate)
		return fmt.Errorf("%w: %v", ErrPasswordUpdate, err)
	}

	// The verification is spent; a second reset needs a fresh mail.
	sess.ClearIdentityCheck()
	if err := e.saveSession(ctx, sessionID, sess); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditPasswordReset, username, true, nil)
	return nil
}
