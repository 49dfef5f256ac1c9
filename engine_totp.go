package authgate

import (
	"context"
	"time"
)

// VerifyTOTP validates a time-based one-time code and promotes the session
// to the two-factor level. A user without a registered secret fails the
// same way as a wrong code. On success it returns the post-login redirect
// stored at first factor, subject to access control.
func (e *Engine) VerifyTOTP(ctx context.Context, sessionID, code string) (string, error) {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return "", err
	}

	secret, found, err := e.totpSecrets.Get(ctx, sess.Username)
	if err != nil {
		return "", err
	}
	if !found {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditTOTPFailure, sess.Username, false, ErrTOTPInvalid)
		return "", ErrTOTPInvalid
	}

	ok, err := e.totp.VerifyCode(secret, code, time.Now())
	if err != nil || !ok {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditTOTPFailure, sess.Username, false, ErrTOTPInvalid)
		return "", ErrTOTPInvalid
	}

	if err := e.applySecondFactor(ctx, sessionID, sess); err != nil {
		return "", err
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, auditTOTPSuccess, sess.Username, true, nil)
	return e.completionRedirect(sess), nil
}
