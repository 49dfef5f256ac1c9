package authgate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// identityFlowDescriptor carries the per-flow parts of the verification
// mail: what the mail says and where its link lands.
type identityFlowDescriptor struct {
	mailSubject string
	finishPath  string
}

var identityFlows = map[ChallengeKind]identityFlowDescriptor{
	ChallengeTOTPRegister: {
		mailSubject: "Register your one-time password device",
		finishPath:  "/secondfactor/totp/identity/finish",
	},
	ChallengeDeviceRegister: {
		mailSubject: "Register your security key",
		finishPath:  "/secondfactor/u2f/identity/finish",
	},
	ChallengeResetPassword: {
		mailSubject: "Reset your password",
		finishPath:  "/password-reset/identity/finish",
	},
}

// startIdentityVerification mints a token for the flow and mails the
// verification link to the user.
func (e *Engine) startIdentityVerification(ctx context.Context, challenge ChallengeKind, username, email string) error {
	flow, ok := identityFlows[challenge]
	if !ok {
		return ErrTokenInvalid
	}

	token, err := e.tokens.Issue(ctx, challenge, username)
	if err != nil {
		e.emitAudit(ctx, auditTokenIssued, username, false, err)
		return err
	}

	link := e.config.IdentityVerification.ExternalURL + flow.finishPath +
		"?identity_token=" + url.QueryEscape(token)
	subject := flow.mailSubject
	if title := e.config.IdentityVerification.MailTitle; title != "" {
		subject = "[" + title + "] " + subject
	}
	body := "Please confirm this action by visiting the link below.\n\n" + link + "\n\n" +
		"If you did not request this, you can safely ignore this email."

	if err := e.notifier.Send(ctx, email, subject, body); err != nil {
		e.emitAudit(ctx, auditTokenIssued, username, false, ErrNotification)
		return fmt.Errorf("%w: %v", ErrNotification, err)
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditTokenIssued, username, true, nil)
	return nil
}

// consumeIdentityToken spends the token for the flow and returns the
// verified record.
func (e *Engine) consumeIdentityToken(ctx context.Context, challenge ChallengeKind, token string) (*verificationRecord, error) {
	rec, err := e.tokens.Consume(ctx, token, challenge)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenExpired) {
			e.metricInc(MetricTokenRejected)
			e.emitAudit(ctx, auditTokenRejected, "", false, err)
		}
		return nil, err
	}

	e.metricInc(MetricTokenConsumed)
	e.emitAudit(ctx, auditTokenConsumed, rec.Username, true, nil)
	return rec, nil
}

// StartTOTPRegistration begins the TOTP registration flow: the logged-in
// user is mailed a verification link.
func (e *Engine) StartTOTPRegistration(ctx context.Context, sessionID string) error {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Email == "" {
		return ErrIdentityMissing
	}
	return e.startIdentityVerification(ctx, ChallengeTOTPRegister, sess.Username, sess.Email)
}

// FinishTOTPRegistration spends the mailed token, provisions a fresh TOTP
// secret for the user, and returns the registration for QR rendering. The
// session is reset: with a new second factor in place the user starts the
// ladder over.
func (e *Engine) FinishTOTPRegistration(ctx context.Context, sessionID, token string) (*TOTPRegistration, error) {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rec, err := e.consumeIdentityToken(ctx, ChallengeTOTPRegister, token)
	if err != nil {
		return nil, err
	}
	if rec.Username != sess.Username {
		return nil, ErrAccessDenied
	}

	secret, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	if err := e.totpSecrets.Save(ctx, sess.Username, secret); err != nil {
		return nil, err
	}

	registration := &TOTPRegistration{
		Base32Secret: secretBase32,
		OtpauthURL:   e.totp.ProvisionURI(secretBase32, sess.Username),
	}

	if err := e.sessions.Reset(ctx, sessionID); err != nil {
		return nil, err
	}

	e.metricInc(MetricTOTPRegistered)
	e.emitAudit(ctx, auditTOTPRegistered, sess.Username, true, nil)
	return registration, nil
}

// StartDeviceRegistration begins the security key registration flow.
func (e *Engine) StartDeviceRegistration(ctx context.Context, sessionID string) error {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Email == "" {
		return ErrIdentityMissing
	}
	return e.startIdentityVerification(ctx, ChallengeDeviceRegister, sess.Username, sess.Email)
}

// FinishDeviceRegistration spends the mailed token and records the
// verification in the session, authorizing the subsequent registration
// ceremony in this browser.
func (e *Engine) FinishDeviceRegistration(ctx context.Context, sessionID, token string) error {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return err
	}

	rec, err := e.consumeIdentityToken(ctx, ChallengeDeviceRegister, token)
	if err != nil {
		return err
	}
	if rec.Username != sess.Username {
		return ErrAccessDenied
	}

	sess.RecordIdentityCheck(string(ChallengeDeviceRegister), sess.Username)
	return e.saveSession(ctx, sessionID, sess)
}

// StartPasswordReset begins the password reset flow for username. The
// caller is anonymous; the directory supplies the mail address.
func (e *Engine) StartPasswordReset(ctx context.Context, username string) error {
	details, err := e.ldap.Search(ctx, username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLDAPSearch, err)
	}
	if len(details.Emails) == 0 {
		return ErrIdentityMissing
	}
	return e.startIdentityVerification(ctx, ChallengeResetPassword, username, details.Emails[0])
}

// FinishPasswordReset spends the mailed token and records the verification
// in the session, authorizing [Engine.ResetPassword] in this browser.
func (e *Engine) FinishPasswordReset(ctx context.Context, sessionID, token string) error {
	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	rec, err := e.consumeIdentityToken(ctx, ChallengeResetPassword, token)
	if err != nil {
		return err
	}

	sess.RecordIdentityCheck(string(ChallengeResetPassword), rec.Username)
	return e.saveSession(ctx, sessionID, sess)
}
