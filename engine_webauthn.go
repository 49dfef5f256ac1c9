package authgate

import (
	"context"
	"fmt"
)

// DeviceRegisterRequest starts the security key registration ceremony and
// returns the challenge for the browser. It is only allowed after the
// mailed identity verification completed in this browser.
func (e *Engine) DeviceRegisterRequest(ctx context.Context, sessionID, appID string) ([]byte, error) {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IdentityCheck == nil ||
		sess.IdentityCheck.Challenge != string(ChallengeDeviceRegister) ||
		sess.IdentityCheck.Username != sess.Username {
		return nil, ErrAccessDenied
	}

	challenge, state, err := e.authenticator.StartRegistration(ctx, e.deviceUser(sess), appID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	sess.RegisterRequest = state
	if err := e.saveSession(ctx, sessionID, sess); err != nil {
		return nil, err
	}
	return challenge, nil
}

// DeviceRegister completes the registration ceremony and persists the new
// credential, replacing any previous one. The session is reset afterwards:
// with a new second factor in place the user starts the ladder over.
func (e *Engine) DeviceRegister(ctx context.Context, sessionID, appID string, response []byte) error {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.IdentityCheck == nil ||
		sess.IdentityCheck.Challenge != string(ChallengeDeviceRegister) ||
		sess.IdentityCheck.Username != sess.Username ||
		len(sess.RegisterRequest) == 0 {
		return ErrAccessDenied
	}

	registration, err := e.authenticator.FinishRegistration(ctx, e.deviceUser(sess), appID, sess.RegisterRequest, response)
	if err != nil {
		e.metricInc(MetricDeviceRegisterFailure)
		e.emitAudit(ctx, auditDeviceRegistered, sess.Username, false, ErrCeremonyFailed)
		return fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	if err := e.devices.Save(ctx, sess.Username, appID, []DeviceRegistration{*registration}); err != nil {
		return err
	}

	if err := e.sessions.Reset(ctx, sessionID); err != nil {
		return err
	}

	e.metricInc(MetricDeviceRegistered)
	e.emitAudit(ctx, auditDeviceRegistered, sess.Username, true, nil)
	return nil
}

// DeviceSignRequest starts the security key assertion ceremony and returns
// the challenge for the browser.
func (e *Engine) DeviceSignRequest(ctx context.Context, sessionID, appID string) ([]byte, error) {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	registrations, err := e.devices.Get(ctx, sess.Username, appID)
	if err != nil {
		return nil, err
	}
	if len(registrations) == 0 {
		return nil, ErrRegistrationMissing
	}

	challenge, state, err := e.authenticator.StartAuthentication(ctx, e.deviceUser(sess), appID, registrations)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyFailed, err)
	}

	sess.SignRequest = state
	if err := e.saveSession(ctx, sessionID, sess); err != nil {
		return nil, err
	}
	return challenge, nil
}

// DeviceSign completes the assertion ceremony and promotes the session to
// the two-factor level. On success it returns the post-login redirect
// stored at first factor, subject to access control.
func (e *Engine) DeviceSign(ctx context.Context, sessionID, appID string, response []byte) (string, error) {
	sess, err := e.requireFirstFactor(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(sess.SignRequest) == 0 {
		return "", ErrCeremonyNotStarted
	}

	registrations, err := e.devices.Get(ctx, sess.Username, appID)
	if err != nil {
		return "", err
	}
	if len(registrations) == 0 {
		return "", ErrRegistrationMissing
	}

	ceremonyErr := e.authenticator.FinishAuthentication(ctx, e.deviceUser(sess), appID, registrations, sess.SignRequest, response)

	// The challenge is spent either way; a failed response must not be
	// retried against the same challenge.
	sess.SignRequest = nil
	if ceremonyErr != nil {
		if err := e.saveSession(ctx, sessionID, sess); err != nil {
			return "", err
		}
		e.metricInc(MetricDeviceSignFailure)
		e.emitAudit(ctx, auditDeviceSignFailure, sess.Username, false, ErrCeremonyFailed)
		return "", fmt.Errorf("%w: %v", ErrCeremonyFailed, ceremonyErr)
	}

	if err := e.applySecondFactor(ctx, sessionID, sess); err != nil {
		return "", err
	}

	e.metricInc(MetricDeviceSignSuccess)
	e.emitAudit(ctx, auditDeviceSignSuccess, sess.Username, true, nil)
	return e.completionRedirect(sess), nil
}
