package authgate

import (
	"context"
	"time"
)

const (
	auditFirstFactorSuccess   = "first_factor_success"
	auditFirstFactorFailure   = "first_factor_failure"
	auditFirstFactorRegulated = "first_factor_regulated"
	auditTOTPSuccess          = "totp_success"
	auditTOTPFailure          = "totp_failure"
	auditTOTPRegistered       = "totp_registered"
	auditDeviceSignSuccess    = "u2f_sign_success"
	auditDeviceSignFailure    = "u2f_sign_failure"
	auditDeviceRegistered     = "u2f_registered"
	auditDuoSuccess           = "duo_success"
	auditDuoFailure           = "duo_failure"
	auditTokenIssued          = "identity_token_issued"
	auditTokenConsumed        = "identity_token_consumed"
	auditTokenRejected        = "identity_token_rejected"
	auditPasswordReset        = "password_reset"
	auditLogout               = "logout"
	auditAccessGranted        = "access_granted"
	auditAccessDenied         = "access_denied"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, username string, success bool, failure error) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Username:  username,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitAccessAudit(ctx context.Context, username, domain string, allowed bool) {
	if e.audit == nil {
		return
	}

	eventType := auditAccessGranted
	if !allowed {
		eventType = auditAccessDenied
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Username:  username,
		IP:        clientIPFromContext(ctx),
		Domain:    domain,
		Success:   allowed,
	})
}
