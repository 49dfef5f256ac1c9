package authgate

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestPasswordResetFlow(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	// Anonymous browser requests a reset for john.
	if err := te.engine.StartPasswordReset(ctx, "john"); err != nil {
		t.Fatalf("StartPasswordReset failed: %v", err)
	}
	if te.notifier.mails[0].recipient != "john@example.com" {
		t.Errorf("mail sent to %q", te.notifier.mails[0].recipient)
	}

	if err := te.engine.FinishPasswordReset(ctx, "sid", te.notifier.lastToken(t)); err != nil {
		t.Fatalf("FinishPasswordReset failed: %v", err)
	}

	if err := te.engine.ResetPassword(ctx, "sid", "correct horse battery staple"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if te.ldap.updatedUser != "john" || te.ldap.updatedPass != "correct horse battery staple" {
		t.Errorf("directory not updated: user=%q", te.ldap.updatedUser)
	}

	// The verification is spent.
	if err := te.engine.ResetPassword(ctx, "sid", "another one"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied on second reset, got %v", err)
	}
}

func TestPasswordResetWithoutVerification(t *testing.T) {
	te := newTestEngine(t)

	if err := te.engine.ResetPassword(context.Background(), "sid", "new password"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestPasswordResetUnknownUser(t *testing.T) {
	te := newTestEngine(t)

	if err := te.engine.StartPasswordReset(context.Background(), "ghost"); !errors.Is(err, ErrLDAPSearch) {
		t.Fatalf("expected ErrLDAPSearch, got %v", err)
	}
	if len(te.notifier.mails) != 0 {
		t.Error("mail sent for unknown user")
	}
}

func TestPasswordResetDirectoryRejects(t *testing.T) {
	te := newTestEngine(t)
	te.ldap.updateErr = errors.New("policy violation")
	ctx := context.Background()

	if err := te.engine.StartPasswordReset(ctx, "john"); err != nil {
		t.Fatalf("StartPasswordReset failed: %v", err)
	}
	if err := te.engine.FinishPasswordReset(ctx, "sid", te.notifier.lastToken(t)); err != nil {
		t.Fatalf("FinishPasswordReset failed: %v", err)
	}

	if err := te.engine.ResetPassword(ctx, "sid", "new password"); !errors.Is(err, ErrPasswordUpdate) {
		t.Fatalf("expected ErrPasswordUpdate, got %v", err)
	}
}

func TestIdentityTokenCrossFlowRejected(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	if err := te.engine.StartTOTPRegistration(ctx, "sid"); err != nil {
		t.Fatalf("StartTOTPRegistration failed: %v", err)
	}
	token := te.notifier.lastToken(t)

	// A TOTP registration token cannot finish the device flow.
	if err := te.engine.FinishDeviceRegistration(ctx, "sid", token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	// It still works for the flow it was minted for.
	if _, err := te.engine.FinishTOTPRegistration(ctx, "sid", token); err != nil {
		t.Fatalf("FinishTOTPRegistration failed after cross-flow attempt: %v", err)
	}
}

func TestIdentityTokenWrongUserRejected(t *testing.T) {
	te := newTestEngine(t)
	te.ldap.users["jane"] = mockUser{
		password: "swordfish",
		details:  UserDetails{Emails: []string{"jane@example.com"}},
	}
	ctx := context.Background()

	te.login(t, "sid-john")
	if err := te.engine.StartTOTPRegistration(ctx, "sid-john"); err != nil {
		t.Fatalf("StartTOTPRegistration failed: %v", err)
	}
	token := te.notifier.lastToken(t)

	if _, err := te.engine.FirstFactor(ctx, "sid-jane", "jane", "swordfish", false, ""); err != nil {
		t.Fatalf("jane FirstFactor failed: %v", err)
	}

	if _, err := te.engine.FinishTOTPRegistration(ctx, "sid-jane", token); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for another user's token, got %v", err)
	}
}

func TestIdentityMailCarriesExternalURL(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	if err := te.engine.StartTOTPRegistration(ctx, "sid"); err != nil {
		t.Fatalf("StartTOTPRegistration failed: %v", err)
	}

	body := te.notifier.mails[0].body
	if !strings.Contains(body, "https://auth.example.com/secondfactor/totp/identity/finish?identity_token=") {
		t.Errorf("mail body missing verification link: %q", body)
	}
}

func TestNotifierFailureSurfaces(t *testing.T) {
	te := newTestEngine(t)
	te.notifier.err = errors.New("smtp down")

	te.login(t, "sid")
	if err := te.engine.StartTOTPRegistration(context.Background(), "sid"); !errors.Is(err, ErrNotification) {
		t.Fatalf("expected ErrNotification, got %v", err)
	}
}
