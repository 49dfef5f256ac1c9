package authgate

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func verifyDeviceIdentity(t *testing.T, te *testEngine, sessionID string) {
	t.Helper()
	ctx := context.Background()

	if err := te.engine.StartDeviceRegistration(ctx, sessionID); err != nil {
		t.Fatalf("StartDeviceRegistration failed: %v", err)
	}
	if err := te.engine.FinishDeviceRegistration(ctx, sessionID, te.notifier.lastToken(t)); err != nil {
		t.Fatalf("FinishDeviceRegistration failed: %v", err)
	}
}

func registerDevice(t *testing.T, te *testEngine, sessionID string) {
	t.Helper()
	ctx := context.Background()

	verifyDeviceIdentity(t, te, sessionID)

	challenge, err := te.engine.DeviceRegisterRequest(ctx, sessionID, "app.example.com")
	if err != nil {
		t.Fatalf("DeviceRegisterRequest failed: %v", err)
	}
	if !bytes.Equal(challenge, []byte("register-challenge")) {
		t.Fatalf("unexpected challenge %q", challenge)
	}

	if err := te.engine.DeviceRegister(ctx, sessionID, "app.example.com", []byte("attestation")); err != nil {
		t.Fatalf("DeviceRegister failed: %v", err)
	}
}

func TestDeviceRegistrationFlow(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	registerDevice(t, te, "sid")

	regs, err := te.engine.devices.Get(ctx, "john", "app.example.com")
	if err != nil {
		t.Fatalf("device lookup failed: %v", err)
	}
	if len(regs) != 1 || !bytes.Equal(regs[0].KeyHandle, []byte("key-handle")) {
		t.Errorf("unexpected registrations: %+v", regs)
	}

	sess, _ := te.engine.getSession(ctx, "sid")
	if sess.FirstFactor || sess.IdentityCheck != nil {
		t.Errorf("session not reset after registration: %+v", sess)
	}
}

func TestDeviceRegisterRequestWithoutVerification(t *testing.T) {
	te := newTestEngine(t)

	te.login(t, "sid")
	if _, err := te.engine.DeviceRegisterRequest(context.Background(), "sid", "app.example.com"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestDeviceRegisterWithoutChallenge(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	verifyDeviceIdentity(t, te, "sid")

	// identity is verified but no ceremony was started
	if err := te.engine.DeviceRegister(ctx, "sid", "app.example.com", []byte("attestation")); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestDeviceRegisterCeremonyFailure(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	verifyDeviceIdentity(t, te, "sid")
	if _, err := te.engine.DeviceRegisterRequest(ctx, "sid", "app.example.com"); err != nil {
		t.Fatalf("DeviceRegisterRequest failed: %v", err)
	}

	te.authenticator.finishErr = errors.New("bad attestation")
	if err := te.engine.DeviceRegister(ctx, "sid", "app.example.com", []byte("attestation")); !errors.Is(err, ErrCeremonyFailed) {
		t.Fatalf("expected ErrCeremonyFailed, got %v", err)
	}

	// Failed registrations are counted on their own, not as sign failures.
	snap := te.engine.MetricsSnapshot()
	if snap.Counters[MetricDeviceRegisterFailure] != 1 {
		t.Errorf("register failure counter = %d", snap.Counters[MetricDeviceRegisterFailure])
	}
	if snap.Counters[MetricDeviceSignFailure] != 0 {
		t.Errorf("sign failure counter = %d", snap.Counters[MetricDeviceSignFailure])
	}
}

func TestDeviceSignFlow(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	registerDevice(t, te, "sid")
	te.login(t, "sid")

	challenge, err := te.engine.DeviceSignRequest(ctx, "sid", "app.example.com")
	if err != nil {
		t.Fatalf("DeviceSignRequest failed: %v", err)
	}
	if !bytes.Equal(challenge, []byte("sign-challenge")) {
		t.Fatalf("unexpected challenge %q", challenge)
	}

	if _, err := te.engine.DeviceSign(ctx, "sid", "app.example.com", []byte("assertion")); err != nil {
		t.Fatalf("DeviceSign failed: %v", err)
	}

	sess, _ := te.engine.getSession(ctx, "sid")
	if !sess.SecondFactor {
		t.Error("successful assertion did not promote the session")
	}
	if len(sess.SignRequest) != 0 {
		t.Error("sign challenge not cleared")
	}
}

func TestDeviceRegistrationsScopedToAppID(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	registerDevice(t, te, "sid")
	te.login(t, "sid")

	// A credential registered for one relying party is invisible to another.
	if _, err := te.engine.DeviceSignRequest(ctx, "sid", "other.example.net"); !errors.Is(err, ErrRegistrationMissing) {
		t.Fatalf("expected ErrRegistrationMissing for foreign app, got %v", err)
	}

	if _, err := te.engine.DeviceSignRequest(ctx, "sid", "app.example.com"); err != nil {
		t.Fatalf("DeviceSignRequest for owning app failed: %v", err)
	}
}

func TestDeviceSignReturnsStoredRedirect(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	registerDevice(t, te, "sid")

	target := "https://home.example.com/dashboard"
	if _, err := te.engine.FirstFactor(ctx, "sid", "john", "hunter2", false, target); err != nil {
		t.Fatalf("FirstFactor failed: %v", err)
	}

	if _, err := te.engine.DeviceSignRequest(ctx, "sid", "app.example.com"); err != nil {
		t.Fatalf("DeviceSignRequest failed: %v", err)
	}
	redirect, err := te.engine.DeviceSign(ctx, "sid", "app.example.com", []byte("assertion"))
	if err != nil {
		t.Fatalf("DeviceSign failed: %v", err)
	}
	if redirect != target {
		t.Errorf("redirect = %q, want %q", redirect, target)
	}
}

func TestDeviceSignRedirectHonorsAccessControl(t *testing.T) {
	te := newTestEngine(t, func(cfg *Config) {
		cfg.DefaultRedirect = "https://portal.example.com"
	})
	ctx := context.Background()

	te.login(t, "sid")
	registerDevice(t, te, "sid")

	// A stored target the user may not reach falls back to the default.
	if _, err := te.engine.FirstFactor(ctx, "sid", "john", "hunter2", false, "https://forbidden.example.net/x"); err != nil {
		t.Fatalf("FirstFactor failed: %v", err)
	}

	if _, err := te.engine.DeviceSignRequest(ctx, "sid", "app.example.com"); err != nil {
		t.Fatalf("DeviceSignRequest failed: %v", err)
	}
	redirect, err := te.engine.DeviceSign(ctx, "sid", "app.example.com", []byte("assertion"))
	if err != nil {
		t.Fatalf("DeviceSign failed: %v", err)
	}
	if redirect != "https://portal.example.com" {
		t.Errorf("redirect = %q, want the default", redirect)
	}
}

func TestDeviceSignWithoutRegistration(t *testing.T) {
	te := newTestEngine(t)

	te.login(t, "sid")
	if _, err := te.engine.DeviceSignRequest(context.Background(), "sid", "app.example.com"); !errors.Is(err, ErrRegistrationMissing) {
		t.Fatalf("expected ErrRegistrationMissing, got %v", err)
	}
}

func TestDeviceSignWithoutChallenge(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	registerDevice(t, te, "sid")
	te.login(t, "sid")

	if _, err := te.engine.DeviceSign(ctx, "sid", "app.example.com", []byte("assertion")); !errors.Is(err, ErrCeremonyNotStarted) {
		t.Fatalf("expected ErrCeremonyNotStarted, got %v", err)
	}
}

func TestDeviceSignCeremonyFailure(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	registerDevice(t, te, "sid")
	te.login(t, "sid")

	if _, err := te.engine.DeviceSignRequest(ctx, "sid", "app.example.com"); err != nil {
		t.Fatalf("DeviceSignRequest failed: %v", err)
	}

	te.authenticator.finishErr = errors.New("bad assertion")
	if _, err := te.engine.DeviceSign(ctx, "sid", "app.example.com", []byte("assertion")); !errors.Is(err, ErrCeremonyFailed) {
		t.Fatalf("expected ErrCeremonyFailed, got %v", err)
	}

	sess, _ := te.engine.getSession(ctx, "sid")
	if sess.SecondFactor {
		t.Error("failed assertion promoted the session")
	}
}
