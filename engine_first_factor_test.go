package authgate

import (
	"context"
	"errors"
	"testing"
)

func TestFirstFactorSuccess(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	redirect, err := te.engine.FirstFactor(ctx, "sid", "john", "hunter2", true, "https://app.example.com/")
	if err != nil {
		t.Fatalf("FirstFactor failed: %v", err)
	}
	if redirect != "https://app.example.com/" {
		t.Errorf("unexpected redirect %q", redirect)
	}

	sess, err := te.engine.getSession(ctx, "sid")
	if err != nil {
		t.Fatalf("getSession failed: %v", err)
	}
	if !sess.FirstFactor || sess.SecondFactor {
		t.Errorf("unexpected levels: %+v", sess)
	}
	if sess.Username != "john" || sess.Email != "john@example.com" {
		t.Errorf("identity not recorded: %+v", sess)
	}
	if len(sess.Groups) != 2 {
		t.Errorf("groups not recorded: %v", sess.Groups)
	}
	if !sess.KeepMeLoggedIn {
		t.Error("keep-me-logged-in flag lost")
	}
}

func TestFirstFactorDefaultRedirect(t *testing.T) {
	te := newTestEngine(t, func(cfg *Config) {
		cfg.DefaultRedirect = "https://home.example.com/"
	})

	redirect, err := te.engine.FirstFactor(context.Background(), "sid", "john", "hunter2", false, "")
	if err != nil {
		t.Fatalf("FirstFactor failed: %v", err)
	}
	if redirect != "https://home.example.com/" {
		t.Errorf("unexpected redirect %q", redirect)
	}
}

func TestFirstFactorWrongPassword(t *testing.T) {
	te := newTestEngine(t)

	_, err := te.engine.FirstFactor(context.Background(), "sid", "john", "wrong", false, "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	sess, err := te.engine.getSession(context.Background(), "sid")
	if err != nil {
		t.Fatalf("getSession failed: %v", err)
	}
	if sess.FirstFactor {
		t.Error("failed authentication must not promote the session")
	}
}

func TestFirstFactorEmptyPasswordNeverBinds(t *testing.T) {
	te := newTestEngine(t)

	_, err := te.engine.FirstFactor(context.Background(), "sid", "john", "", false, "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if te.ldap.bindCalls != 0 {
		t.Errorf("empty password reached the directory: %d binds", te.ldap.bindCalls)
	}
}

func TestFirstFactorRegulation(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := te.engine.FirstFactor(ctx, "sid", "john", "wrong", false, ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	bindsBefore := te.ldap.bindCalls

	// The fourth attempt is rejected before the directory is consulted and
	// leaves no new trace, even with correct credentials.
	if _, err := te.engine.FirstFactor(ctx, "sid", "john", "hunter2", false, ""); !errors.Is(err, ErrAuthenticationRegulated) {
		t.Fatalf("expected ErrAuthenticationRegulated, got %v", err)
	}
	if te.ldap.bindCalls != bindsBefore {
		t.Error("regulated attempt must not reach the directory")
	}

	failures, err := te.engine.regulation.traces.RecentFailures(ctx, "john", 10)
	if err != nil {
		t.Fatalf("RecentFailures failed: %v", err)
	}
	if len(failures) != 3 {
		t.Errorf("regulated attempt recorded a trace: %d failures", len(failures))
	}
}

func TestFirstFactorSearchFailureNotMarked(t *testing.T) {
	te := newTestEngine(t)
	te.ldap.searchErr = errors.New("directory down")

	_, err := te.engine.FirstFactor(context.Background(), "sid", "john", "hunter2", false, "")
	if !errors.Is(err, ErrLDAPSearch) {
		t.Fatalf("expected ErrLDAPSearch, got %v", err)
	}

	failures, err := te.engine.regulation.traces.RecentFailures(context.Background(), "john", 10)
	if err != nil {
		t.Fatalf("RecentFailures failed: %v", err)
	}
	if len(failures) != 0 {
		t.Errorf("infrastructure fault recorded as attempt: %d failures", len(failures))
	}
}

func TestFirstFactorMissingEmail(t *testing.T) {
	te := newTestEngine(t)

	_, err := te.engine.FirstFactor(context.Background(), "sid", "noemail", "hunter2", false, "")
	if !errors.Is(err, ErrIdentityMissing) {
		t.Fatalf("expected ErrIdentityMissing, got %v", err)
	}

	failures, err := te.engine.regulation.traces.RecentFailures(context.Background(), "noemail", 10)
	if err != nil {
		t.Fatalf("RecentFailures failed: %v", err)
	}
	if len(failures) != 0 {
		t.Errorf("missing email recorded as attempt: %d failures", len(failures))
	}
}

func TestFirstFactorResetsSecondFactor(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	sess, _ := te.engine.getSession(ctx, "sid")
	if err := te.engine.applySecondFactor(ctx, "sid", sess); err != nil {
		t.Fatalf("applySecondFactor failed: %v", err)
	}

	te.login(t, "sid")
	sess, _ = te.engine.getSession(ctx, "sid")
	if sess.SecondFactor {
		t.Error("fresh first factor must drop the second-factor level")
	}
}

func TestFirstFactorRegulationBackendDownFailsClosed(t *testing.T) {
	te := newTestEngine(t)
	te.redis.Close()

	_, err := te.engine.FirstFactor(context.Background(), "sid", "john", "hunter2", false, "")
	if !errors.Is(err, ErrRegulationUnavailable) {
		t.Fatalf("expected ErrRegulationUnavailable, got %v", err)
	}
	if te.ldap.bindCalls != 0 {
		t.Error("attempt with unreachable regulation backend must not reach the directory")
	}
}
