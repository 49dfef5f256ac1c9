package authgate

import (
	"context"
	"errors"
	"testing"
)

func TestDuoPushApproved(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.login(t, "sid")
	if _, err := te.engine.DuoPush(ctx, "sid"); err != nil {
		t.Fatalf("DuoPush failed: %v", err)
	}

	sess, _ := te.engine.getSession(ctx, "sid")
	if !sess.SecondFactor {
		t.Error("approved push did not promote the session")
	}
}

func TestDuoPushDenied(t *testing.T) {
	te := newTestEngine(t)
	te.duo.allowed = false
	ctx := context.Background()

	te.login(t, "sid")
	if _, err := te.engine.DuoPush(ctx, "sid"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	sess, _ := te.engine.getSession(ctx, "sid")
	if sess.SecondFactor {
		t.Error("denied push promoted the session")
	}
}

func TestDuoPushProviderFailure(t *testing.T) {
	te := newTestEngine(t)
	te.duo.err = errors.New("duo timeout")

	te.login(t, "sid")
	if _, err := te.engine.DuoPush(context.Background(), "sid"); !errors.Is(err, ErrDuoUnavailable) {
		t.Fatalf("expected ErrDuoUnavailable, got %v", err)
	}
}

func TestDuoPushDisabled(t *testing.T) {
	te := newTestEngine(t, func(cfg *Config) {
		cfg.Duo.Enabled = false
	})

	te.login(t, "sid")
	if _, err := te.engine.DuoPush(context.Background(), "sid"); !errors.Is(err, ErrDuoUnavailable) {
		t.Fatalf("expected ErrDuoUnavailable, got %v", err)
	}
}

func TestDuoPushRequiresFirstFactor(t *testing.T) {
	te := newTestEngine(t)

	if _, err := te.engine.DuoPush(context.Background(), "sid"); !errors.Is(err, ErrFirstFactorRequired) {
		t.Fatalf("expected ErrFirstFactorRequired, got %v", err)
	}
}

func TestDuoPushReturnsStoredRedirect(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	target := "https://home.example.com/dashboard"
	if _, err := te.engine.FirstFactor(ctx, "sid", "john", "hunter2", false, target); err != nil {
		t.Fatalf("FirstFactor failed: %v", err)
	}

	redirect, err := te.engine.DuoPush(ctx, "sid")
	if err != nil {
		t.Fatalf("DuoPush failed: %v", err)
	}
	if redirect != target {
		t.Errorf("redirect = %q, want %q", redirect, target)
	}
}
