package authgate

import (
	"testing"
	"time"
)

func TestTOTPVerifyWindowBoundary(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "authgate",
		Digits:    6,
		Period:    30,
		Skew:      1,
		Algorithm: "SHA1",
	})

	secret := []byte("12345678901234567890")
	now := time.Unix(1700000000, 0)
	base := now.Unix() / 30

	codeAt := func(step int64) string {
		t.Helper()
		code, err := hotpCode(secret, base+step, 6, "SHA1")
		if err != nil {
			t.Fatalf("hotpCode failed: %v", err)
		}
		return code
	}

	for _, step := range []int64{-1, 0, 1} {
		ok, err := m.VerifyCode(secret, codeAt(step), now)
		if err != nil {
			t.Fatalf("VerifyCode failed at step %d: %v", step, err)
		}
		if !ok {
			t.Errorf("code at step %d rejected, want accepted", step)
		}
	}

	for _, step := range []int64{-2, 2} {
		ok, err := m.VerifyCode(secret, codeAt(step), now)
		if err != nil {
			t.Fatalf("VerifyCode failed at step %d: %v", step, err)
		}
		if ok {
			t.Errorf("code at step %d accepted, want rejected", step)
		}
	}
}

func TestTOTPVerifyRejectsMalformedCodes(t *testing.T) {
	m := newTOTPManager(TOTPConfig{Digits: 6, Period: 30, Skew: 1})
	secret := []byte("12345678901234567890")
	now := time.Unix(1700000000, 0)

	for _, code := range []string{"", "12345", "1234567", "12345a", "     "} {
		ok, err := m.VerifyCode(secret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode failed for %q: %v", code, err)
		}
		if ok {
			t.Errorf("malformed code %q accepted", code)
		}
	}
}
