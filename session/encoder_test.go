package session

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := &AuthenticationSession{
		Username:       "john",
		Email:          "john@example.com",
		Groups:         []string{"admins", "dev"},
		FirstFactor:    true,
		SecondFactor:   true,
		KeepMeLoggedIn: true,
		IdentityCheck: &IdentityCheck{
			Challenge: "u2f-register",
			Username:  "john",
		},
		RegisterRequest: []byte("opaque-register-state"),
		SignRequest:     []byte{0x00, 0x01, 0xff},
		Redirect:        "https://app.example.com/dashboard",
	}

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Username != original.Username {
		t.Errorf("username mismatch: got %q", decoded.Username)
	}
	if decoded.Email != original.Email {
		t.Errorf("email mismatch: got %q", decoded.Email)
	}
	if len(decoded.Groups) != 2 || decoded.Groups[0] != "admins" || decoded.Groups[1] != "dev" {
		t.Errorf("groups mismatch: got %v", decoded.Groups)
	}
	if !decoded.FirstFactor || !decoded.SecondFactor || !decoded.KeepMeLoggedIn {
		t.Errorf("flags mismatch: %+v", decoded)
	}
	if decoded.IdentityCheck == nil {
		t.Fatal("identity check lost in round trip")
	}
	if decoded.IdentityCheck.Challenge != "u2f-register" || decoded.IdentityCheck.Username != "john" {
		t.Errorf("identity check mismatch: %+v", decoded.IdentityCheck)
	}
	if !bytes.Equal(decoded.RegisterRequest, original.RegisterRequest) {
		t.Errorf("register request mismatch")
	}
	if !bytes.Equal(decoded.SignRequest, original.SignRequest) {
		t.Errorf("sign request mismatch")
	}
	if decoded.Redirect != original.Redirect {
		t.Errorf("redirect mismatch: got %q", decoded.Redirect)
	}
}

func TestEncodeDecodeAnonymous(t *testing.T) {
	data, err := Encode(&AuthenticationSession{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Username != "" || decoded.FirstFactor || decoded.SecondFactor {
		t.Errorf("anonymous session not preserved: %+v", decoded)
	}
	if decoded.IdentityCheck != nil {
		t.Errorf("unexpected identity check: %+v", decoded.IdentityCheck)
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	s := &AuthenticationSession{Username: strings.Repeat("a", 256)}
	if _, err := Encode(s); err == nil {
		t.Fatal("expected error for oversized username")
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":           {},
		"unknown version": {99, 0},
		"truncated":       {sessionFormatVersionCurrent, flagIdentityCheck, 4, 'j', 'o'},
	}

	for name, data := range cases {
		if _, err := Decode(data); err == nil {
			t.Errorf("%s: expected decode error", name)
		}
	}
}
