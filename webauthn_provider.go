package authgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// webauthnAuthenticator implements [DeviceAuthenticator] on top of the
// go-webauthn library. Relying parties are keyed by appID so one engine
// can protect several domains.
type webauthnAuthenticator struct {
	config WebAuthnConfig

	mu      sync.Mutex
	parties map[string]*webauthn.WebAuthn
}

func newWebAuthnAuthenticator(cfg WebAuthnConfig) *webauthnAuthenticator {
	return &webauthnAuthenticator{
		config:  cfg,
		parties: make(map[string]*webauthn.WebAuthn),
	}
}

func (a *webauthnAuthenticator) party(appID string) (*webauthn.WebAuthn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if w, ok := a.parties[appID]; ok {
		return w, nil
	}

	origins := a.config.Origins
	if len(origins) == 0 {
		origins = []string{"https://" + appID}
	}

	w, err := webauthn.New(&webauthn.Config{
		RPID:          appID,
		RPDisplayName: a.config.DisplayName,
		RPOrigins:     origins,
	})
	if err != nil {
		return nil, err
	}

	a.parties[appID] = w
	return w, nil
}

// webauthnUser adapts a [DeviceUser] plus stored registrations to the
// webauthn.User interface.
type webauthnUser struct {
	user        DeviceUser
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte          { return u.user.ID }
func (u *webauthnUser) WebAuthnName() string        { return u.user.Name }
func (u *webauthnUser) WebAuthnDisplayName() string { return u.user.DisplayName }
func (u *webauthnUser) WebAuthnIcon() string        { return "" }
func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func credentialsFromRegistrations(regs []DeviceRegistration) ([]webauthn.Credential, error) {
	creds := make([]webauthn.Credential, 0, len(regs))
	for _, reg := range regs {
		var cred webauthn.Credential
		if err := json.Unmarshal(reg.Credential, &cred); err != nil {
			return nil, fmt.Errorf("corrupt credential record: %w", err)
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

func (a *webauthnAuthenticator) StartRegistration(ctx context.Context, user DeviceUser, appID string) ([]byte, []byte, error) {
	w, err := a.party(appID)
	if err != nil {
		return nil, nil, err
	}

	options, sessionData, err := w.BeginRegistration(&webauthnUser{user: user})
	if err != nil {
		return nil, nil, err
	}

	challenge, err := json.Marshal(options)
	if err != nil {
		return nil, nil, err
	}
	state, err := json.Marshal(sessionData)
	if err != nil {
		return nil, nil, err
	}
	return challenge, state, nil
}

func (a *webauthnAuthenticator) FinishRegistration(ctx context.Context, user DeviceUser, appID string, state, response []byte) (*DeviceRegistration, error) {
	w, err := a.party(appID)
	if err != nil {
		return nil, err
	}

	var sessionData webauthn.SessionData
	if err := json.Unmarshal(state, &sessionData); err != nil {
		return nil, fmt.Errorf("corrupt ceremony state: %w", err)
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, err
	}

	credential, err := w.CreateCredential(&webauthnUser{user: user}, sessionData, parsed)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(credential)
	if err != nil {
		return nil, err
	}

	return &DeviceRegistration{
		KeyHandle:  credential.ID,
		PublicKey:  credential.PublicKey,
		Credential: raw,
	}, nil
}

func (a *webauthnAuthenticator) StartAuthentication(ctx context.Context, user DeviceUser, appID string, registrations []DeviceRegistration) ([]byte, []byte, error) {
	w, err := a.party(appID)
	if err != nil {
		return nil, nil, err
	}

	creds, err := credentialsFromRegistrations(registrations)
	if err != nil {
		return nil, nil, err
	}

	options, sessionData, err := w.BeginLogin(&webauthnUser{user: user, credentials: creds})
	if err != nil {
		return nil, nil, err
	}

	challenge, err := json.Marshal(options)
	if err != nil {
		return nil, nil, err
	}
	state, err := json.Marshal(sessionData)
	if err != nil {
		return nil, nil, err
	}
	return challenge, state, nil
}

func (a *webauthnAuthenticator) FinishAuthentication(ctx context.Context, user DeviceUser, appID string, registrations []DeviceRegistration, state, response []byte) error {
	w, err := a.party(appID)
	if err != nil {
		return err
	}

	var sessionData webauthn.SessionData
	if err := json.Unmarshal(state, &sessionData); err != nil {
		return fmt.Errorf("corrupt ceremony state: %w", err)
	}

	creds, err := credentialsFromRegistrations(registrations)
	if err != nil {
		return err
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return err
	}

	_, err = w.ValidateLogin(&webauthnUser{user: user, credentials: creds}, sessionData, parsed)
	return err
}
