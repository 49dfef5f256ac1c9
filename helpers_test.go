package authgate

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

type mockUser struct {
	password string
	details  UserDetails
}

type mockLDAP struct {
	mu        sync.Mutex
	users     map[string]mockUser
	searchErr error
	updateErr error

	bindCalls   int
	updatedUser string
	updatedPass string
}

func newMockLDAP() *mockLDAP {
	return &mockLDAP{
		users: map[string]mockUser{
			"john": {
				password: "hunter2",
				details: UserDetails{
					Emails: []string{"john@example.com"},
					Groups: []string{"dev", "admins"},
				},
			},
			"noemail": {
				password: "hunter2",
				details:  UserDetails{Groups: []string{"dev"}},
			},
		},
	}
}

func (m *mockLDAP) Bind(_ context.Context, username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindCalls++
	user, ok := m.users[username]
	if !ok || user.password != password {
		return errors.New("bind rejected")
	}
	return nil
}

func (m *mockLDAP) Search(_ context.Context, username string) (UserDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return UserDetails{}, m.searchErr
	}
	user, ok := m.users[username]
	if !ok {
		return UserDetails{}, errors.New("no such entry")
	}
	return user.details, nil
}

func (m *mockLDAP) UpdatePassword(_ context.Context, username, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedUser = username
	m.updatedPass = newPassword
	return nil
}

type sentMail struct {
	recipient string
	subject   string
	body      string
}

type mockNotifier struct {
	mu    sync.Mutex
	mails []sentMail
	err   error
}

func (m *mockNotifier) Send(_ context.Context, recipient, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.mails = append(m.mails, sentMail{recipient: recipient, subject: subject, body: body})
	return nil
}

var tokenLinkPattern = regexp.MustCompile(`identity_token=([^\s&]+)`)

// lastToken extracts the verification token from the most recent mail.
func (m *mockNotifier) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.mails) == 0 {
		t.Fatal("no mail was sent")
	}
	match := tokenLinkPattern.FindStringSubmatch(m.mails[len(m.mails)-1].body)
	if match == nil {
		t.Fatalf("no token link in mail body: %q", m.mails[len(m.mails)-1].body)
	}
	return match[1]
}

type mockDuo struct {
	allowed bool
	err     error
}

func (m *mockDuo) Push(context.Context, string, string) (bool, error) {
	return m.allowed, m.err
}

type mockAuthenticator struct {
	startErr  error
	finishErr error
}

func (m *mockAuthenticator) StartRegistration(_ context.Context, _ DeviceUser, _ string) ([]byte, []byte, error) {
	if m.startErr != nil {
		return nil, nil, m.startErr
	}
	return []byte("register-challenge"), []byte("register-state"), nil
}

func (m *mockAuthenticator) FinishRegistration(_ context.Context, user DeviceUser, _ string, state, response []byte) (*DeviceRegistration, error) {
	if m.finishErr != nil {
		return nil, m.finishErr
	}
	return &DeviceRegistration{
		KeyHandle:  []byte("key-handle"),
		PublicKey:  []byte("public-key"),
		Credential: []byte(`{"id":"a2V5LWhhbmRsZQ"}`),
	}, nil
}

func (m *mockAuthenticator) StartAuthentication(_ context.Context, _ DeviceUser, _ string, _ []DeviceRegistration) ([]byte, []byte, error) {
	if m.startErr != nil {
		return nil, nil, m.startErr
	}
	return []byte("sign-challenge"), []byte("sign-state"), nil
}

func (m *mockAuthenticator) FinishAuthentication(_ context.Context, _ DeviceUser, _ string, _ []DeviceRegistration, state, response []byte) error {
	return m.finishErr
}

type testEngine struct {
	engine        *Engine
	redis         *miniredis.Miniredis
	ldap          *mockLDAP
	notifier      *mockNotifier
	duo           *mockDuo
	authenticator *mockAuthenticator
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *testEngine {
	t.Helper()

	mr, client := newTestRedis(t)

	cfg := DefaultConfig()
	cfg.IdentityVerification.TokenSecret = []byte("test-secret-test-secret-32-bytes")
	cfg.IdentityVerification.ExternalURL = "https://auth.example.com"
	cfg.Duo.Enabled = true
	cfg.AccessControl = AccessControlConfig{
		DefaultPolicy: []string{"home.example.com"},
		Groups: map[string][]string{
			"admins": {"*.example.com"},
		},
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	ldap := newMockLDAP()
	notifier := &mockNotifier{}
	duo := &mockDuo{allowed: true}
	authenticator := &mockAuthenticator{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithLDAP(ldap).
		WithNotifier(notifier).
		WithDuo(duo).
		WithAuthenticator(authenticator).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{
		engine:        engine,
		redis:         mr,
		ldap:          ldap,
		notifier:      notifier,
		duo:           duo,
		authenticator: authenticator,
	}
}

// login drives a successful first factor for john.
func (te *testEngine) login(t *testing.T, sessionID string) {
	t.Helper()
	if _, err := te.engine.FirstFactor(context.Background(), sessionID, "john", "hunter2", false, ""); err != nil {
		t.Fatalf("FirstFactor failed: %v", err)
	}
}

// totpCodeFor computes the currently valid code for a stored secret.
func totpCodeFor(t *testing.T, secret []byte, cfg TOTPConfig) string {
	t.Helper()
	counter := time.Now().Unix() / int64(cfg.Period)
	code, err := hotpCode(secret, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}
