package authgate

import "context"

// ChallengeKind identifies the self-service flow an identity verification
// token is bound to. A token minted for one kind can never be consumed by
// another.
type ChallengeKind string

const (
	// ChallengeTOTPRegister gates TOTP secret registration.
	ChallengeTOTPRegister ChallengeKind = "totp-register"
	// ChallengeDeviceRegister gates WebAuthn/U2F device registration.
	ChallengeDeviceRegister ChallengeKind = "u2f-register"
	// ChallengeResetPassword gates the password reset flow.
	ChallengeResetPassword ChallengeKind = "reset-password"
)

// Method is a second-factor method preference.
type Method string

const (
	// MethodTOTP selects time-based one-time codes.
	MethodTOTP Method = "totp"
	// MethodWebAuthn selects WebAuthn/U2F devices.
	MethodWebAuthn Method = "u2f"
	// MethodDuoPush selects Duo push notifications.
	MethodDuoPush Method = "duo_push"
)

// UserDetails is the directory information returned by [LDAPProvider.Search].
type UserDetails struct {
	Emails []string
	Groups []string
}

// LDAPProvider is the credential backend consumed by the engine. The wire
// protocol is the implementer's concern; the engine only needs bind,
// search, and password update.
//
// Bind returns a nil error only for a valid username/password pair. Any
// bind error is treated as invalid credentials.
type LDAPProvider interface {
	Bind(ctx context.Context, username, password string) error
	Search(ctx context.Context, username string) (UserDetails, error)
	UpdatePassword(ctx context.Context, username, newPassword string) error
}

// Notifier delivers out-of-band messages (identity verification links).
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// DuoProvider is the Duo push capability. Push blocks until the user
// approves or denies the prompt (or the provider times out) and reports
// the decision.
type DuoProvider interface {
	Push(ctx context.Context, username, ip string) (allowed bool, err error)
}

// DeviceUser identifies the account a device ceremony is performed for.
type DeviceUser struct {
	ID          []byte
	Name        string
	DisplayName string
}

// DeviceRegistration is a persisted device credential. KeyHandle and
// PublicKey are the portable parts; Credential is the authenticator
// implementation's opaque blob, fed back verbatim on sign-in.
type DeviceRegistration struct {
	KeyHandle   []byte `json:"key_handle"`
	PublicKey   []byte `json:"public_key"`
	Certificate []byte `json:"certificate,omitempty"`
	Credential  []byte `json:"credential"`
}

// DeviceAuthenticator is the device-binding capability consumed for
// WebAuthn/U2F ceremonies. Start methods return the challenge to send to
// the client and an opaque state blob the caller must hold (in the
// session) and present to the matching Finish method.
type DeviceAuthenticator interface {
	StartRegistration(ctx context.Context, user DeviceUser, appID string) (challenge, state []byte, err error)
	FinishRegistration(ctx context.Context, user DeviceUser, appID string, state, response []byte) (*DeviceRegistration, error)
	StartAuthentication(ctx context.Context, user DeviceUser, appID string, registrations []DeviceRegistration) (challenge, state []byte, err error)
	FinishAuthentication(ctx context.Context, user DeviceUser, appID string, registrations []DeviceRegistration, state, response []byte) error
}

// TOTPRegistration is returned to the client after a successful TOTP
// registration, for QR-code rendering.
type TOTPRegistration struct {
	Base32Secret string
	OtpauthURL   string
}

// AuthenticationLevel reflects how far a session has progressed.
type AuthenticationLevel int

const (
	// LevelNotAuthenticated means no factor has been validated.
	LevelNotAuthenticated AuthenticationLevel = iota
	// LevelOneFactor means the password/LDAP bind succeeded.
	LevelOneFactor
	// LevelTwoFactor means a second factor was also validated.
	LevelTwoFactor
)

// State is returned by [Engine.State] for the portal frontend.
type State struct {
	Username            string              `json:"username"`
	AuthenticationLevel AuthenticationLevel `json:"authentication_level"`
	DefaultRedirect     string              `json:"default_redirection_url,omitempty"`
}

// AccessResult carries the identity headers a fronting proxy forwards
// after a successful access check.
type AccessResult struct {
	Username string
	Groups   []string
}
