package authgate

import "errors"

var (
	// ErrInvalidCredentials is returned when the LDAP bind rejects the
	// submitted username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthenticationRegulated is returned when the user is locked out by
	// the brute-force regulator.
	ErrAuthenticationRegulated = errors.New("too many authentication attempts")
	// ErrRegulationUnavailable is returned when the regulator cannot reach
	// its trace backend.
	ErrRegulationUnavailable = errors.New("regulation backend unavailable")
	// ErrLDAPSearch is returned when the directory lookup after a successful
	// bind fails. Infrastructure fault, not an authentication failure.
	ErrLDAPSearch = errors.New("ldap search failed")
	// ErrIdentityMissing is returned when the directory has no email address
	// for an authenticated user.
	ErrIdentityMissing = errors.New("no email address associated with user")
	// ErrPasswordUpdate is returned when the directory rejects a password change.
	ErrPasswordUpdate = errors.New("password update failed")
	// ErrFirstFactorRequired is returned by second-factor operations invoked
	// before the first factor completed.
	ErrFirstFactorRequired = errors.New("first factor not completed")
	// ErrSecondFactorRequired is returned when full authentication is
	// required but only the first factor completed.
	ErrSecondFactorRequired = errors.New("second factor not completed")
	// ErrTOTPInvalid is returned when no time-based code matches within the
	// accepted window, or no secret is registered.
	ErrTOTPInvalid = errors.New("invalid totp code")
	// ErrRegistrationMissing is returned when a device sign-in is requested
	// but no device is registered for the user.
	ErrRegistrationMissing = errors.New("no registered device")
	// ErrCeremonyNotStarted is returned when a ceremony response arrives
	// without a matching outstanding challenge in the session.
	ErrCeremonyNotStarted = errors.New("no pending device challenge")
	// ErrCeremonyFailed is returned when the authenticator capability rejects
	// a response to a legitimately issued challenge.
	ErrCeremonyFailed = errors.New("device ceremony verification failed")
	// ErrTokenInvalid is returned when an identity verification token is
	// unknown, malformed, already used, or bound to another flow.
	ErrTokenInvalid = errors.New("invalid identity verification token")
	// ErrTokenExpired is returned when an identity verification token is
	// presented after its deadline.
	ErrTokenExpired = errors.New("identity verification token expired")
	// ErrTokenBackendUnavailable is returned when the token store cannot be reached.
	ErrTokenBackendUnavailable = errors.New("token backend unavailable")
	// ErrAccessDenied is returned on ACL rejections and on challenge or
	// identity-check mismatches in self-service flows.
	ErrAccessDenied = errors.New("access denied")
	// ErrDuoUnavailable is returned when the Duo capability is absent or fails.
	ErrDuoUnavailable = errors.New("duo backend unavailable")
	// ErrNotification is returned when the out-of-band notification could not
	// be handed to the notifier.
	ErrNotification = errors.New("notification delivery failed")
	// ErrStoreUnavailable is returned when a document store cannot be reached.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called before
	// the engine was built with its required dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)
