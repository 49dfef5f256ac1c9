package authgate

import (
	"errors"
	"strings"
	"time"
)

// Config defines the engine configuration tree.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	// DefaultRedirect is where authenticated users land when no target URL
	// was requested.
	DefaultRedirect string

	Session              SessionConfig
	Regulation           RegulationConfig
	TOTP                 TOTPConfig
	WebAuthn             WebAuthnConfig
	Duo                  DuoConfig
	IdentityVerification IdentityVerificationConfig
	AccessControl        AccessControlConfig
	Audit                AuditConfig
	Metrics              MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the Redis-backed authentication session store.
type SessionConfig struct {
	RedisPrefix string
	Lifetime    time.Duration
}

/*
====================================
REGULATION CONFIG
====================================
*/

// RegulationConfig tunes the brute-force regulator. A user is locked out
// when their newest MaxRetries failed attempts all happened within BanTime
// of now. MaxRetries <= 0 disables regulation.
type RegulationConfig struct {
	MaxRetries int
	BanTime    time.Duration
	// TraceTTL bounds how long attempt traces are retained. It must be
	// comfortably larger than BanTime or lockouts would expire early.
	TraceTTL time.Duration
}

/*
====================================
SECOND FACTOR CONFIG
====================================
*/

// TOTPConfig tunes time-based one-time code generation and verification.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
}

// WebAuthnConfig tunes the device-binding ceremonies.
type WebAuthnConfig struct {
	DisplayName string
	// Origins lists the web origins accepted for ceremonies. When empty,
	// https://<appID> is assumed.
	Origins []string
}

// DuoConfig enables the Duo Push second factor.
type DuoConfig struct {
	Enabled bool
}

/*
====================================
IDENTITY VERIFICATION CONFIG
====================================
*/

// IdentityVerificationConfig tunes single-use verification tokens and the
// links embedded in notification mails.
type IdentityVerificationConfig struct {
	// TokenSecret signs the token envelope (HS256). Required.
	TokenSecret []byte
	// TokenLifetime is the window during which an issued token can be consumed.
	TokenLifetime time.Duration
	// ExternalURL is the externally reachable base URL of the portal,
	// used to build verification links.
	ExternalURL string
	// MailTitle prefixes notification subjects.
	MailTitle string
}

/*
====================================
ACCESS CONTROL CONFIG
====================================
*/

// AccessControlConfig is the domain allow-list: a default policy plus
// per-group and per-user extensions. A pattern is "*" (any domain),
// "*.suffix" (subdomain wildcard, dot included in the matched suffix), or
// an exact domain.
type AccessControlConfig struct {
	DefaultPolicy []string
	Groups        map[string][]string
	Users         map[string][]string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the engine defaults. Callers building their own
// configuration should start from it and override what they need.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "as",
			Lifetime:    time.Hour,
		},
		Regulation: RegulationConfig{
			MaxRetries: 3,
			BanTime:    5 * time.Minute,
			TraceTTL:   24 * time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer:    "authgate",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		WebAuthn: WebAuthnConfig{
			DisplayName: "authgate",
		},
		IdentityVerification: IdentityVerificationConfig{
			TokenLifetime: 15 * time.Minute,
			MailTitle:     "authgate",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.Session.Lifetime <= 0 {
		return errors.New("session lifetime must be positive")
	}
	if c.Regulation.MaxRetries > 0 {
		if c.Regulation.BanTime <= 0 {
			return errors.New("regulation ban time must be positive")
		}
		if c.Regulation.TraceTTL < c.Regulation.BanTime {
			return errors.New("regulation trace ttl must not be below ban time")
		}
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("totp digits must be between 6 and 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if c.TOTP.Skew < 0 {
		return errors.New("totp skew must not be negative")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("unsupported totp algorithm")
	}
	if len(c.IdentityVerification.TokenSecret) == 0 {
		return errors.New("identity verification token secret required")
	}
	if c.IdentityVerification.TokenLifetime <= 0 {
		return errors.New("identity verification token lifetime must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.IdentityVerification.TokenSecret = cloneBytes(cfg.IdentityVerification.TokenSecret)
	out.WebAuthn.Origins = cloneStrings(cfg.WebAuthn.Origins)
	out.AccessControl.DefaultPolicy = cloneStrings(cfg.AccessControl.DefaultPolicy)
	out.AccessControl.Groups = clonePolicyMap(cfg.AccessControl.Groups)
	out.AccessControl.Users = clonePolicyMap(cfg.AccessControl.Users)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func clonePolicyMap(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = cloneStrings(v)
	}
	return out
}
