package authgate

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/authgate/authgate/session"
)

// Builder assembles an [Engine] from its configuration and capabilities.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	ldap          LDAPProvider
	notifier      Notifier
	duo           DuoProvider
	authenticator DeviceAuthenticator
	auditSink     AuditSink

	built bool
}

// New creates a [Builder] with the default configuration.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing all engine stores.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLDAP sets the credential backend.
func (b *Builder) WithLDAP(provider LDAPProvider) *Builder {
	b.ldap = provider
	return b
}

// WithNotifier sets the mail delivery capability.
func (b *Builder) WithNotifier(notifier Notifier) *Builder {
	b.notifier = notifier
	return b
}

// WithDuo sets the Duo push capability.
func (b *Builder) WithDuo(provider DuoProvider) *Builder {
	b.duo = provider
	return b
}

// WithAuthenticator sets the device ceremony capability.
func (b *Builder) WithAuthenticator(authenticator DeviceAuthenticator) *Builder {
	b.authenticator = authenticator
	return b
}

// WithAuditSink sets where audit events are delivered.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the metrics system.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histogram recording.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A builder can
// only be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.ldap == nil {
		return nil, errors.New("ldap provider required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}
	if b.config.Duo.Enabled && b.duo == nil {
		return nil, errors.New("duo provider required when duo is enabled")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	traces := newTraceStore(b.redis, cfg.Regulation.MaxRetries, cfg.Regulation.TraceTTL)

	engine := &Engine{
		config:      cfg,
		sessions:    session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.Lifetime),
		regulation:  newRegulator(traces, cfg.Regulation),
		tokens:      newTokenService(newTokenStore(b.redis), cfg.IdentityVerification),
		totpSecrets: newTOTPSecretStore(b.redis),
		devices:     newDeviceStore(b.redis),
		preferences: newPreferenceStore(b.redis),
		acl:         newAccessController(cfg.AccessControl),
		totp:        newTOTPManager(cfg.TOTP),

		ldap:          b.ldap,
		notifier:      b.notifier,
		duo:           b.duo,
		authenticator: b.authenticator,

		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: newEngineMetrics(cfg.Metrics),
	}

	if engine.authenticator == nil {
		engine.authenticator = newWebAuthnAuthenticator(cfg.WebAuthn)
	}

	b.built = true
	return engine, nil
}
