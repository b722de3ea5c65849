package authkeep

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/authkeep/authkeep/session"
	"github.com/authkeep/authkeep/token"
)

// Builder assembles an [Engine]. A builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials CredentialStore
	policy      PasswordPolicy
	qr          QREncoder
	auditSink   AuditSink

	built bool
}

// New starts a builder with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the Redis client backing the session registry and the
// verification limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore supplies the host's two-factor credential persistence.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithPasswordPolicy supplies the host's password expiry policy. Optional;
// without it expiry checks report no policy.
func (b *Builder) WithPasswordPolicy(policy PasswordPolicy) *Builder {
	b.policy = policy
	return b
}

// WithQREncoder overrides the enrollment QR renderer.
func (b *Builder) WithQREncoder(enc QREncoder) *Builder {
	b.qr = enc
	return b
}

// WithAuditSink enables audit dispatch into the given sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. The returned
// engine owns its background goroutines; call Close when done.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		TTL:           b.config.Token.TTL,
		SigningMethod: token.SigningMethod(b.config.Token.SigningMethod),
		PrivateKey:    b.config.Token.PrivateKey,
		PublicKey:     b.config.Token.PublicKey,
		Issuer:        b.config.Token.Issuer,
		Leeway:        b.config.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	qr := b.qr
	if qr == nil {
		qr = NewPNGQREncoder()
	}

	e := &Engine{
		config:      b.config,
		credentials: b.credentials,
		policy:      b.policy,
		registry:    session.NewRegistry(b.redis, b.config.Session.RedisPrefix, b.config.Session.Lifetime),
		tokens:      tokens,
		totp:        newTOTPManager(b.config.TwoFactor),
		qr:          qr,
		limiter: newVerifyLimiter(
			b.redis,
			b.config.Session.RedisPrefix,
			b.config.TwoFactor.MaxAttempts,
			b.config.TwoFactor.AttemptWindow,
		),
		audit:       newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:     NewMetrics(b.config.Metrics),
		expiryQueue: newTaskQueue(b.config.PasswordExpiry.QueueSize),
	}

	b.built = true
	return e, nil
}
