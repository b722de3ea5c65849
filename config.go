package authkeep

import (
	"errors"
	"strings"
	"time"
)

// Config carries every tunable of the engine. Instances are set up once,
// validated by Build, and treated as immutable afterwards.
type Config struct {
	TwoFactor      TwoFactorConfig
	Token          TokenConfig
	Session        SessionConfig
	Sentinel       SentinelConfig
	PasswordExpiry PasswordExpiryConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
}

// TwoFactorConfig controls secret generation, code verification, and the
// failed-attempt limiter.
type TwoFactorConfig struct {
	// Issuer is embedded in otpauth:// provisioning URIs.
	Issuer string
	// Digits per TOTP code. RFC 6238 authenticator apps expect 6.
	Digits int
	// Period is the TOTP time-step length.
	Period time.Duration
	// Skew is the number of adjacent time steps accepted on either side of
	// the current one. 1 tolerates ±30s of clock drift at the default period.
	Skew int
	// Algorithm selects the HOTP HMAC: "SHA1" (default), "SHA256", "SHA512".
	Algorithm string
	// RecoveryCodeCount and RecoveryCodeLength size the batch minted at setup.
	RecoveryCodeCount  int
	RecoveryCodeLength int
	// MaxAttempts failed verifications within AttemptWindow lock further
	// attempts for the remainder of the window.
	MaxAttempts   int
	AttemptWindow time.Duration
	// QRSize is the pixel edge of the rendered enrollment QR code.
	QRSize int
}

// TokenConfig configures the signed bearer session tokens.
type TokenConfig struct {
	TTL           time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// SessionConfig configures the Redis session registry.
type SessionConfig struct {
	RedisPrefix string
	// Lifetime bounds how long a record (revoked or not) is retained.
	Lifetime time.Duration
}

// SentinelConfig configures the revocation-polling sentinel.
type SentinelConfig struct {
	// Interval between polls. The first poll fires immediately on start.
	Interval time.Duration
}

// PasswordExpiryConfig configures the deferred expiry-check queue.
type PasswordExpiryConfig struct {
	// CheckTimeout bounds each deferred policy call.
	CheckTimeout time.Duration
	// QueueSize is the deferred task buffer; excess tasks are dropped and
	// counted, never blocked on.
	QueueSize int
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration the engine ships with. Token keys
// must still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		TwoFactor: TwoFactorConfig{
			Issuer:             "authkeep",
			Digits:             6,
			Period:             30 * time.Second,
			Skew:               1,
			Algorithm:          "SHA1",
			RecoveryCodeCount:  10,
			RecoveryCodeLength: 8,
			MaxAttempts:        5,
			AttemptWindow:      time.Minute,
			QRSize:             256,
		},
		Token: TokenConfig{
			TTL:           12 * time.Hour,
			SigningMethod: "ed25519",
		},
		Session: SessionConfig{
			RedisPrefix: "ak",
			Lifetime:    7 * 24 * time.Hour,
		},
		Sentinel: SentinelConfig{
			Interval: 30 * time.Second,
		},
		PasswordExpiry: PasswordExpiryConfig{
			CheckTimeout: 5 * time.Second,
			QueueSize:    256,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
func (c Config) Validate() error {
	tf := c.TwoFactor
	if tf.Digits < 6 || tf.Digits > 10 {
		return errors.New("two-factor digits must be between 6 and 10")
	}
	if tf.Period < time.Second {
		return errors.New("two-factor period must be at least one second")
	}
	if tf.Skew < 0 || tf.Skew > 2 {
		return errors.New("two-factor skew must be between 0 and 2 steps")
	}
	switch strings.ToUpper(tf.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("unsupported two-factor algorithm")
	}
	if tf.RecoveryCodeCount <= 0 || tf.RecoveryCodeLength < 8 {
		return errors.New("recovery codes must be at least 8 characters and count positive")
	}
	if tf.MaxAttempts <= 0 || tf.AttemptWindow <= 0 {
		return errors.New("verification limiter requires positive attempts and window")
	}
	if c.Token.TTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("session lifetime must be positive")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("session redis prefix required")
	}
	if c.Sentinel.Interval <= 0 {
		return errors.New("sentinel interval must be positive")
	}
	if c.PasswordExpiry.CheckTimeout <= 0 || c.PasswordExpiry.QueueSize <= 0 {
		return errors.New("password expiry queue requires positive timeout and size")
	}
	return nil
}
