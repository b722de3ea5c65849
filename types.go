package authkeep

import "context"

// TwoFactorRecord is the persisted two-factor credential for one user.
// The plaintext recovery codes are never stored; only salted SHA-256
// hashes survive the setup response. Consuming a code removes its hash —
// removal is the irrevocable consumption event.
type TwoFactorRecord struct {
	// Secret is the base32-encoded shared secret, minted once at setup and
	// immutable until the record is overwritten by a re-setup.
	Secret string
	// Enabled is false while the credential awaits its first successful
	// verification. A record with Enabled == false must never be accepted
	// as a second factor.
	Enabled bool
	// RecoveryHashes shrinks monotonically as codes are consumed.
	RecoveryHashes [][32]byte
}

// CredentialStore is the interface host applications implement to persist
// two-factor credentials. Lookups for absent users return (nil, nil), not
// an error, so callers can distinguish "not set up" from store failures.
type CredentialStore interface {
	GetTwoFactor(ctx context.Context, userID string) (*TwoFactorRecord, error)
	// UpsertTwoFactor unconditionally overwrites any prior record for the
	// user. Re-setup supersedes; it never merges.
	UpsertTwoFactor(ctx context.Context, userID string, record TwoFactorRecord) error
	// SetTwoFactorEnabled flips Enabled to true for an existing record.
	SetTwoFactorEnabled(ctx context.Context, userID string) error
	// ConsumeRecoveryCode removes the matching hash and reports whether it
	// was present. Match-and-remove must be a single atomic store operation
	// so a code is honored at most once even under concurrent submission.
	ConsumeRecoveryCode(ctx context.Context, userID string, hash [32]byte) (bool, error)
}

// PasswordExpiry is the derived password-age state. It is advisory: the
// engine surfaces it but never blocks access on it.
type PasswordExpiry struct {
	Expired bool
	// DaysUntilExpiry is nil when the organization has no max-age rule.
	DaysUntilExpiry *int
}

// PasswordPolicy is implemented by the backing store. The store owns the
// expiry arithmetic; the engine only defines the consumption contract.
type PasswordPolicy interface {
	CheckExpiry(ctx context.Context, userID string) (PasswordExpiry, error)
}

// TwoFactorSetup is returned exactly once per setup call. RecoveryCodes are
// not retrievable again after this response.
type TwoFactorSetup struct {
	Secret string
	// ProvisionURI is the otpauth:// enrollment URI.
	ProvisionURI string
	// QRCodeDataURI is a data:image/png;base64 rendering of ProvisionURI.
	// Empty when QR encoding failed; setup still succeeds and the caller
	// falls back to manual secret entry.
	QRCodeDataURI string
	RecoveryCodes []string
}

// VerifyResult is returned by the login-time check.
type VerifyResult struct {
	Valid            bool
	UsedRecoveryCode bool
}

// Principal identifies the authenticated caller of an operation. It is
// always threaded explicitly; the engine never reads ambient identity state.
type Principal struct {
	UserID    string
	SessionID string
}
