// Package memory provides an in-process credential store and password
// policy, suitable for tests and single-node deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/authkeep/authkeep"
)

// Store implements authkeep.CredentialStore and authkeep.PasswordPolicy
// with mutex-guarded maps.
type Store struct {
	mu          sync.Mutex
	credentials map[string]*authkeep.TwoFactorRecord
	passwords   map[string]passwordMeta
	// MaxPasswordAge of zero means no expiry rule.
	maxPasswordAge time.Duration
}

type passwordMeta struct {
	changedAt time.Time
}

// New creates an empty store. maxPasswordAge of zero disables the expiry
// rule entirely.
func New(maxPasswordAge time.Duration) *Store {
	return &Store{
		credentials:    make(map[string]*authkeep.TwoFactorRecord),
		passwords:      make(map[string]passwordMeta),
		maxPasswordAge: maxPasswordAge,
	}
}

// GetTwoFactor returns a copy of the stored record, or (nil, nil) when the
// user never set up two-factor.
func (s *Store) GetTwoFactor(ctx context.Context, userID string) (*authkeep.TwoFactorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.credentials[userID]
	if !ok {
		return nil, nil
	}

	out := &authkeep.TwoFactorRecord{
		Secret:         rec.Secret,
		Enabled:        rec.Enabled,
		RecoveryHashes: make([][32]byte, len(rec.RecoveryHashes)),
	}
	copy(out.RecoveryHashes, rec.RecoveryHashes)
	return out, nil
}

// UpsertTwoFactor overwrites any prior record for the user.
func (s *Store) UpsertTwoFactor(ctx context.Context, userID string, record authkeep.TwoFactorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := &authkeep.TwoFactorRecord{
		Secret:         record.Secret,
		Enabled:        record.Enabled,
		RecoveryHashes: make([][32]byte, len(record.RecoveryHashes)),
	}
	copy(stored.RecoveryHashes, record.RecoveryHashes)
	s.credentials[userID] = stored
	return nil
}

// SetTwoFactorEnabled flips an existing record to enabled.
func (s *Store) SetTwoFactorEnabled(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.credentials[userID]
	if !ok {
		return authkeep.ErrCredentialNotFound
	}
	rec.Enabled = true
	return nil
}

// ConsumeRecoveryCode removes the matching hash under the store lock, so a
// code is honored at most once even under concurrent submission.
func (s *Store) ConsumeRecoveryCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.credentials[userID]
	if !ok {
		return false, nil
	}

	for i, h := range rec.RecoveryHashes {
		if h == hash {
			rec.RecoveryHashes = append(rec.RecoveryHashes[:i], rec.RecoveryHashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// SetPasswordChangedAt records when the user last changed their password.
func (s *Store) SetPasswordChangedAt(userID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[userID] = passwordMeta{changedAt: at}
}

// CheckExpiry derives the password age state from the stored change time.
func (s *Store) CheckExpiry(ctx context.Context, userID string) (authkeep.PasswordExpiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxPasswordAge <= 0 {
		return authkeep.PasswordExpiry{}, nil
	}

	meta, ok := s.passwords[userID]
	if !ok {
		return authkeep.PasswordExpiry{}, nil
	}

	deadline := meta.changedAt.Add(s.maxPasswordAge)
	now := time.Now()
	if !now.Before(deadline) {
		return authkeep.PasswordExpiry{Expired: true}, nil
	}

	days := int(deadline.Sub(now).Hours() / 24)
	return authkeep.PasswordExpiry{DaysUntilExpiry: &days}, nil
}
