// Package postgres provides the PostgreSQL credential store and password
// policy, backed by a pgx connection pool.
//
// Expected schema:
//
//	CREATE TABLE two_factor_credentials (
//	    user_id         text PRIMARY KEY,
//	    secret          text NOT NULL,
//	    enabled         boolean NOT NULL DEFAULT false,
//	    recovery_hashes bytea[] NOT NULL DEFAULT '{}',
//	    updated_at      timestamptz NOT NULL DEFAULT now()
//	);
//
//	CREATE TABLE password_meta (
//	    user_id      text PRIMARY KEY,
//	    changed_at   timestamptz NOT NULL,
//	    max_age_days integer
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authkeep/authkeep"
)

// Store implements authkeep.CredentialStore and authkeep.PasswordPolicy on
// a pgx pool. Safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. The caller owns the pool's lifecycle.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool from a connection string and pings it.
func Connect(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) GetTwoFactor(ctx context.Context, userID string) (*authkeep.TwoFactorRecord, error) {
	var (
		secret  string
		enabled bool
		hashes  [][]byte
	)

	err := s.pool.QueryRow(ctx,
		`SELECT secret, enabled, recovery_hashes
		   FROM two_factor_credentials
		  WHERE user_id = $1`,
		userID,
	).Scan(&secret, &enabled, &hashes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get two factor: %w", err)
	}

	rec := &authkeep.TwoFactorRecord{
		Secret:         secret,
		Enabled:        enabled,
		RecoveryHashes: make([][32]byte, 0, len(hashes)),
	}
	for _, h := range hashes {
		if len(h) != 32 {
			return nil, fmt.Errorf("corrupt recovery hash for user %s", userID)
		}
		var fixed [32]byte
		copy(fixed[:], h)
		rec.RecoveryHashes = append(rec.RecoveryHashes, fixed)
	}
	return rec, nil
}

// UpsertTwoFactor replaces the whole credential row. ON CONFLICT overwrites
// rather than merges, so a re-setup fully supersedes the old enrollment.
func (s *Store) UpsertTwoFactor(ctx context.Context, userID string, record authkeep.TwoFactorRecord) error {
	hashes := make([][]byte, len(record.RecoveryHashes))
	for i, h := range record.RecoveryHashes {
		buf := make([]byte, 32)
		copy(buf, h[:])
		hashes[i] = buf
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO two_factor_credentials (user_id, secret, enabled, recovery_hashes, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id) DO UPDATE
		    SET secret = EXCLUDED.secret,
		        enabled = EXCLUDED.enabled,
		        recovery_hashes = EXCLUDED.recovery_hashes,
		        updated_at = now()`,
		userID, record.Secret, record.Enabled, hashes,
	)
	if err != nil {
		return fmt.Errorf("upsert two factor: %w", err)
	}
	return nil
}

func (s *Store) SetTwoFactorEnabled(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE two_factor_credentials
		    SET enabled = true, updated_at = now()
		  WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("enable two factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkeep.ErrCredentialNotFound
	}
	return nil
}

// ConsumeRecoveryCode matches and removes the hash in a single UPDATE, so
// concurrent submissions of the same code race on one row write and only
// one of them observes RowsAffected == 1.
func (s *Store) ConsumeRecoveryCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE two_factor_credentials
		    SET recovery_hashes = array_remove(recovery_hashes, $2::bytea),
		        updated_at = now()
		  WHERE user_id = $1
		    AND $2::bytea = ANY(recovery_hashes)`,
		userID, hash[:],
	)
	if err != nil {
		return false, fmt.Errorf("consume recovery code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CheckExpiry derives the password age state from password_meta. A missing
// row or a NULL max_age_days means the user has no expiry rule.
func (s *Store) CheckExpiry(ctx context.Context, userID string) (authkeep.PasswordExpiry, error) {
	var (
		changedAt  time.Time
		maxAgeDays *int
	)

	err := s.pool.QueryRow(ctx,
		`SELECT changed_at, max_age_days
		   FROM password_meta
		  WHERE user_id = $1`,
		userID,
	).Scan(&changedAt, &maxAgeDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authkeep.PasswordExpiry{}, nil
		}
		return authkeep.PasswordExpiry{}, fmt.Errorf("check password expiry: %w", err)
	}

	if maxAgeDays == nil {
		return authkeep.PasswordExpiry{}, nil
	}

	deadline := changedAt.Add(time.Duration(*maxAgeDays) * 24 * time.Hour)
	now := time.Now()
	if !now.Before(deadline) {
		return authkeep.PasswordExpiry{Expired: true}, nil
	}

	days := int(deadline.Sub(now).Hours() / 24)
	return authkeep.PasswordExpiry{DaysUntilExpiry: &days}, nil
}
