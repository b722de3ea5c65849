package session

import "time"

// Record is one entry in the session registry. Records are never deleted
// by revocation; the Revoked flag flips once and the key ages out on its
// Redis TTL, so a revoked session stays observable until it would have
// expired anyway.
type Record struct {
	SessionID string
	UserID    string
	// TokenHash is the SHA-256 of the bearer token, kept for forensic
	// correlation. The token itself is never stored.
	TokenHash [32]byte
	Revoked   bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the record is currently honored.
func (r *Record) Active(now time.Time) bool {
	if r == nil {
		return false
	}
	return !r.Revoked && now.Before(r.ExpiresAt)
}
