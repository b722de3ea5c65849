package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when the referenced session does not exist or is
// not owned by the given user.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	fieldUserID    = "uid"
	fieldTokenHash = "th"
	fieldRevoked   = "rv"
	fieldCreatedAt = "ca"
	fieldExpiresAt = "ea"
)

// Revocation is owner-checked and idempotent: the script reports whether
// the flag was newly set so callers can audit only real transitions.
const revokeScript = `
local uid = redis.call("HGET", KEYS[1], "uid")
if not uid or uid ~= ARGV[1] then
  return -1
end
if redis.call("HGET", KEYS[1], "rv") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "rv", "1")
return 1
`

var revokeLua = redis.NewScript(revokeScript)

const (
	revokeStatusNotOwned int64 = -1
	revokeStatusAlready  int64 = 0
	revokeStatusRevoked  int64 = 1
)

// Registry is the Redis-backed session registry. Each session is a hash
// keyed by session ID; a per-user set indexes the user's sessions for
// scoped bulk revocation.
type Registry struct {
	redis    redis.UniversalClient
	prefix   string
	lifetime time.Duration
}

// NewRegistry creates a [Registry] on the given Redis client. prefix
// namespaces all keys; lifetime caps how long records are retained.
func NewRegistry(client redis.UniversalClient, prefix string, lifetime time.Duration) *Registry {
	return &Registry{
		redis:    client,
		prefix:   prefix,
		lifetime: lifetime,
	}
}

func (r *Registry) key(sessionID string) string {
	return r.prefix + ":s:" + sessionID
}

func (r *Registry) userKey(userID string) string {
	return r.prefix + ":u:" + userID
}

// Save registers a new session record. The hash and the user index entry
// are written in one transaction so the index never references a session
// that was not stored.
func (r *Registry) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.SessionID == "" || rec.UserID == "" {
		return errors.New("incomplete session record")
	}

	key := r.key(rec.SessionID)
	userKey := r.userKey(rec.UserID)

	revoked := "0"
	if rec.Revoked {
		revoked = "1"
	}

	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUserID, rec.UserID,
			fieldTokenHash, hex.EncodeToString(rec.TokenHash[:]),
			fieldRevoked, revoked,
			fieldCreatedAt, rec.CreatedAt.Unix(),
			fieldExpiresAt, rec.ExpiresAt.Unix(),
		)
		pipe.Expire(ctx, key, r.lifetime)
		pipe.SAdd(ctx, userKey, rec.SessionID)
		pipe.Expire(ctx, userKey, r.lifetime)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get fetches a session record. Returns ErrNotFound when the key aged out
// or never existed.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Record, error) {
	fields, err := r.redis.HGetAll(ctx, r.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return decodeRecord(sessionID, fields)
}

// Revoke flips the session's revoked flag, verifying ownership first.
// Returns (true, nil) when the flag was newly set, (false, nil) when the
// session was already revoked, and ErrNotFound when the session does not
// exist or belongs to another user.
func (r *Registry) Revoke(ctx context.Context, userID, sessionID string) (bool, error) {
	status, err := revokeLua.Run(ctx, r.redis, []string{r.key(sessionID)}, userID).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case revokeStatusNotOwned:
		return false, ErrNotFound
	case revokeStatusAlready:
		return false, nil
	case revokeStatusRevoked:
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown revoke script status %d", ErrRedisUnavailable, status)
	}
}

// RevokeAllExcept revokes every session of a user other than keepSessionID
// and returns the IDs newly revoked.
//
// ATOMICITY NOTE: the set read (SMembers) and the per-session revocations
// run as separate commands. A session registered between the read and the
// writes is not captured; it will be caught by the caller's next sweep or
// age out on its own TTL.
func (r *Registry) RevokeAllExcept(ctx context.Context, userID, keepSessionID string) ([]string, error) {
	sessionIDs, err := r.redis.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	revoked := make([]string, 0, len(sessionIDs))
	for _, sid := range sessionIDs {
		if sid == keepSessionID {
			continue
		}
		newly, err := r.Revoke(ctx, userID, sid)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Aged out between the index read and the revoke.
				continue
			}
			return revoked, err
		}
		if newly {
			revoked = append(revoked, sid)
		}
	}

	return revoked, nil
}

// IsRevoked reports the revoked flag for a session. A missing record is
// ErrNotFound, not a revocation: callers decide how to treat absence.
func (r *Registry) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	val, err := r.redis.HGet(ctx, r.key(sessionID), fieldRevoked).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return val == "1", nil
}

// ActiveSessionIDs returns the indexed session IDs for a user, including
// revoked ones that have not yet aged out.
func (r *Registry) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.redis.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (r *Registry) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func decodeRecord(sessionID string, fields map[string]string) (*Record, error) {
	rec := &Record{
		SessionID: sessionID,
		UserID:    fields[fieldUserID],
		Revoked:   fields[fieldRevoked] == "1",
	}

	if th := fields[fieldTokenHash]; th != "" {
		raw, err := hex.DecodeString(th)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("corrupt session record %q", sessionID)
		}
		copy(rec.TokenHash[:], raw)
	}

	ca, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session record %q", sessionID)
	}
	ea, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session record %q", sessionID)
	}
	rec.CreatedAt = time.Unix(ca, 0)
	rec.ExpiresAt = time.Unix(ea, 0)

	return rec, nil
}
