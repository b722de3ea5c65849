package authkeep

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/authkeep/authkeep/session"
	"github.com/authkeep/authkeep/token"
)

// Engine is the entry point for every operation. Construct one with a
// [Builder]; zero-value Engines reject all calls with ErrEngineNotReady.
type Engine struct {
	config      Config
	credentials CredentialStore
	policy      PasswordPolicy
	registry    *session.Registry
	tokens      *token.Manager
	totp        *totpManager
	qr          QREncoder
	limiter     *verifyLimiter
	audit       *auditDispatcher
	metrics     *Metrics
	expiryQueue *taskQueue
}

// Close flushes the audit dispatcher and drains the deferred task queue.
// The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.expiryQueue != nil {
		e.expiryQueue.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded by a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, sessionID string, success bool, errMsg string, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Error:     errMsg,
		Metadata:  metadata,
	})
}

func (e *Engine) ready() error {
	if e == nil || e.credentials == nil || e.registry == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	return nil
}

// RegisterSession records a freshly authenticated session: mints a session
// ID, issues the bearer token, registers the record, and queues the
// deferred password expiry check. Hosts call this after their primary
// login succeeds.
func (e *Engine) RegisterSession(ctx context.Context, userID string) (string, Principal, error) {
	if err := e.ready(); err != nil {
		return "", Principal{}, err
	}
	if userID == "" {
		return "", Principal{}, fmt.Errorf("%w: user id required", ErrBadRequest)
	}

	sessionID := uuid.NewString()

	bearer, err := e.tokens.Issue(userID, sessionID)
	if err != nil {
		return "", Principal{}, err
	}

	now := time.Now()
	rec := &session.Record{
		SessionID: sessionID,
		UserID:    userID,
		TokenHash: sha256.Sum256([]byte(bearer)),
		CreatedAt: now,
		ExpiresAt: now.Add(e.config.Token.TTL),
	}
	if err := e.registry.Save(ctx, rec); err != nil {
		return "", Principal{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSessionRegistered)
	e.emitAudit(ctx, "session.registered", userID, sessionID, true, "", nil)
	e.QueuePasswordExpiryCheck(userID)

	return bearer, Principal{UserID: userID, SessionID: sessionID}, nil
}

// Authenticate resolves a bearer token to a [Principal]. The signature and
// expiry checks come first; then the registry has the final word, so a
// revoked session fails even while its token is cryptographically valid.
func (e *Engine) Authenticate(ctx context.Context, bearer string) (Principal, error) {
	if err := e.ready(); err != nil {
		return Principal{}, err
	}
	if bearer == "" {
		return Principal{}, ErrUnauthorized
	}

	claims, err := e.tokens.Parse(bearer)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	revoked, err := e.registry.IsRevoked(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			// No record means the registry never saw this session; a
			// valid signature alone does not grant access.
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		return Principal{}, ErrUnauthorized
	}

	return Principal{UserID: claims.UID, SessionID: claims.SID}, nil
}
