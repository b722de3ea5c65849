package authkeep

import (
	"context"
	"errors"
	"fmt"

	"github.com/authkeep/authkeep/session"
)

// RevokeSession revokes one of the caller's own sessions by ID. Revocation
// is one-way and idempotent: repeating the call succeeds without effect. A
// session belonging to another user is reported as not found, never as a
// permission failure, so session IDs cannot be probed across accounts.
func (e *Engine) RevokeSession(ctx context.Context, p Principal, sessionID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if p.UserID == "" {
		return ErrUnauthorized
	}
	if sessionID == "" {
		return fmt.Errorf("%w: session id required", ErrBadRequest)
	}

	newly, err := e.registry.Revoke(ctx, p.UserID, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if newly {
		e.metricInc(MetricSessionRevoked)
		e.emitAudit(ctx, "session.revoked", p.UserID, sessionID, true, "", nil)
	}

	return nil
}

// RevokeOtherSessions revokes every session of the caller except the one
// making the request, and returns the IDs newly revoked. The current
// session is exempt even when its ID appears in the registry index.
func (e *Engine) RevokeOtherSessions(ctx context.Context, p Principal) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if p.UserID == "" || p.SessionID == "" {
		return nil, ErrUnauthorized
	}

	revoked, err := e.registry.RevokeAllExcept(ctx, p.UserID, p.SessionID)
	if err != nil {
		return revoked, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for _, sid := range revoked {
		e.metricInc(MetricSessionRevoked)
		e.emitAudit(ctx, "session.revoked", p.UserID, sid, true, "", map[string]string{"scope": "all-others"})
	}

	return revoked, nil
}

// SessionRevoked reports whether a session has been revoked. A record that
// aged out of the registry reports ErrSessionNotFound; callers decide
// whether absence means signed out.
func (e *Engine) SessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if sessionID == "" {
		return false, fmt.Errorf("%w: session id required", ErrBadRequest)
	}

	revoked, err := e.registry.IsRevoked(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return false, ErrSessionNotFound
		}
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return revoked, nil
}

// SessionIDs lists the caller's registered session IDs, revoked entries
// included until they age out.
func (e *Engine) SessionIDs(ctx context.Context, p Principal) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, ErrUnauthorized
	}

	ids, err := e.registry.ActiveSessionIDs(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// RecordLogout notes a sign-out of the caller's own session in the audit
// trail. It does not revoke: the registry record keeps its state and ages
// out on its own, so a client that still holds the bearer keeps a working
// session until revocation or expiry. Hosts that want logout to invalidate
// the token call [Engine.RevokeSession] as well.
func (e *Engine) RecordLogout(ctx context.Context, p Principal) error {
	if err := e.ready(); err != nil {
		return err
	}
	if p.UserID == "" || p.SessionID == "" {
		return ErrUnauthorized
	}
	e.emitAudit(ctx, "session.logout", p.UserID, p.SessionID, true, "", nil)
	return nil
}
