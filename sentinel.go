package authkeep

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Sentinel polls the session registry and fires a callback the moment the
// watched session stops being honored, so long-lived clients learn about a
// remote revocation without waiting for their next request to fail.
//
// One sentinel watches one session on one goroutine. Ticks never overlap;
// a slow poll delays the next one. Transient registry errors are logged
// and swallowed: only a confirmed revocation (or a record that aged out,
// which the engine treats the same way) triggers the sign-out.
type Sentinel struct {
	engine    *Engine
	sessionID string
	interval  time.Duration
	onSignOut func(sessionID string)

	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSentinel prepares a sentinel for the given session. onSignOut is
// invoked at most once, from the sentinel's own goroutine.
func (e *Engine) NewSentinel(sessionID string, onSignOut func(sessionID string)) *Sentinel {
	if e == nil || sessionID == "" || onSignOut == nil {
		return nil
	}
	return &Sentinel{
		engine:    e,
		sessionID: sessionID,
		interval:  e.config.Sentinel.Interval,
		onSignOut: onSignOut,
		done:      make(chan struct{}),
	}
}

// Start begins polling. The first check fires immediately, then every
// interval. Start is idempotent.
func (s *Sentinel) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go s.run(ctx)
	})
}

// Stop cancels polling and waits for the goroutine to exit. Safe to call
// whether or not the sign-out already fired.
func (s *Sentinel) Stop() {
	if s == nil || s.cancel == nil {
		return
	}
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Sentinel) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.check(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.check(ctx) {
				return
			}
		}
	}
}

// check returns true when the sentinel is finished, either because the
// session was revoked or the context ended.
func (s *Sentinel) check(ctx context.Context) bool {
	revoked, err := s.engine.SessionRevoked(ctx, s.sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// The record aged out; the registry no longer honors this
			// session, same as a revocation.
			s.signOut()
			return true
		}
		if ctx.Err() != nil {
			return true
		}
		log.Printf("authkeep: sentinel poll failed for session %s: %v", s.sessionID, err)
		return false
	}

	if revoked {
		s.signOut()
		return true
	}
	return false
}

func (s *Sentinel) signOut() {
	s.engine.metricInc(MetricSentinelSignOut)
	s.onSignOut(s.sessionID)
}
