package authkeep

import (
	"context"
	"fmt"
	"log"
)

// CheckPasswordExpiry asks the configured policy for the user's password
// age state. Without a policy it reports not expired with no deadline.
// The result is advisory; nothing in the engine blocks on it.
func (e *Engine) CheckPasswordExpiry(ctx context.Context, userID string) (PasswordExpiry, error) {
	if err := e.ready(); err != nil {
		return PasswordExpiry{}, err
	}
	if userID == "" {
		return PasswordExpiry{}, fmt.Errorf("%w: user id required", ErrBadRequest)
	}
	if e.policy == nil {
		return PasswordExpiry{}, nil
	}

	expiry, err := e.policy.CheckExpiry(ctx, userID)
	if err != nil {
		return PasswordExpiry{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordExpiryCheck)
	return expiry, nil
}

// QueuePasswordExpiryCheck runs the expiry check off the hot path. Failures
// are logged and swallowed; a dropped or failed check never disturbs the
// session that triggered it.
func (e *Engine) QueuePasswordExpiryCheck(userID string) {
	if e == nil || e.expiryQueue == nil || e.policy == nil || userID == "" {
		return
	}

	timeout := e.config.PasswordExpiry.CheckTimeout
	e.expiryQueue.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		expiry, err := e.policy.CheckExpiry(ctx, userID)
		if err != nil {
			log.Printf("authkeep: deferred password expiry check failed for user %s: %v", userID, err)
			return
		}

		e.metricInc(MetricPasswordExpiryCheck)
		if expiry.Expired {
			e.emitAudit(ctx, "password.expired", userID, "", true, "", nil)
		}
	})
}
