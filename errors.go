package authkeep

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is invoked before
	// the Builder finished wiring its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUnauthorized is returned when no valid principal accompanies the call.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest is returned when required input fields are missing or malformed.
	ErrBadRequest = errors.New("bad request")
	// ErrCredentialNotFound is returned when no two-factor credential exists
	// for the referenced user.
	ErrCredentialNotFound = errors.New("two-factor credential not found")
	// ErrTwoFactorNotSetUp is returned by the login-time check when the user
	// never initiated enrollment.
	ErrTwoFactorNotSetUp = errors.New("two-factor not set up")
	// ErrTwoFactorNotEnabled is returned by the login-time check when a
	// credential exists but was never confirmed.
	ErrTwoFactorNotEnabled = errors.New("two-factor not enabled")
	// ErrCodeInvalid is returned when a submitted code fails verification.
	// It deliberately does not reveal which factor was attempted.
	ErrCodeInvalid = errors.New("invalid verification code")
	// ErrTooManyAttempts is returned when the verification limiter is tripped.
	ErrTooManyAttempts = errors.New("verification attempts rate limited")
	// ErrStoreUnavailable wraps backing-store failures. The underlying error
	// is attached for logs but must never reach a client verbatim.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrSessionNotFound is returned when the referenced session record does
	// not exist or is not owned by the caller.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenInvalid is returned when a bearer session token fails parsing
	// or signature verification.
	ErrTokenInvalid = errors.New("invalid session token")
)
