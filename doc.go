// Package authkeep provides the account-security layer that sits behind a
// primary login: TOTP two-factor enrollment and verification with single-use
// recovery codes, a Redis-backed session registry with remote revocation,
// a polling sentinel that signs clients out when their session is revoked
// elsewhere, and deferred password-expiry checks.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkeep is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TwoFactorSetup, VerifyResult, Principal). Session
// persistence lives in the session sub-package, token signing in token,
// and credential storage behind the [CredentialStore] interface supplied
// by the host.
//
// # What this package must NOT do
//
//   - Perform primary password authentication; hosts call
//     [Engine.RegisterSession] after their own login succeeds.
//   - Store plaintext recovery codes or bearer tokens; only hashes persist.
//   - Block a request on audit dispatch or a password expiry check.
package authkeep
