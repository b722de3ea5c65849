package authkeep

import (
	"context"
	"fmt"
	"time"
)

// SetupTwoFactor starts (or restarts) two-factor enrollment for a user. It
// mints a fresh secret and recovery code batch and overwrites any existing
// credential, enabled or not. The credential stays disabled until the user
// proves possession via [Engine.EnableTwoFactor]. The plaintext recovery
// codes appear only in the returned value.
func (e *Engine) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrBadRequest)
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	codes, err := newRecoveryCodes(e.config.TwoFactor.RecoveryCodeCount, e.config.TwoFactor.RecoveryCodeLength)
	if err != nil {
		return nil, err
	}

	hashes := make([][32]byte, len(codes))
	for i, code := range codes {
		hashes[i] = recoveryCodeHash(userID, code)
	}

	record := TwoFactorRecord{
		Secret:         secret,
		Enabled:        false,
		RecoveryHashes: hashes,
	}
	if err := e.credentials.UpsertTwoFactor(ctx, userID, record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	uri := e.totp.ProvisionURI(secret, userID)

	// QR rendering is best effort; manual secret entry remains available.
	var qrDataURI string
	if e.qr != nil {
		if encoded, encErr := e.qr.Encode(uri, e.config.TwoFactor.QRSize); encErr == nil {
			qrDataURI = encoded
		}
	}

	e.metricInc(MetricTwoFactorSetup)
	e.emitAudit(ctx, "twofactor.setup", userID, "", true, "", nil)

	return &TwoFactorSetup{
		Secret:        secret,
		ProvisionURI:  uri,
		QRCodeDataURI: qrDataURI,
		RecoveryCodes: codes,
	}, nil
}

// EnableTwoFactor confirms enrollment with a first TOTP code. Only a TOTP
// code is accepted here; recovery codes do not prove the authenticator app
// was provisioned. On success the credential flips to enabled and the
// verification limiter resets.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if userID == "" || code == "" {
		return fmt.Errorf("%w: user id and code required", ErrBadRequest)
	}

	if err := e.limiter.Check(ctx, userID); err != nil {
		if err == ErrTooManyAttempts {
			e.metricInc(MetricVerifyRateLimited)
		}
		return err
	}

	record, err := e.credentials.GetTwoFactor(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if record == nil {
		return ErrTwoFactorNotSetUp
	}

	if !e.totp.VerifyCode(record.Secret, code, time.Now()) {
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, "twofactor.enable", userID, "", false, ErrCodeInvalid.Error(), nil)
		if limErr := e.limiter.RecordFailure(ctx, userID); limErr != nil && limErr != ErrTooManyAttempts {
			return limErr
		}
		return ErrCodeInvalid
	}

	if err := e.credentials.SetTwoFactorEnabled(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	_ = e.limiter.Reset(ctx, userID)

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, "twofactor.enable", userID, "", true, "", nil)

	return nil
}

// VerifyTwoFactor is the login-time second factor check. The code is first
// tried as a recovery code, which is consumed atomically before the call
// reports success, and then as a TOTP code. A wrong code is not an error:
// the result carries Valid=false and the failure counts against the limiter.
func (e *Engine) VerifyTwoFactor(ctx context.Context, userID, code string) (VerifyResult, error) {
	if err := e.ready(); err != nil {
		return VerifyResult{}, err
	}
	if userID == "" || code == "" {
		return VerifyResult{}, fmt.Errorf("%w: user id and code required", ErrBadRequest)
	}

	if err := e.limiter.Check(ctx, userID); err != nil {
		if err == ErrTooManyAttempts {
			e.metricInc(MetricVerifyRateLimited)
			e.emitAudit(ctx, "twofactor.verify", userID, "", false, ErrTooManyAttempts.Error(), nil)
		}
		return VerifyResult{}, err
	}

	record, err := e.credentials.GetTwoFactor(ctx, userID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if record == nil {
		return VerifyResult{}, ErrTwoFactorNotSetUp
	}
	if !record.Enabled {
		return VerifyResult{}, ErrTwoFactorNotEnabled
	}

	// Recovery codes are the first factor tried; a consumed code
	// short-circuits the TOTP check. Consumption is durably applied by the
	// store before success is reported, so a code survives at most one use
	// even under client retries.
	consumed, err := e.credentials.ConsumeRecoveryCode(ctx, userID, recoveryCodeHash(userID, code))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if consumed {
		_ = e.limiter.Reset(ctx, userID)
		e.metricInc(MetricVerifySuccess)
		e.metricInc(MetricRecoveryCodeUsed)
		e.emitAudit(ctx, "twofactor.verify", userID, "", true, "", map[string]string{"factor": "recovery"})
		return VerifyResult{Valid: true, UsedRecoveryCode: true}, nil
	}

	if e.totp.VerifyCode(record.Secret, code, time.Now()) {
		_ = e.limiter.Reset(ctx, userID)
		e.metricInc(MetricVerifySuccess)
		e.emitAudit(ctx, "twofactor.verify", userID, "", true, "", map[string]string{"factor": "totp"})
		return VerifyResult{Valid: true}, nil
	}

	return e.verifyFailed(ctx, userID)
}

func (e *Engine) verifyFailed(ctx context.Context, userID string) (VerifyResult, error) {
	e.metricInc(MetricVerifyFailure)
	e.emitAudit(ctx, "twofactor.verify", userID, "", false, ErrCodeInvalid.Error(), nil)
	if err := e.limiter.RecordFailure(ctx, userID); err != nil && err != ErrTooManyAttempts {
		return VerifyResult{}, err
	}
	return VerifyResult{Valid: false}, nil
}

// TwoFactorStatus reports whether the user has a credential and whether it
// is enabled, without touching the limiter.
func (e *Engine) TwoFactorStatus(ctx context.Context, userID string) (setUp bool, enabled bool, err error) {
	if err := e.ready(); err != nil {
		return false, false, err
	}
	if userID == "" {
		return false, false, fmt.Errorf("%w: user id required", ErrBadRequest)
	}

	record, err := e.credentials.GetTwoFactor(ctx, userID)
	if err != nil {
		return false, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if record == nil {
		return false, false, nil
	}
	return true, record.Enabled, nil
}
