package memory

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/authkeep/authkeep"
)

func TestGetTwoFactorAbsentUser(t *testing.T) {
	s := New(0)
	rec, err := s.GetTwoFactor(context.Background(), "nobody")
	if err != nil || rec != nil {
		t.Fatalf("expected (nil, nil) for absent user, got %v %v", rec, err)
	}
}

func TestUpsertOverwrites(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	first := authkeep.TwoFactorRecord{Secret: "AAAA", RecoveryHashes: [][32]byte{sha256.Sum256([]byte("one"))}}
	if err := s.UpsertTwoFactor(ctx, "u1", first); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := s.SetTwoFactorEnabled(ctx, "u1"); err != nil {
		t.Fatalf("enable failed: %v", err)
	}

	second := authkeep.TwoFactorRecord{Secret: "BBBB", RecoveryHashes: [][32]byte{sha256.Sum256([]byte("two"))}}
	if err := s.UpsertTwoFactor(ctx, "u1", second); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	rec, err := s.GetTwoFactor(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.Secret != "BBBB" || rec.Enabled {
		t.Fatalf("expected overwrite to reset record, got %+v", rec)
	}
}

func TestSetTwoFactorEnabledMissing(t *testing.T) {
	s := New(0)
	err := s.SetTwoFactorEnabled(context.Background(), "nobody")
	if !errors.Is(err, authkeep.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.UpsertTwoFactor(ctx, "u1", authkeep.TwoFactorRecord{
		Secret:         "AAAA",
		RecoveryHashes: [][32]byte{sha256.Sum256([]byte("one"))},
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	rec, _ := s.GetTwoFactor(ctx, "u1")
	rec.Secret = "mutated"
	rec.RecoveryHashes[0] = [32]byte{}

	again, _ := s.GetTwoFactor(ctx, "u1")
	if again.Secret != "AAAA" || again.RecoveryHashes[0] == ([32]byte{}) {
		t.Fatal("expected stored record to be isolated from returned copy")
	}
}

func TestConsumeRecoveryCodeSingleWinner(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	hash := sha256.Sum256([]byte("the-code"))

	if err := s.UpsertTwoFactor(ctx, "u1", authkeep.TwoFactorRecord{
		Secret:         "AAAA",
		RecoveryHashes: [][32]byte{hash},
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ConsumeRecoveryCode(ctx, "u1", hash)
			if err != nil {
				t.Errorf("consume failed: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	var winners int
	for ok := range results {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one successful consumption, got %d", winners)
	}
}

func TestCheckExpiry(t *testing.T) {
	ctx := context.Background()

	// No rule configured.
	s := New(0)
	s.SetPasswordChangedAt("u1", time.Now().Add(-365*24*time.Hour))
	expiry, err := s.CheckExpiry(ctx, "u1")
	if err != nil || expiry.Expired || expiry.DaysUntilExpiry != nil {
		t.Fatalf("expected no expiry rule, got %+v %v", expiry, err)
	}

	// Rule configured, password fresh.
	s = New(30 * 24 * time.Hour)
	s.SetPasswordChangedAt("u1", time.Now().Add(-10*24*time.Hour))
	expiry, err = s.CheckExpiry(ctx, "u1")
	if err != nil {
		t.Fatalf("CheckExpiry failed: %v", err)
	}
	if expiry.Expired || expiry.DaysUntilExpiry == nil || *expiry.DaysUntilExpiry < 19 || *expiry.DaysUntilExpiry > 20 {
		t.Fatalf("expected roughly 19-20 days, got %+v", expiry)
	}

	// Rule configured, password stale.
	s.SetPasswordChangedAt("u2", time.Now().Add(-40*24*time.Hour))
	expiry, err = s.CheckExpiry(ctx, "u2")
	if err != nil || !expiry.Expired {
		t.Fatalf("expected expired, got %+v %v", expiry, err)
	}

	// Unknown user has no recorded change, so no verdict.
	expiry, err = s.CheckExpiry(ctx, "stranger")
	if err != nil || expiry.Expired || expiry.DaysUntilExpiry != nil {
		t.Fatalf("expected empty state for unknown user, got %+v %v", expiry, err)
	}
}
