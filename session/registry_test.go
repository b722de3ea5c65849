package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reg := NewRegistry(client, "ak", time.Hour)
	return reg, mr, func() {
		_ = client.Close()
		mr.Close()
	}
}

func testRecord(sessionID, userID string) *Record {
	now := time.Now()
	return &Record{
		SessionID: sessionID,
		UserID:    userID,
		TokenHash: sha256.Sum256([]byte(sessionID)),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	want := testRecord("s1", "u1")
	if err := reg.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := reg.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != "u1" || got.Revoked || got.TokenHash != want.TokenHash {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.CreatedAt.Unix() != want.CreatedAt.Unix() || got.ExpiresAt.Unix() != want.ExpiresAt.Unix() {
		t.Fatalf("timestamps not preserved: %+v", got)
	}
}

func TestSaveRejectsIncompleteRecord(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()

	if err := reg.Save(context.Background(), &Record{SessionID: "s1"}); err == nil {
		t.Fatal("expected error for record without user")
	}
	if err := reg.Save(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil record")
	}
}

func TestGetMissingSession(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()

	if _, err := reg.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeTransitions(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	if err := reg.Save(ctx, testRecord("s1", "u1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	newly, err := reg.Revoke(ctx, "u1", "s1")
	if err != nil || !newly {
		t.Fatalf("expected fresh revocation, got %v %v", newly, err)
	}

	// Idempotent: second call reports no transition.
	newly, err = reg.Revoke(ctx, "u1", "s1")
	if err != nil || newly {
		t.Fatalf("expected no-op revocation, got %v %v", newly, err)
	}

	revoked, err := reg.IsRevoked(ctx, "s1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}

	// The record survives revocation; only the flag flips.
	rec, err := reg.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get after revoke failed: %v", err)
	}
	if !rec.Revoked || rec.UserID != "u1" {
		t.Fatalf("unexpected record after revoke: %+v", rec)
	}
}

func TestRevokeChecksOwnership(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	if err := reg.Save(ctx, testRecord("s1", "alice")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := reg.Revoke(ctx, "bob", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign session, got %v", err)
	}
	if _, err := reg.Revoke(ctx, "alice", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing session, got %v", err)
	}

	revoked, err := reg.IsRevoked(ctx, "s1")
	if err != nil || revoked {
		t.Fatalf("expected session untouched, got %v %v", revoked, err)
	}
}

func TestRevokeAllExcept(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	for _, sid := range []string{"s1", "s2", "s3"} {
		if err := reg.Save(ctx, testRecord(sid, "u1")); err != nil {
			t.Fatalf("Save %s failed: %v", sid, err)
		}
	}
	if err := reg.Save(ctx, testRecord("other", "u2")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	revoked, err := reg.RevokeAllExcept(ctx, "u1", "s2")
	if err != nil {
		t.Fatalf("RevokeAllExcept failed: %v", err)
	}
	if len(revoked) != 2 {
		t.Fatalf("expected 2 revocations, got %v", revoked)
	}

	for sid, want := range map[string]bool{"s1": true, "s2": false, "s3": true, "other": false} {
		got, err := reg.IsRevoked(ctx, sid)
		if err != nil {
			t.Fatalf("IsRevoked %s failed: %v", sid, err)
		}
		if got != want {
			t.Fatalf("session %s: expected revoked=%v, got %v", sid, want, got)
		}
	}

	// Second sweep is a no-op.
	revoked, err = reg.RevokeAllExcept(ctx, "u1", "s2")
	if err != nil || len(revoked) != 0 {
		t.Fatalf("expected empty second sweep, got %v %v", revoked, err)
	}
}

func TestIsRevokedMissingSession(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()

	if _, err := reg.IsRevoked(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordsAgeOutWithLifetime(t *testing.T) {
	reg, mr, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	if err := reg.Save(ctx, testRecord("s1", "u1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := reg.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected aged out record, got %v", err)
	}
	ids, err := reg.ActiveSessionIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("ActiveSessionIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty index after aging, got %v", ids)
	}
}

func TestActiveSessionIDs(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	ids, err := reg.ActiveSessionIDs(ctx, "u1")
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected empty list, got %v %v", ids, err)
	}

	for _, sid := range []string{"s1", "s2"} {
		if err := reg.Save(ctx, testRecord(sid, "u1")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	ids, err = reg.ActiveSessionIDs(ctx, "u1")
	if err != nil || len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v %v", ids, err)
	}
}

func TestRecordActive(t *testing.T) {
	now := time.Now()
	rec := &Record{ExpiresAt: now.Add(time.Minute)}
	if !rec.Active(now) {
		t.Fatal("expected live record to be active")
	}
	rec.Revoked = true
	if rec.Active(now) {
		t.Fatal("expected revoked record to be inactive")
	}
	rec.Revoked = false
	if rec.Active(now.Add(2 * time.Minute)) {
		t.Fatal("expected expired record to be inactive")
	}
	var nilRec *Record
	if nilRec.Active(now) {
		t.Fatal("expected nil record to be inactive")
	}
}
