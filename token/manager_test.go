package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func hs256Config() Config {
	return Config{
		TTL:           time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-signing-secret-0123456789ab"),
		Issuer:        "authkeep",
	}
}

func ed25519Config(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return Config{
		TTL:           time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authkeep",
	}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	for name, cfg := range map[string]Config{
		"hs256":   hs256Config(),
		"ed25519": ed25519Config(t),
	} {
		t.Run(name, func(t *testing.T) {
			m, err := NewManager(cfg)
			if err != nil {
				t.Fatalf("NewManager failed: %v", err)
			}

			bearer, err := m.Issue("u1", "s1")
			if err != nil {
				t.Fatalf("Issue failed: %v", err)
			}

			claims, err := m.Parse(bearer)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if claims.UID != "u1" || claims.SID != "s1" {
				t.Fatalf("unexpected claims: %+v", claims)
			}
			if claims.Issuer != "authkeep" {
				t.Fatalf("unexpected issuer: %s", claims.Issuer)
			}
		})
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	m1, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	other := hs256Config()
	other.PrivateKey = []byte("a-different-secret-0123456789abc")
	m2, err := NewManager(other)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	bearer, err := m1.Issue("u1", "s1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := m2.Parse(bearer); err == nil {
		t.Fatal("expected parse to fail under a different key")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := hs256Config()
	cfg.TTL = -time.Minute
	m, err := NewManager(Config{
		TTL:           time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    cfg.PrivateKey,
		Issuer:        cfg.Issuer,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	expired := &Manager{config: cfg}

	bearer, err := expired.Issue("u1", "s1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := m.Parse(bearer); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsCrossAlgorithmToken(t *testing.T) {
	hm, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	em, err := NewManager(ed25519Config(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	bearer, err := hm.Issue("u1", "s1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := em.Parse(bearer); err == nil {
		t.Fatal("expected hs256 token to be rejected by ed25519 manager")
	}
}

func TestParseRejectsEmptyIdentityClaims(t *testing.T) {
	m, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	bearer, err := m.Issue("", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := m.Parse(bearer); err == nil {
		t.Fatal("expected token without uid/sid to be rejected")
	}
}

func TestNewManagerValidatesConfig(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("k")}); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
	if _, err := NewManager(Config{TTL: time.Hour, SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected missing hs256 key to be rejected")
	}
	if _, err := NewManager(Config{TTL: time.Hour, SigningMethod: "rs512", PrivateKey: []byte("k")}); err == nil {
		t.Fatal("expected unknown method to be rejected")
	}
	if _, err := NewManager(Config{TTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected malformed ed25519 key to be rejected")
	}
}
