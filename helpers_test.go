package authkeep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// stubCredentialStore is an in-memory CredentialStore and PasswordPolicy
// with error injection for store-failure paths.
type stubCredentialStore struct {
	mu      sync.Mutex
	records map[string]*TwoFactorRecord
	expiry  map[string]PasswordExpiry

	failNext error
	// expiryCalls counts CheckExpiry invocations for queue tests.
	expiryCalls int
	expiryErr   error
}

func newStubStore() *stubCredentialStore {
	return &stubCredentialStore{
		records: make(map[string]*TwoFactorRecord),
		expiry:  make(map[string]PasswordExpiry),
	}
}

func (s *stubCredentialStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *stubCredentialStore) GetTwoFactor(ctx context.Context, userID string) (*TwoFactorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	out := &TwoFactorRecord{
		Secret:         rec.Secret,
		Enabled:        rec.Enabled,
		RecoveryHashes: append([][32]byte(nil), rec.RecoveryHashes...),
	}
	return out, nil
}

func (s *stubCredentialStore) UpsertTwoFactor(ctx context.Context, userID string, record TwoFactorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	stored := &TwoFactorRecord{
		Secret:         record.Secret,
		Enabled:        record.Enabled,
		RecoveryHashes: append([][32]byte(nil), record.RecoveryHashes...),
	}
	s.records[userID] = stored
	return nil
}

func (s *stubCredentialStore) SetTwoFactorEnabled(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	rec, ok := s.records[userID]
	if !ok {
		return ErrCredentialNotFound
	}
	rec.Enabled = true
	return nil
}

func (s *stubCredentialStore) ConsumeRecoveryCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return false, err
	}
	rec, ok := s.records[userID]
	if !ok {
		return false, nil
	}
	for i, h := range rec.RecoveryHashes {
		if h == hash {
			rec.RecoveryHashes = append(rec.RecoveryHashes[:i], rec.RecoveryHashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubCredentialStore) CheckExpiry(ctx context.Context, userID string) (PasswordExpiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiryCalls++
	if s.expiryErr != nil {
		return PasswordExpiry{}, s.expiryErr
	}
	return s.expiry[userID], nil
}

func (s *stubCredentialStore) expiryCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiryCalls
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("test-signing-secret-0123456789ab")
	cfg.Sentinel.Interval = 10 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T) (*Engine, *stubCredentialStore, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, client := newTestRedis(t)
	store := newStubStore()

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(client).
		WithCredentialStore(store).
		WithPasswordPolicy(store).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	done := func() {
		engine.Close()
		_ = client.Close()
		mr.Close()
	}
	return engine, store, mr, done
}

// setupAndEnable walks a user through full enrollment and returns the setup
// response.
func setupAndEnable(t *testing.T, engine *Engine, userID string) *TwoFactorSetup {
	t.Helper()

	setup, err := engine.SetupTwoFactor(context.Background(), userID)
	if err != nil {
		t.Fatalf("SetupTwoFactor failed: %v", err)
	}

	code, err := engine.totp.codeAt(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("codeAt failed: %v", err)
	}
	if err := engine.EnableTwoFactor(context.Background(), userID, code); err != nil {
		t.Fatalf("EnableTwoFactor failed: %v", err)
	}
	return setup
}
