package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu      sync.Mutex
	data    map[string]string
	failDel map[string]error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), failDel: make(map[string]error)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if err, ok := m.failDel[key]; ok {
			return err
		}
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return fmt.Sprintf("sess:access:%s", accessID)
}

func (m *mockStore) LegacySessionKeys(userID string) []string {
	return []string{
		fmt.Sprintf("sess:user:%s", userID),
		fmt.Sprintf("sess:compat:%s", userID),
	}
}

func newTestManager(store *mockStore) *Manager {
	return &Manager{store: store, keyer: store, ttl: time.Hour}
}

func TestManagerEstablishWritesAllKeys(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	ctx := context.Background()

	token, err := manager.Establish(ctx, "access-1", "user-1")
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if token == "" {
		t.Fatal("expected opaque session token")
	}

	if stored := store.data[store.AccessSessionKey("access-1")]; stored != token {
		t.Fatalf("canonical key holds %q, want %q", stored, token)
	}
	for _, key := range store.LegacySessionKeys("user-1") {
		if stored := store.data[key]; stored != token {
			t.Fatalf("legacy key %s holds %q, want %q", key, stored, token)
		}
	}
}

func TestManagerHasSessionCanonical(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	ctx := context.Background()

	if _, err := manager.Establish(ctx, "access-1", "user-1"); err != nil {
		t.Fatalf("establish: %v", err)
	}

	ok, err := manager.HasSession(ctx, "access-1", "user-1")
	if err != nil {
		t.Fatalf("has session: %v", err)
	}
	if !ok {
		t.Fatal("expected active session")
	}

	ok, err = manager.HasSession(ctx, "other-access", "other-user")
	if err != nil {
		t.Fatalf("has session: %v", err)
	}
	if ok {
		t.Fatal("unknown access id should have no session")
	}
}

func TestManagerHasSessionLegacyFallback(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	ctx := context.Background()

	// session written before the canonical key existed
	store.data[store.LegacySessionKeys("user-1")[1]] = "legacy-token"

	ok, err := manager.HasSession(ctx, "access-1", "user-1")
	if err != nil {
		t.Fatalf("has session: %v", err)
	}
	if !ok {
		t.Fatal("legacy duplicate key should satisfy the check")
	}
}

func TestManagerRevokeClearsEverything(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	ctx := context.Background()

	if _, err := manager.Establish(ctx, "access-1", "user-1"); err != nil {
		t.Fatalf("establish: %v", err)
	}
	if err := manager.Revoke(ctx, "access-1", "user-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if len(store.data) != 0 {
		t.Fatalf("expected all session keys deleted, %d left", len(store.data))
	}
}

func TestManagerRevokeAttemptsAllKeysOnFailure(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	ctx := context.Background()

	if _, err := manager.Establish(ctx, "access-1", "user-1"); err != nil {
		t.Fatalf("establish: %v", err)
	}

	boom := errors.New("redis down")
	store.failDel[store.AccessSessionKey("access-1")] = boom

	err := manager.Revoke(ctx, "access-1", "user-1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected aggregated delete error, got %v", err)
	}

	// the legacy duplicates must be gone even though the first delete failed
	for _, key := range store.LegacySessionKeys("user-1") {
		if _, exists := store.data[key]; exists {
			t.Fatalf("legacy key %s left behind after failed canonical delete", key)
		}
	}
}
