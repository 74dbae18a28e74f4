package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinicore-health/clinicore-backend/pkg/config"
	"github.com/google/uuid"
)

func newTestChallengeStore(t *testing.T, kv *fakeKV) *ChallengeStore {
	t.Helper()
	store, err := NewChallengeStore(kv, fakeKeyer{}, config.OTPConfig{
		TTL:            10 * time.Minute,
		ResendCooldown: time.Minute,
		MaxAttempts:    5,
		ChangeTokenTTL: 15 * time.Minute,
		ResetCodeTTL:   30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestChallengeStoreRoundTrip(t *testing.T) {
	kv := newFakeKV()
	store := newTestChallengeStore(t, kv)
	ctx := context.Background()

	challengeID := uuid.NewString()
	original := Challenge{
		UserID:   uuid.New(),
		Email:    "patient@clinic.example",
		CodeHash: "digest",
	}
	if err := store.Create(ctx, challengeID, original); err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded, err := store.Get(ctx, challengeID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.UserID != original.UserID || loaded.Email != original.Email || loaded.CodeHash != original.CodeHash {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if loaded.CreatedAt.IsZero() {
		t.Fatal("create must stamp CreatedAt")
	}

	if err := store.Delete(ctx, challengeID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, challengeID); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestChallengeStoreUpdateNeverExtendsTTL(t *testing.T) {
	kv := newFakeKV()
	store := newTestChallengeStore(t, kv)
	ctx := context.Background()

	base := time.Now().UTC()
	store.clock = func() time.Time { return base }

	challengeID := uuid.NewString()
	if err := store.Create(ctx, challengeID, Challenge{UserID: uuid.New(), CodeHash: "digest"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := kv.ttls["otp:"+challengeID]; got != 10*time.Minute {
		t.Fatalf("expected full ttl on create, got %s", got)
	}

	loaded, err := store.Get(ctx, challengeID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// four minutes later, the rewrite carries only the remaining window
	store.clock = func() time.Time { return base.Add(4 * time.Minute) }
	loaded.Attempts = 2
	if err := store.Update(ctx, challengeID, *loaded); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := kv.ttls["otp:"+challengeID]; got != 6*time.Minute {
		t.Fatalf("expected 6m remaining, got %s", got)
	}
}

func TestChallengeStoreUpdateExpired(t *testing.T) {
	kv := newFakeKV()
	store := newTestChallengeStore(t, kv)
	ctx := context.Background()

	base := time.Now().UTC()
	store.clock = func() time.Time { return base }

	challengeID := uuid.NewString()
	if err := store.Create(ctx, challengeID, Challenge{UserID: uuid.New()}); err != nil {
		t.Fatalf("create: %v", err)
	}
	loaded, err := store.Get(ctx, challengeID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	store.clock = func() time.Time { return base.Add(11 * time.Minute) }
	if err := store.Update(ctx, challengeID, *loaded); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected not found for expired challenge, got %v", err)
	}
}

func TestMarkResendFirstCallerWins(t *testing.T) {
	kv := newFakeKV()
	store := newTestChallengeStore(t, kv)
	ctx := context.Background()

	allowed, err := store.MarkResend(ctx, "challenge-1")
	if err != nil {
		t.Fatalf("mark resend: %v", err)
	}
	if !allowed {
		t.Fatal("first resend should be allowed")
	}

	allowed, err = store.MarkResend(ctx, "challenge-1")
	if err != nil {
		t.Fatalf("mark resend: %v", err)
	}
	if allowed {
		t.Fatal("second resend inside the cooldown must be blocked")
	}

	// an unrelated challenge has its own cooldown
	allowed, err = store.MarkResend(ctx, "challenge-2")
	if err != nil {
		t.Fatalf("mark resend: %v", err)
	}
	if !allowed {
		t.Fatal("cooldowns must be per challenge")
	}
}

func TestPasswordChangeTokenSingleUse(t *testing.T) {
	kv := newFakeKV()
	store := newTestChallengeStore(t, kv)
	ctx := context.Background()
	userID := uuid.New()

	token, err := store.IssuePasswordChangeToken(ctx, userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := store.ConsumePasswordChangeToken(ctx, token)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got != userID {
		t.Fatalf("expected %s, got %s", userID, got)
	}

	if _, err := store.ConsumePasswordChangeToken(ctx, token); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected not found on replay, got %v", err)
	}
}
