package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clinicore-health/clinicore-backend/pkg/config"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

// ErrChallengeNotFound marks an expired or unknown login challenge.
var ErrChallengeNotFound = errors.New("login challenge not found")

type kvStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type authKeyer interface {
	OTPChallengeKey(challengeID string) string
	OTPCooldownKey(challengeID string) string
	PasswordChangeTokenKey(token string) string
	PasswordResetCodeKey(email string) string
}

// Challenge is the pending login state parked in Redis between the password
// step and the code step. Only the code digest is stored, never the code.
type Challenge struct {
	UserID             uuid.UUID `json:"user_id"`
	Email              string    `json:"email"`
	CodeHash           string    `json:"code_hash"`
	Attempts           int       `json:"attempts"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
}

// ChallengeStore persists login challenges and the single-use tokens that
// follow them.
type ChallengeStore struct {
	kv    kvStore
	keys  authKeyer
	cfg   config.OTPConfig
	clock func() time.Time
}

// NewChallengeStore builds a Redis-backed challenge store.
func NewChallengeStore(kv kvStore, keys authKeyer, cfg config.OTPConfig) (*ChallengeStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("kv store is required")
	}
	if keys == nil {
		return nil, fmt.Errorf("keyer is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("otp ttl must be positive")
	}
	return &ChallengeStore{kv: kv, keys: keys, cfg: cfg, clock: time.Now}, nil
}

// Create parks a new challenge under the caller-chosen identifier. The code
// digest is bound to that identifier, so the service picks the ID first.
func (s *ChallengeStore) Create(ctx context.Context, challengeID string, challenge Challenge) error {
	challenge.CreatedAt = s.clock().UTC()
	return s.write(ctx, challengeID, challenge, s.cfg.TTL)
}

// Get loads a pending challenge.
func (s *ChallengeStore) Get(ctx context.Context, challengeID string) (*Challenge, error) {
	raw, err := s.kv.Get(ctx, s.keys.OTPChallengeKey(challengeID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	var challenge Challenge
	if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
		return nil, fmt.Errorf("decoding challenge: %w", err)
	}
	return &challenge, nil
}

// Update rewrites the challenge with the remaining TTL window. The TTL is
// not extended; a challenge lives at most its original window regardless of
// attempts or resends.
func (s *ChallengeStore) Update(ctx context.Context, challengeID string, challenge Challenge) error {
	age := s.clock().UTC().Sub(challenge.CreatedAt)
	remaining := s.cfg.TTL - age
	if remaining <= 0 {
		return ErrChallengeNotFound
	}
	return s.write(ctx, challengeID, challenge, remaining)
}

// Delete discards a challenge after a successful or abandoned verification.
func (s *ChallengeStore) Delete(ctx context.Context, challengeID string) error {
	return s.kv.Del(ctx, s.keys.OTPChallengeKey(challengeID))
}

// MarkResend reports whether a resend is allowed right now. The first caller
// inside the window wins; later callers are inside the cooldown.
func (s *ChallengeStore) MarkResend(ctx context.Context, challengeID string) (bool, error) {
	return s.kv.SetNX(ctx, s.keys.OTPCooldownKey(challengeID), "1", s.cfg.ResendCooldown)
}

// IssuePasswordChangeToken creates the single-use token handed out when a
// verified login still requires a password change.
func (s *ChallengeStore) IssuePasswordChangeToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token := uuid.NewString()
	key := s.keys.PasswordChangeTokenKey(token)
	if err := s.kv.Set(ctx, key, userID.String(), s.cfg.ChangeTokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// ConsumePasswordChangeToken redeems the token exactly once.
func (s *ChallengeStore) ConsumePasswordChangeToken(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := s.kv.GetDel(ctx, s.keys.PasswordChangeTokenKey(token))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return uuid.Nil, ErrChallengeNotFound
		}
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decoding token subject: %w", err)
	}
	return userID, nil
}

// SaveResetCode stores the digest of a password reset code keyed by email.
func (s *ChallengeStore) SaveResetCode(ctx context.Context, email, digest string) error {
	return s.kv.Set(ctx, s.keys.PasswordResetCodeKey(email), digest, s.cfg.ResetCodeTTL)
}

// ConsumeResetCode redeems the stored digest exactly once.
func (s *ChallengeStore) ConsumeResetCode(ctx context.Context, email string) (string, error) {
	raw, err := s.kv.GetDel(ctx, s.keys.PasswordResetCodeKey(email))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", ErrChallengeNotFound
		}
		return "", err
	}
	return raw, nil
}

func (s *ChallengeStore) write(ctx context.Context, challengeID string, challenge Challenge, ttl time.Duration) error {
	raw, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("encoding challenge: %w", err)
	}
	return s.kv.Set(ctx, s.keys.OTPChallengeKey(challengeID), raw, ttl)
}
