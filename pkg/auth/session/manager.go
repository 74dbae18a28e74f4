package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clinicore-health/clinicore-backend/pkg/config"
	redisclient "github.com/clinicore-health/clinicore-backend/pkg/redis"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

const sessionTokenBytes = 32

var ErrNoSession = errors.New("no active session")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
	LegacySessionKeys(userID string) []string
}

// Manager owns the server-side session records behind issued access tokens.
// Every session is written under its canonical key plus two legacy duplicate
// keys that older clients still read; all three are treated as one unit on
// revocation.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID, userID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.SessionTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl < accessTTL {
		return nil, fmt.Errorf("session ttl (%s) must not undercut access token ttl (%s)", ttl, accessTTL)
	}

	return &Manager{
		store: client,
		keyer: client,
		ttl:   ttl,
	}, nil
}

// Establish creates the session record for the provided access ID and mirrors
// the opaque token into the legacy duplicate keys.
func (m *Manager) Establish(ctx context.Context, accessID, userID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", fmt.Errorf("access id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id is required")
	}
	token, err := generateSessionToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.keyer.AccessSessionKey(accessID), token, m.ttl); err != nil {
		return "", err
	}
	for _, key := range m.keyer.LegacySessionKeys(userID) {
		if err := m.store.Set(ctx, key, token, m.ttl); err != nil {
			return "", err
		}
	}
	return token, nil
}

// HasSession reports whether the access ID still has an active session,
// falling back to the legacy duplicate keys for sessions established before
// the canonical key existed.
func (m *Manager) HasSession(ctx context.Context, accessID, userID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	if _, err := m.store.Get(ctx, m.keyer.AccessSessionKey(accessID)); err == nil {
		return true, nil
	} else if !errors.Is(err, redislib.Nil) {
		return false, err
	}

	if strings.TrimSpace(userID) == "" {
		return false, nil
	}
	for _, key := range m.keyer.LegacySessionKeys(userID) {
		if _, err := m.store.Get(ctx, key); err == nil {
			return true, nil
		} else if !errors.Is(err, redislib.Nil) {
			return false, err
		}
	}
	return false, nil
}

// Revoke deletes the canonical session key and both legacy duplicates. Every
// key is attempted regardless of earlier failures; errors are aggregated so
// a partial Redis outage never leaves an early key undeleted silently.
func (m *Manager) Revoke(ctx context.Context, accessID, userID string) error {
	var errs error
	if strings.TrimSpace(accessID) != "" {
		errs = multierr.Append(errs, m.store.Del(ctx, m.keyer.AccessSessionKey(accessID)))
	}
	if strings.TrimSpace(userID) != "" {
		for _, key := range m.keyer.LegacySessionKeys(userID) {
			errs = multierr.Append(errs, m.store.Del(ctx, key))
		}
	}
	return errs
}

// NewAccessID produces a stable identifier used as the JWT jti/Redis key.
func NewAccessID() string {
	return uuid.NewString()
}

func generateSessionToken() (string, error) {
	bytes := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
