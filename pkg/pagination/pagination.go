// Package pagination implements keyset pagination over (created_at, id).
// Lists order by created_at DESC with the id as tie breaker, so the pair
// addresses exactly one row and pages stay stable while rows are inserted.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size used when the client does not ask for one.
	DefaultLimit = 20
	// MaxLimit caps a single page; larger requests are clamped, not rejected.
	MaxLimit = 100
)

// Cursor marks the first row of the next page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps a client-supplied limit into [1, MaxLimit], falling
// back to DefaultLimit when the limit is absent or negative.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer returns the normalized limit plus one sentinel row.
// Repositories fetch one row past the page to detect that a next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor serializes a cursor into an opaque URL-safe token.
func EncodeCursor(cursor Cursor) string {
	raw := strconv.FormatInt(cursor.CreatedAt.UTC().UnixNano(), 10) + ":" + cursor.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor reverses EncodeCursor. A blank token means the first page and
// decodes to a nil cursor without error.
func ParseCursor(token string) (*Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	position, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, fmt.Errorf("malformed cursor")
	}

	nanos, err := strconv.ParseInt(position, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor position: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor id: %w", err)
	}
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: parsed}, nil
}
