package rbac

import (
	"encoding/json"
	"strings"
)

// Role is the normalized access role derived from an identity payload.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// DefaultRole is assumed whenever a payload carries no usable role signal.
const DefaultRole = RolePatient

var validRoles = []Role{RoleAdmin, RoleDoctor, RolePatient}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// roleFields is the ordered list of payload fields consulted for a role
// candidate. Upstream identity exports disagree on the field name, so the
// lookup is an explicit rule list rather than a single key.
var roleFields = []string{"role", "userType", "type", "user_type"}

// DeriveRole normalizes an identity payload into exactly one Role. It never
// returns anything outside the closed set; unknown or missing signals map to
// DefaultRole. The field precedence and the lenient substring matching are
// load-bearing: existing upstream systems emit every one of these shapes.
func DeriveRole(payload map[string]any) Role {
	if payload == nil {
		return DefaultRole
	}

	candidate, ok := extractCandidate(payload)
	if !ok {
		return DefaultRole
	}

	switch v := candidate.(type) {
	case string:
		return classifyString(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return classifyNumber(n)
		}
		return DefaultRole
	case float64:
		return classifyNumber(int64(v))
	case int:
		return classifyNumber(int64(v))
	case int64:
		return classifyNumber(v)
	default:
		return DefaultRole
	}
}

// DeriveRoleJSON derives a role from a raw JSON payload, tolerating malformed
// input by falling back to DefaultRole.
func DeriveRoleJSON(raw []byte) Role {
	if len(raw) == 0 {
		return DefaultRole
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return DefaultRole
	}
	return DeriveRole(payload)
}

func extractCandidate(payload map[string]any) (any, bool) {
	for _, field := range roleFields {
		if value, ok := payload[field]; ok && value != nil {
			return value, true
		}
	}
	if roles, ok := payload["roles"].([]any); ok && len(roles) > 0 {
		return roles[0], true
	}
	return nil, false
}

func classifyString(value string) Role {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.Contains(normalized, "admin") || normalized == "administrator":
		return RoleAdmin
	case strings.Contains(normalized, "doctor") || strings.Contains(normalized, "physician") || normalized == "medical":
		return RoleDoctor
	case strings.Contains(normalized, "patient") || strings.Contains(normalized, "client") || normalized == "user":
		return RolePatient
	default:
		return DefaultRole
	}
}

func classifyNumber(value int64) Role {
	switch value {
	case 1:
		return RoleAdmin
	case 2:
		return RoleDoctor
	case 3:
		return RolePatient
	default:
		return DefaultRole
	}
}
