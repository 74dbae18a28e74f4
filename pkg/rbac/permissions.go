package rbac

// PermissionAll grants every capability when present in a grant list, and
// matches any non-empty grant list when requested.
const PermissionAll = "*"

// Role sentinel permissions. Requesting one of these passes when the actor's
// derived role matches, independent of the grant list contents.
const (
	PermissionRoleAdmin   = "role.admin"
	PermissionRoleDoctor  = "role.doctor"
	PermissionRolePatient = "role.patient"
)

var roleSentinels = map[string]Role{
	PermissionRoleAdmin:   RoleAdmin,
	PermissionRoleDoctor:  RoleDoctor,
	PermissionRolePatient: RolePatient,
}

// AccessState is the authenticated actor's capability snapshot as seeded by
// the auth middleware.
type AccessState struct {
	Authenticated bool
	Role          Role
	Permissions   []string
}

// Can reports whether the actor satisfies at least one of the required
// permissions. It denies outright without an authenticated actor or a grant
// list. A grant list containing PermissionAll short-circuits to allow.
func Can(state AccessState, required ...string) bool {
	if !state.Authenticated || state.Permissions == nil {
		return false
	}
	if len(required) == 0 {
		return false
	}

	for _, granted := range state.Permissions {
		if granted == PermissionAll {
			return true
		}
	}

	for _, perm := range required {
		if satisfies(state, perm) {
			return true
		}
	}
	return false
}

func satisfies(state AccessState, perm string) bool {
	for _, granted := range state.Permissions {
		if granted == perm {
			return true
		}
	}
	if role, ok := roleSentinels[perm]; ok && state.Role == role {
		return true
	}
	if perm == PermissionAll && len(state.Permissions) > 0 {
		return true
	}
	return false
}
