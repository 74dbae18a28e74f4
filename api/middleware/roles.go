package middleware

import (
	"net/http"

	"github.com/clinicore-health/clinicore-backend/api/responses"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
)

func RequireRole(role rbac.Role, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != string(role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission gates a route on the actor's permission grants. The
// request is allowed when any of the listed permissions is satisfied.
func RequirePermission(logg *logger.Logger, required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			state := rbac.AccessState{
				Authenticated: UserIDFromContext(ctx) != "",
				Role:          rbac.Role(RoleFromContext(ctx)),
				Permissions:   PermissionsFromContext(ctx),
			}
			if !rbac.Can(state, required...) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "permission required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
