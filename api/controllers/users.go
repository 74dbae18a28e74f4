package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/clinicore-health/clinicore-backend/api/responses"
	"github.com/clinicore-health/clinicore-backend/api/validators"
	"github.com/clinicore-health/clinicore-backend/internal/users"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
)

type updateProfilePayload struct {
	FirstName   string     `json:"firstName" validate:"required,max=100"`
	LastName    string     `json:"lastName" validate:"required,max=100"`
	Phone       *string    `json:"phone"`
	Address     *string    `json:"address"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Gender      *string    `json:"gender"`
	IDNP        *string    `json:"idnp"`
}

type createUserPayload struct {
	Email       string         `json:"email" validate:"required,email"`
	FirstName   string         `json:"firstName" validate:"required,max=100"`
	LastName    string         `json:"lastName" validate:"required,max=100"`
	Phone       *string        `json:"phone"`
	RolePayload map[string]any `json:"rolePayload"`
	Permissions []string       `json:"permissions"`
}

type adminUpdateUserPayload struct {
	FirstName   *string        `json:"firstName"`
	LastName    *string        `json:"lastName"`
	Phone       *string        `json:"phone"`
	IsActive    *bool          `json:"isActive"`
	RolePayload map[string]any `json:"rolePayload"`
	Permissions []string       `json:"permissions"`
}

// UsersMe returns the caller's profile.
func UsersMe(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// UsersUpdateMe applies the self-service profile fields.
func UsersUpdateMe(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProfilePayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, changed, err := svc.UpdateProfile(r.Context(), id, users.UpdateProfileParams{
			FirstName:   body.FirstName,
			LastName:    body.LastName,
			Phone:       body.Phone,
			Address:     body.Address,
			DateOfBirth: body.DateOfBirth,
			Gender:      body.Gender,
			IDNP:        body.IDNP,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"profile": profile, "changed": changed})
	}
}

// UsersList returns users for admins, filterable by role and search text.
func UsersList(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.List(r.Context(), users.ListParams{
			Role:       strings.TrimSpace(r.URL.Query().Get("role")),
			Search:     r.URL.Query().Get("search"),
			ActiveOnly: r.URL.Query().Get("active") == "true",
			Limit:      queryLimit(r),
			Cursor:     r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// UsersCreate provisions an account with a temporary password.
func UsersCreate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createUserPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), users.CreateParams{
			Email:       body.Email,
			FirstName:   body.FirstName,
			LastName:    body.LastName,
			Phone:       body.Phone,
			RolePayload: body.RolePayload,
			Permissions: body.Permissions,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// UsersGet returns one user for admins.
func UsersGet(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// UsersAdminUpdate applies admin-editable fields including the role payload.
func UsersAdminUpdate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body adminUpdateUserPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.AdminUpdate(r.Context(), id, users.AdminUpdateParams{
			FirstName:   body.FirstName,
			LastName:    body.LastName,
			Phone:       body.Phone,
			IsActive:    body.IsActive,
			RolePayload: body.RolePayload,
			Permissions: body.Permissions,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// UsersDeactivate retires an account without deleting its history.
func UsersDeactivate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor == id {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cannot deactivate yourself"))
			return
		}

		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "user deactivated"})
	}
}

// UsersRecalculateRole re-derives the normalized role from the stored payload.
func UsersRecalculateRole(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := svc.RecalculateRole(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"role": string(role)})
	}
}
