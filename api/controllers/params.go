package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/clinicore-health/clinicore-backend/api/middleware"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// actorID resolves the authenticated user from the request context.
func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity")
	}
	return id, nil
}

func actorRole(r *http.Request) rbac.Role {
	return rbac.Role(middleware.RoleFromContext(r.Context()))
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return &value, nil
}

func queryLimit(r *http.Request) int {
	if value, err := queryInt(r, "limit"); err == nil && value != nil {
		return *value
	}
	return 0
}

func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return &id, nil
}
