package users

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/clinicore-health/clinicore-backend/pkg/config"
	"github.com/clinicore-health/clinicore-backend/pkg/db"
	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	dbtypes "github.com/clinicore-health/clinicore-backend/pkg/db/types"
	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/clinicore-health/clinicore-backend/pkg/pagination"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/clinicore-health/clinicore-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const tempPasswordLength = 12

// Service defines user profile and administration operations.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, params UpdateProfileParams) (*Profile, bool, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Create(ctx context.Context, params CreateParams) (*CreateResult, error)
	AdminUpdate(ctx context.Context, id uuid.UUID, params AdminUpdateParams) (*Profile, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	RecalculateRole(ctx context.Context, id uuid.UUID) (rbac.Role, error)
	RecordLogin(ctx context.Context, id uuid.UUID) error
	SetPassword(ctx context.Context, id uuid.UUID, plaintext string, mustChange bool) error
}

type service struct {
	repo        Repository
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewService wires user dependencies.
func NewService(repo Repository, passwordCfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &service{repo: repo, passwordCfg: passwordCfg, logg: logg}, nil
}

// Profile is the API projection of a user row.
type Profile struct {
	ID                 uuid.UUID     `json:"id"`
	Email              string        `json:"email"`
	FirstName          string        `json:"firstName"`
	LastName           string        `json:"lastName"`
	Phone              *string       `json:"phone,omitempty"`
	Address            *string       `json:"address,omitempty"`
	DateOfBirth        *time.Time    `json:"dateOfBirth,omitempty"`
	Gender             *enums.Gender `json:"gender,omitempty"`
	IDNP               *string       `json:"idnp,omitempty"`
	Role               rbac.Role     `json:"role"`
	Permissions        []string      `json:"permissions"`
	IsActive           bool          `json:"isActive"`
	MustChangePassword bool          `json:"mustChangePassword"`
	LastLoginAt        *time.Time    `json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
}

// UpdateProfileParams carries the self-service editable fields.
type UpdateProfileParams struct {
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Phone       *string    `json:"phone"`
	Address     *string    `json:"address"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Gender      *string    `json:"gender"`
	IDNP        *string    `json:"idnp"`
}

// ListParams configures user listing for admins.
type ListParams struct {
	Role       string
	Search     string
	ActiveOnly bool
	Limit      int
	Cursor     string
}

// ListResult wraps returned users and the cursor for the next page.
type ListResult struct {
	Items  []Profile `json:"items"`
	Cursor string    `json:"cursor"`
}

// CreateParams carries the fields an admin supplies for a new account. The
// role payload is stored raw; the normalized role is derived from it.
type CreateParams struct {
	Email       string
	FirstName   string
	LastName    string
	Phone       *string
	RolePayload map[string]any
	Permissions []string
}

// CreateResult returns the new profile plus the generated temporary password.
type CreateResult struct {
	Profile      Profile `json:"profile"`
	TempPassword string  `json:"tempPassword"`
}

// AdminUpdateParams carries the admin-editable fields. Nil means unchanged.
type AdminUpdateParams struct {
	FirstName   *string
	LastName    *string
	Phone       *string
	IsActive    *bool
	RolePayload map[string]any
	Permissions []string
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := toProfile(user)
	return &profile, nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get user by email")
	}
	return user, nil
}

// UpdateProfile applies the self-service fields. The write is skipped when
// the incoming payload serializes identically to the stored profile, so
// repeated submits of an unchanged form do not touch the row or its role.
func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, params UpdateProfileParams) (*Profile, bool, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, false, err
	}

	var gender *enums.Gender
	if params.Gender != nil {
		parsed, err := enums.ParseGender(*params.Gender)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gender")
		}
		gender = &parsed
	}

	updated := *user
	updated.FirstName = strings.TrimSpace(params.FirstName)
	updated.LastName = strings.TrimSpace(params.LastName)
	updated.Phone = params.Phone
	updated.Address = params.Address
	updated.DateOfBirth = params.DateOfBirth
	updated.Gender = gender
	updated.IDNP = params.IDNP

	if updated.FirstName == "" || updated.LastName == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "first and last name required")
	}

	if profileFingerprint(user) == profileFingerprint(&updated) {
		profile := toProfile(user)
		return &profile, false, nil
	}

	if err := s.repo.Save(ctx, &updated); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}

	profile := toProfile(&updated)
	return &profile, true, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listUsersParams{
		Search:     params.Search,
		ActiveOnly: params.ActiveOnly,
		Limit:      params.Limit,
	}
	if params.Role != "" {
		role := rbac.Role(params.Role)
		if !role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role filter")
		}
		query.Role = &role
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}

	items := make([]Profile, 0, len(rows))
	for i := range rows {
		items = append(items, toProfile(&rows[i]))
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if strings.TrimSpace(params.FirstName) == "" || strings.TrimSpace(params.LastName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name required")
	}

	tempPassword, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate temp password")
	}
	hash, err := security.HashPassword(tempPassword, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	role := rbac.DeriveRole(params.RolePayload)
	rawPayload, err := marshalRolePayload(params.RolePayload)
	if err != nil {
		return nil, err
	}

	permissions := params.Permissions
	if len(permissions) == 0 {
		permissions = []string{rbac.PermissionAll}
	}

	user := &models.User{
		Email:              email,
		PasswordHash:       hash,
		FirstName:          strings.TrimSpace(params.FirstName),
		LastName:           strings.TrimSpace(params.LastName),
		Phone:              params.Phone,
		IsActive:           true,
		MustChangePassword: true,
		Role:               role,
		RolePayload:        rawPayload,
		Permissions:        dbtypes.StringList(permissions),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "idx_users_email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	return &CreateResult{Profile: toProfile(user), TempPassword: tempPassword}, nil
}

func (s *service) AdminUpdate(ctx context.Context, id uuid.UUID, params AdminUpdateParams) (*Profile, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.FirstName != nil {
		user.FirstName = strings.TrimSpace(*params.FirstName)
	}
	if params.LastName != nil {
		user.LastName = strings.TrimSpace(*params.LastName)
	}
	if params.Phone != nil {
		user.Phone = params.Phone
	}
	if params.IsActive != nil {
		user.IsActive = *params.IsActive
	}
	if params.Permissions != nil {
		user.Permissions = dbtypes.StringList(params.Permissions)
	}
	if params.RolePayload != nil {
		raw, err := marshalRolePayload(params.RolePayload)
		if err != nil {
			return nil, err
		}
		user.RolePayload = raw
		user.Role = rbac.DeriveRole(params.RolePayload)
	}

	if user.FirstName == "" || user.LastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name required")
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}

	profile := toProfile(user)
	return &profile, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	done, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate user")
	}
	if !done {
		return pkgerrors.New(pkgerrors.CodeNotFound, "active user not found")
	}
	return nil
}

// RecalculateRole re-derives the normalized role from the stored raw payload
// and persists it when it drifted.
func (s *service) RecalculateRole(ctx context.Context, id uuid.UUID) (rbac.Role, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return "", err
	}

	role := rbac.DeriveRoleJSON(user.RolePayload)
	if role == user.Role {
		return role, nil
	}

	user.Role = role
	if err := s.repo.Save(ctx, user); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist recalculated role")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": id.String(), "role": string(role)})
		s.logg.Info(logCtx, "users.role_recalculated")
	}
	return role, nil
}

func (s *service) RecordLogin(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetLastLogin(ctx, id, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	return nil
}

func (s *service) SetPassword(ctx context.Context, id uuid.UUID, plaintext string, mustChange bool) error {
	hash, err := security.HashPassword(plaintext, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.repo.SetPassword(ctx, id, hash, mustChange); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist password")
	}
	return nil
}

func (s *service) getUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get user")
	}
	return user, nil
}

func marshalRolePayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role payload")
	}
	return raw, nil
}

// profileFingerprint canonicalizes the editable fields for change detection.
func profileFingerprint(user *models.User) string {
	snapshot := struct {
		FirstName   string
		LastName    string
		Phone       *string
		Address     *string
		DateOfBirth *time.Time
		Gender      *enums.Gender
		IDNP        *string
	}{
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Phone:       user.Phone,
		Address:     user.Address,
		DateOfBirth: user.DateOfBirth,
		Gender:      user.Gender,
		IDNP:        user.IDNP,
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return ""
	}
	return string(raw)
}

func toProfile(user *models.User) Profile {
	permissions := []string(user.Permissions)
	if permissions == nil {
		permissions = []string{rbac.PermissionAll}
	}
	return Profile{
		ID:                 user.ID,
		Email:              user.Email,
		FirstName:          user.FirstName,
		LastName:           user.LastName,
		Phone:              user.Phone,
		Address:            user.Address,
		DateOfBirth:        user.DateOfBirth,
		Gender:             user.Gender,
		IDNP:               user.IDNP,
		Role:               user.Role,
		Permissions:        permissions,
		IsActive:           user.IsActive,
		MustChangePassword: user.MustChangePassword,
		LastLoginAt:        user.LastLoginAt,
		CreatedAt:          user.CreatedAt,
	}
}
