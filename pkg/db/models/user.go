package models

import (
	"time"

	dbtypes "github.com/clinicore-health/clinicore-backend/pkg/db/types"
	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/google/uuid"
)

// User represents the canonical identity entity. RolePayload keeps the raw
// role shape delivered by the upstream identity import; Role is the
// normalized value derived from it.
type User struct {
	ID                 uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email              string             `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash       string             `gorm:"column:password_hash;not null"`
	FirstName          string             `gorm:"column:first_name;not null"`
	LastName           string             `gorm:"column:last_name;not null"`
	Phone              *string            `gorm:"column:phone"`
	Address            *string            `gorm:"column:address"`
	DateOfBirth        *time.Time         `gorm:"column:date_of_birth"`
	Gender             *enums.Gender      `gorm:"column:gender;type:text"`
	IDNP               *string            `gorm:"column:idnp"`
	IsActive           bool               `gorm:"column:is_active;not null;default:true"`
	MustChangePassword bool               `gorm:"column:must_change_password;not null;default:false"`
	Role               rbac.Role          `gorm:"column:role;type:text;not null;default:'patient'"`
	RolePayload        []byte             `gorm:"column:role_payload;type:jsonb"`
	Permissions        dbtypes.StringList `gorm:"column:permissions;type:jsonb"`
	LastLoginAt        *time.Time         `gorm:"column:last_login_at"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
