package models

import (
	"time"

	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	"github.com/google/uuid"
)

// Document is the metadata row for an uploaded patient file; the bytes live
// in object storage under ObjectKey.
type Document struct {
	ID          uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	UploadedBy  uuid.UUID            `gorm:"type:uuid;not null"`
	FileName    string               `gorm:"column:file_name;not null"`
	ContentType string               `gorm:"column:content_type;not null"`
	SizeBytes   int64                `gorm:"column:size_bytes;not null;default:0"`
	ObjectKey   string               `gorm:"column:object_key;not null;uniqueIndex"`
	Status      enums.DocumentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
