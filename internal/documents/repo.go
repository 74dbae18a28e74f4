package documents

import (
	"context"

	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	"github.com/clinicore-health/clinicore-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for document metadata.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, document *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, params listDocumentsParams) ([]models.Document, *pagination.Cursor, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to enums.DocumentStatus) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a documents repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listDocumentsParams struct {
	OwnerID *uuid.UUID
	Status  *enums.DocumentStatus
	Limit   int
	Cursor  *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Create(document).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var document models.Document
	if err := r.db.WithContext(ctx).First(&document, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &document, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listDocumentsParams) ([]models.Document, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Document{})
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", string(*params.Status))
	} else {
		query = query.Where("status <> ?", string(enums.DocumentStatusDeleted))
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Document
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

// SetStatus advances the document lifecycle only from the expected state.
func (r *repositoryImpl) SetStatus(ctx context.Context, id uuid.UUID, from, to enums.DocumentStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND status = ?", id, string(from)).
		UpdateColumn("status", string(to))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
