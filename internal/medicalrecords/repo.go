package medicalrecords

import (
	"context"

	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	"github.com/clinicore-health/clinicore-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for medical records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MedicalRecord, error)
	List(ctx context.Context, params listRecordsParams) ([]models.MedicalRecord, *pagination.Cursor, error)
	Save(ctx context.Context, record *models.MedicalRecord) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a medical records repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listRecordsParams struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, record *models.MedicalRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.MedicalRecord, error) {
	var record models.MedicalRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listRecordsParams) ([]models.MedicalRecord, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.MedicalRecord{})
	if params.PatientID != nil {
		query = query.Where("patient_id = ?", *params.PatientID)
	}
	if params.DoctorID != nil {
		query = query.Where("doctor_id = ?", *params.DoctorID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.MedicalRecord
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

func (r *repositoryImpl) Save(ctx context.Context, record *models.MedicalRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}
