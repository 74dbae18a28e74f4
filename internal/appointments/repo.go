package appointments

import (
	"context"

	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	"github.com/clinicore-health/clinicore-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for appointments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, appointment *models.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	List(ctx context.Context, params listAppointmentsParams) ([]models.Appointment, *pagination.Cursor, error)
	ListAllFor(ctx context.Context, patientID, doctorID *uuid.UUID) ([]models.Appointment, error)
	Save(ctx context.Context, appointment *models.Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.AppointmentStatus) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an appointments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listAppointmentsParams struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *enums.AppointmentStatus
	Limit     int
	Cursor    *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, appointment *models.Appointment) error {
	return r.db.WithContext(ctx).Create(appointment).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := r.db.WithContext(ctx).First(&appointment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &appointment, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listAppointmentsParams) ([]models.Appointment, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Appointment{})
	if params.PatientID != nil {
		query = query.Where("patient_id = ?", *params.PatientID)
	}
	if params.DoctorID != nil {
		query = query.Where("doctor_id = ?", *params.DoctorID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", int(*params.Status))
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Appointment
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

// ListAllFor fetches every appointment visible to the calendar projection.
// Calendar views are bounded by the clinic's caseload, not paginated.
func (r *repositoryImpl) ListAllFor(ctx context.Context, patientID, doctorID *uuid.UUID) ([]models.Appointment, error) {
	query := r.db.WithContext(ctx).Model(&models.Appointment{})
	if patientID != nil {
		query = query.Where("patient_id = ?", *patientID)
	}
	if doctorID != nil {
		query = query.Where("doctor_id = ?", *doctorID)
	}

	var rows []models.Appointment
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) Save(ctx context.Context, appointment *models.Appointment) error {
	return r.db.WithContext(ctx).Save(appointment).Error
}

// UpdateStatus applies the transition only when the row is still in the
// expected source status, so concurrent updates cannot skip a step.
func (r *repositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.AppointmentStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status = ?", id, int(from)).
		UpdateColumn("status", int(to))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
