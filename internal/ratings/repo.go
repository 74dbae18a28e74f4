package ratings

import (
	"context"

	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes persistence helpers for doctor ratings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, rating *models.Rating) error
	GetByPair(ctx context.Context, patientID, doctorID uuid.UUID) (*models.Rating, error)
	Delete(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error)
	Aggregate(ctx context.Context, doctorID uuid.UUID) (ratingAggregate, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a ratings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type ratingAggregate struct {
	Count int64
	Sum   int64
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Upsert keeps one row per patient/doctor pair; a second rating overwrites
// the first.
func (r *repositoryImpl) Upsert(ctx context.Context, rating *models.Rating) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "patient_id"}, {Name: "doctor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "comment", "updated_at"}),
		}).
		Create(rating).Error
}

func (r *repositoryImpl) GetByPair(ctx context.Context, patientID, doctorID uuid.UUID) (*models.Rating, error) {
	var rating models.Rating
	err := r.db.WithContext(ctx).
		First(&rating, "patient_id = ? AND doctor_id = ?", patientID, doctorID).Error
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("patient_id = ? AND doctor_id = ?", patientID, doctorID).
		Delete(&models.Rating{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) Aggregate(ctx context.Context, doctorID uuid.UUID) (ratingAggregate, error) {
	var agg ratingAggregate
	err := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Select("COUNT(*) AS count, COALESCE(SUM(score), 0) AS sum").
		Where("doctor_id = ?", doctorID).
		Scan(&agg).Error
	return agg, err
}
