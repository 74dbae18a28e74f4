package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating is a patient's score for a doctor. One row per patient/doctor pair.
type Rating struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PatientID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ratings_patient_doctor"`
	DoctorID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ratings_patient_doctor;index"`
	Score     int       `gorm:"column:score;not null"`
	Comment   string    `gorm:"column:comment;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
