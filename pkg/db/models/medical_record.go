package models

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord is a clinical note attached to a patient by a doctor.
type MedicalRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PatientID    uuid.UUID `gorm:"type:uuid;not null;index"`
	DoctorID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Title        string    `gorm:"column:title;not null"`
	Diagnosis    string    `gorm:"column:diagnosis;type:text"`
	Treatment    string    `gorm:"column:treatment;type:text"`
	Prescription string    `gorm:"column:prescription;type:text"`
	Notes        string    `gorm:"column:notes;type:text"`
	RecordDate   time.Time `gorm:"column:record_date;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
