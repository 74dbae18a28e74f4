package models

import (
	"time"

	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	"github.com/google/uuid"
)

// Appointment stores a booked visit. AppointmentDate is kept as text because
// rows imported from the legacy scheduler arrive in several date formats;
// the calendar projection parses and filters them.
type Appointment struct {
	ID              uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PatientID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	DoctorID        uuid.UUID               `gorm:"type:uuid;not null;index"`
	PatientName     string                  `gorm:"column:patient_name;not null"`
	DoctorName      string                  `gorm:"column:doctor_name;not null"`
	Specialty       string                  `gorm:"column:specialty"`
	AppointmentDate string                  `gorm:"column:appointment_date;not null"`
	DurationMinutes int                     `gorm:"column:duration_minutes;not null;default:30"`
	Status          enums.AppointmentStatus `gorm:"column:status;type:smallint;not null;default:1"`
	Reason          string                  `gorm:"column:reason"`
	Notes           string                  `gorm:"column:notes;type:text"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
