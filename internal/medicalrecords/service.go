package medicalrecords

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/clinicore-health/clinicore-backend/internal/notifications"
	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/clinicore-health/clinicore-backend/pkg/pagination"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scope identifies the actor a query runs as.
type Scope struct {
	UserID uuid.UUID
	Role   rbac.Role
}

func (s Scope) canView(record *models.MedicalRecord) bool {
	switch s.Role {
	case rbac.RoleAdmin:
		return true
	case rbac.RoleDoctor:
		return record.DoctorID == s.UserID
	case rbac.RolePatient:
		return record.PatientID == s.UserID
	default:
		return false
	}
}

// Service defines clinical note operations. Patients read, doctors write.
type Service interface {
	Create(ctx context.Context, scope Scope, params CreateParams) (*models.MedicalRecord, error)
	Get(ctx context.Context, scope Scope, id uuid.UUID) (*models.MedicalRecord, error)
	List(ctx context.Context, scope Scope, params ListParams) (*ListResult, error)
	Update(ctx context.Context, scope Scope, id uuid.UUID, params UpdateParams) (*models.MedicalRecord, error)
}

type service struct {
	repo     Repository
	notifier notifications.Service
	logg     *logger.Logger
}

// NewService wires medical record dependencies.
func NewService(repo Repository, notifier notifications.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "medical records repository required")
	}
	return &service{repo: repo, notifier: notifier, logg: logg}, nil
}

// CreateParams carries a new clinical note.
type CreateParams struct {
	PatientID    uuid.UUID
	Title        string
	Diagnosis    string
	Treatment    string
	Prescription string
	Notes        string
	RecordDate   time.Time
}

// ListParams configures record listing.
type ListParams struct {
	PatientID *uuid.UUID
	Limit     int
	Cursor    string
}

// ListResult wraps returned records and the cursor for the next page.
type ListResult struct {
	Items  []models.MedicalRecord `json:"items"`
	Cursor string                 `json:"cursor"`
}

// UpdateParams carries the editable note fields. Nil means unchanged.
type UpdateParams struct {
	Title        *string
	Diagnosis    *string
	Treatment    *string
	Prescription *string
	Notes        *string
}

func (s *service) Create(ctx context.Context, scope Scope, params CreateParams) (*models.MedicalRecord, error) {
	if scope.Role != rbac.RoleDoctor && scope.Role != rbac.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only clinicians create records")
	}
	if params.PatientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient id required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	recordDate := params.RecordDate
	if recordDate.IsZero() {
		recordDate = time.Now().UTC()
	}

	record := &models.MedicalRecord{
		PatientID:    params.PatientID,
		DoctorID:     scope.UserID,
		Title:        strings.TrimSpace(params.Title),
		Diagnosis:    params.Diagnosis,
		Treatment:    params.Treatment,
		Prescription: params.Prescription,
		Notes:        params.Notes,
		RecordDate:   recordDate,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create record")
	}

	if s.notifier != nil {
		link := "/medical-records/" + record.ID.String()
		err := s.notifier.Notify(ctx, notifications.NotifyParams{
			UserID:  record.PatientID,
			Type:    enums.NotificationTypeMedicalRecord,
			Title:   "New medical record",
			Message: record.Title,
			Link:    &link,
		})
		if err != nil && s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"record_id": record.ID.String()})
			s.logg.Warn(logCtx, "medicalrecords.notify_failed")
		}
	}
	return record, nil
}

func (s *service) Get(ctx context.Context, scope Scope, id uuid.UUID) (*models.MedicalRecord, error) {
	return s.getScoped(ctx, scope, id)
}

func (s *service) List(ctx context.Context, scope Scope, params ListParams) (*ListResult, error) {
	query := listRecordsParams{Limit: params.Limit}
	switch scope.Role {
	case rbac.RolePatient:
		id := scope.UserID
		query.PatientID = &id
	case rbac.RoleDoctor:
		id := scope.UserID
		query.DoctorID = &id
		query.PatientID = params.PatientID
	case rbac.RoleAdmin:
		query.PatientID = params.PatientID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list records")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Update(ctx context.Context, scope Scope, id uuid.UUID, params UpdateParams) (*models.MedicalRecord, error) {
	if scope.Role != rbac.RoleDoctor && scope.Role != rbac.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only clinicians edit records")
	}
	record, err := s.getScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if params.Title != nil {
		if strings.TrimSpace(*params.Title) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
		}
		record.Title = strings.TrimSpace(*params.Title)
	}
	if params.Diagnosis != nil {
		record.Diagnosis = *params.Diagnosis
	}
	if params.Treatment != nil {
		record.Treatment = *params.Treatment
	}
	if params.Prescription != nil {
		record.Prescription = *params.Prescription
	}
	if params.Notes != nil {
		record.Notes = *params.Notes
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update record")
	}
	return record, nil
}

func (s *service) getScoped(ctx context.Context, scope Scope, id uuid.UUID) (*models.MedicalRecord, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "record id required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get record")
	}
	if !scope.canView(record) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
	}
	return record, nil
}
