package appointments

import (
	"context"
	"errors"
	"fmt"
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

// Scope identifies the actor a query runs as. Patients see their own rows,
// doctors their own schedule, admins everything.
type Scope struct {
	UserID uuid.UUID
	Role   rbac.Role
}

func (s Scope) filter() (patientID, doctorID *uuid.UUID) {
	switch s.Role {
	case rbac.RolePatient:
		id := s.UserID
		return &id, nil
	case rbac.RoleDoctor:
		id := s.UserID
		return nil, &id
	default:
		return nil, nil
	}
}

func (s Scope) canView(appointment *models.Appointment) bool {
	switch s.Role {
	case rbac.RoleAdmin:
		return true
	case rbac.RoleDoctor:
		return appointment.DoctorID == s.UserID
	case rbac.RolePatient:
		return appointment.PatientID == s.UserID
	default:
		return false
	}
}

var allowedTransitions = map[enums.AppointmentStatus][]enums.AppointmentStatus{
	enums.AppointmentScheduled:   {enums.AppointmentConfirmed, enums.AppointmentCancelled, enums.AppointmentRescheduled},
	enums.AppointmentConfirmed:   {enums.AppointmentCompleted, enums.AppointmentCancelled, enums.AppointmentNoShow, enums.AppointmentRescheduled},
	enums.AppointmentRescheduled: {enums.AppointmentConfirmed, enums.AppointmentCancelled},
}

func transitionAllowed(from, to enums.AppointmentStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Service defines appointment booking, status, and calendar operations.
type Service interface {
	Create(ctx context.Context, scope Scope, params CreateParams) (*models.Appointment, error)
	Get(ctx context.Context, scope Scope, id uuid.UUID) (*models.Appointment, error)
	List(ctx context.Context, scope Scope, params ListParams) (*ListResult, error)
	Update(ctx context.Context, scope Scope, id uuid.UUID, params UpdateParams) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, scope Scope, id uuid.UUID, status enums.AppointmentStatus) (*models.Appointment, error)
	Calendar(ctx context.Context, scope Scope, params CalendarParams) ([]CalendarEvent, error)
}

type service struct {
	repo     Repository
	notifier notifications.Service
	logg     *logger.Logger
}

// NewService wires appointment dependencies. The notifier is optional; when
// absent status changes simply go unannounced.
func NewService(repo Repository, notifier notifications.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "appointments repository required")
	}
	return &service{repo: repo, notifier: notifier, logg: logg}, nil
}

// CreateParams carries a new booking.
type CreateParams struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	PatientName     string
	DoctorName      string
	Specialty       string
	AppointmentDate string
	DurationMinutes int
	Reason          string
}

// ListParams configures appointment listing.
type ListParams struct {
	Status *int
	Limit  int
	Cursor string
}

// ListResult wraps returned appointments and the cursor for the next page.
type ListResult struct {
	Items  []models.Appointment `json:"items"`
	Cursor string               `json:"cursor"`
}

// UpdateParams carries the editable booking fields. Nil means unchanged.
type UpdateParams struct {
	AppointmentDate *string
	DurationMinutes *int
	Reason          *string
	Notes           *string
}

// CalendarParams bounds the calendar window. Zero times mean unbounded.
type CalendarParams struct {
	From time.Time
	To   time.Time
}

func (s *service) Create(ctx context.Context, scope Scope, params CreateParams) (*models.Appointment, error) {
	// Patients can only book for themselves.
	if scope.Role == rbac.RolePatient {
		params.PatientID = scope.UserID
	}
	if params.PatientID == uuid.Nil || params.DoctorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient and doctor required")
	}
	if _, ok := parseAppointmentDate(params.AppointmentDate); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unrecognized appointment date")
	}
	if params.DurationMinutes <= 0 {
		params.DurationMinutes = defaultDurationMinutes
	}

	appointment := &models.Appointment{
		PatientID:       params.PatientID,
		DoctorID:        params.DoctorID,
		PatientName:     strings.TrimSpace(params.PatientName),
		DoctorName:      strings.TrimSpace(params.DoctorName),
		Specialty:       strings.TrimSpace(params.Specialty),
		AppointmentDate: strings.TrimSpace(params.AppointmentDate),
		DurationMinutes: params.DurationMinutes,
		Status:          enums.AppointmentScheduled,
		Reason:          strings.TrimSpace(params.Reason),
	}
	if err := s.repo.Create(ctx, appointment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create appointment")
	}

	s.notify(ctx, appointment.DoctorID, appointment, enums.NotificationTypeAppointmentReminder,
		"New appointment", fmt.Sprintf("%s booked %s", appointment.PatientName, appointment.AppointmentDate))

	return appointment, nil
}

func (s *service) Get(ctx context.Context, scope Scope, id uuid.UUID) (*models.Appointment, error) {
	return s.getScoped(ctx, scope, id)
}

func (s *service) List(ctx context.Context, scope Scope, params ListParams) (*ListResult, error) {
	patientID, doctorID := scope.filter()
	query := listAppointmentsParams{
		PatientID: patientID,
		DoctorID:  doctorID,
		Limit:     params.Limit,
	}
	if params.Status != nil {
		status, err := enums.ParseAppointmentStatus(*params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &status
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list appointments")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Update(ctx context.Context, scope Scope, id uuid.UUID, params UpdateParams) (*models.Appointment, error) {
	appointment, err := s.getScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if appointment.Status.Terminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "appointment already closed")
	}

	rescheduled := false
	if params.AppointmentDate != nil && strings.TrimSpace(*params.AppointmentDate) != appointment.AppointmentDate {
		if _, ok := parseAppointmentDate(*params.AppointmentDate); !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unrecognized appointment date")
		}
		appointment.AppointmentDate = strings.TrimSpace(*params.AppointmentDate)
		rescheduled = true
	}
	if params.DurationMinutes != nil {
		if *params.DurationMinutes <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration must be positive")
		}
		appointment.DurationMinutes = *params.DurationMinutes
	}
	if params.Reason != nil {
		appointment.Reason = strings.TrimSpace(*params.Reason)
	}
	if params.Notes != nil {
		appointment.Notes = *params.Notes
	}

	// Moving a booked slot puts the row back into the rescheduled state so
	// the other party has to confirm again.
	if rescheduled && transitionAllowed(appointment.Status, enums.AppointmentRescheduled) {
		appointment.Status = enums.AppointmentRescheduled
	}

	if err := s.repo.Save(ctx, appointment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update appointment")
	}

	if rescheduled {
		s.notify(ctx, counterparty(scope, appointment), appointment, enums.NotificationTypeAppointmentUpdate,
			"Appointment rescheduled", fmt.Sprintf("Moved to %s", appointment.AppointmentDate))
	}
	return appointment, nil
}

func (s *service) UpdateStatus(ctx context.Context, scope Scope, id uuid.UUID, status enums.AppointmentStatus) (*models.Appointment, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}

	appointment, err := s.getScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if appointment.Status == status {
		return appointment, nil
	}
	if !transitionAllowed(appointment.Status, status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "status transition disallowed").
			WithDetails(map[string]any{
				"from": appointment.Status.Label(),
				"to":   status.Label(),
			})
	}

	applied, err := s.repo.UpdateStatus(ctx, id, appointment.Status, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update status")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "appointment changed concurrently")
	}
	appointment.Status = status

	s.notify(ctx, counterparty(scope, appointment), appointment, enums.NotificationTypeAppointmentUpdate,
		"Appointment "+status.Label(), fmt.Sprintf("Appointment on %s is now %s", appointment.AppointmentDate, status.Label()))

	return appointment, nil
}

func (s *service) Calendar(ctx context.Context, scope Scope, params CalendarParams) ([]CalendarEvent, error) {
	patientID, doctorID := scope.filter()
	rows, err := s.repo.ListAllFor(ctx, patientID, doctorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointments")
	}
	return projectCalendar(ctx, s.logg, rows, params.From, params.To), nil
}

func (s *service) getScoped(ctx context.Context, scope Scope, id uuid.UUID) (*models.Appointment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment id required")
	}
	appointment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get appointment")
	}
	if !scope.canView(appointment) {
		// Hidden, not forbidden: scoped actors cannot probe other rows.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
	}
	return appointment, nil
}

// counterparty picks the user to notify about a change the actor made.
func counterparty(scope Scope, appointment *models.Appointment) uuid.UUID {
	if scope.UserID == appointment.PatientID {
		return appointment.DoctorID
	}
	return appointment.PatientID
}

func (s *service) notify(ctx context.Context, userID uuid.UUID, appointment *models.Appointment, kind enums.NotificationType, title, message string) {
	if s.notifier == nil || userID == uuid.Nil {
		return
	}
	link := "/appointments/" + appointment.ID.String()
	err := s.notifier.Notify(ctx, notifications.NotifyParams{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    &link,
	})
	if err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"appointment_id": appointment.ID.String()})
		s.logg.Warn(logCtx, "appointments.notify_failed")
	}
}
