package appointments

import (
	"context"
	"testing"

	"github.com/clinicore-health/clinicore-backend/internal/notifications"
	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/pagination"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepo struct {
	rows    map[uuid.UUID]*models.Appointment
	saves   int
	casMiss bool
}

func newFakeRepo(seed ...*models.Appointment) *fakeRepo {
	repo := &fakeRepo{rows: map[uuid.UUID]*models.Appointment{}}
	for _, row := range seed {
		repo.rows[row.ID] = row
	}
	return repo
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, appointment *models.Appointment) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	f.rows[appointment.ID] = appointment
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeRepo) List(ctx context.Context, params listAppointmentsParams) ([]models.Appointment, *pagination.Cursor, error) {
	out := make([]models.Appointment, 0, len(f.rows))
	for _, row := range f.rows {
		if params.PatientID != nil && row.PatientID != *params.PatientID {
			continue
		}
		if params.DoctorID != nil && row.DoctorID != *params.DoctorID {
			continue
		}
		if params.Status != nil && row.Status != *params.Status {
			continue
		}
		out = append(out, *row)
	}
	return out, nil, nil
}

func (f *fakeRepo) ListAllFor(ctx context.Context, patientID, doctorID *uuid.UUID) ([]models.Appointment, error) {
	out := make([]models.Appointment, 0, len(f.rows))
	for _, row := range f.rows {
		if patientID != nil && row.PatientID != *patientID {
			continue
		}
		if doctorID != nil && row.DoctorID != *doctorID {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (f *fakeRepo) Save(ctx context.Context, appointment *models.Appointment) error {
	f.rows[appointment.ID] = appointment
	f.saves++
	return nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.AppointmentStatus) (bool, error) {
	if f.casMiss {
		return false, nil
	}
	row, ok := f.rows[id]
	if !ok || row.Status != from {
		return false, nil
	}
	row.Status = to
	return true, nil
}

type fakeNotifier struct {
	notifications.Service
	sent []notifications.NotifyParams
}

func (f *fakeNotifier) Notify(ctx context.Context, params notifications.NotifyParams) error {
	f.sent = append(f.sent, params)
	return nil
}

func newTestService(t *testing.T, repo Repository, notifier notifications.Service) Service {
	t.Helper()
	svc, err := NewService(repo, notifier, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedAppointment(status enums.AppointmentStatus) *models.Appointment {
	return &models.Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		PatientName:     "Ana Popescu",
		DoctorName:      "Dr. Rusu",
		Specialty:       "Cardiology",
		AppointmentDate: "2026-09-01 10:30",
		DurationMinutes: 45,
		Status:          status,
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func TestCreatePatientBooksForSelf(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, notifier)

	patientID := uuid.New()
	doctorID := uuid.New()
	appointment, err := svc.Create(context.Background(), Scope{UserID: patientID, Role: rbac.RolePatient}, CreateParams{
		PatientID:       uuid.New(), // spoofed, must be overridden
		DoctorID:        doctorID,
		PatientName:     "Ana Popescu",
		AppointmentDate: "2026-09-01",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if appointment.PatientID != patientID {
		t.Fatal("patient bookings must be forced onto the caller")
	}
	if appointment.Status != enums.AppointmentScheduled {
		t.Fatalf("new bookings start scheduled, got %s", appointment.Status.Label())
	}
	if appointment.DurationMinutes != defaultDurationMinutes {
		t.Fatalf("expected default duration, got %d", appointment.DurationMinutes)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected doctor notification, got %d", len(notifier.sent))
	}
	if notifier.sent[0].UserID != doctorID {
		t.Fatal("booking notification must target the doctor")
	}
	if notifier.sent[0].Type != enums.NotificationTypeAppointmentReminder {
		t.Fatalf("unexpected notification type %s", notifier.sent[0].Type)
	}
}

func TestCreateRejectsUnparsableDate(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), nil)
	_, err := svc.Create(context.Background(), Scope{UserID: uuid.New(), Role: rbac.RoleAdmin}, CreateParams{
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		AppointmentDate: "next tuesday",
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestGetScopedHidesForeignRows(t *testing.T) {
	row := seedAppointment(enums.AppointmentScheduled)
	svc := newTestService(t, newFakeRepo(row), nil)
	ctx := context.Background()

	// owner sees it
	got, err := svc.Get(ctx, Scope{UserID: row.PatientID, Role: rbac.RolePatient}, row.ID)
	if err != nil {
		t.Fatalf("get as owner: %v", err)
	}
	if got.ID != row.ID {
		t.Fatal("wrong row")
	}

	// the assigned doctor sees it
	if _, err := svc.Get(ctx, Scope{UserID: row.DoctorID, Role: rbac.RoleDoctor}, row.ID); err != nil {
		t.Fatalf("get as doctor: %v", err)
	}

	// an unrelated patient gets not-found, not forbidden
	_, err = svc.Get(ctx, Scope{UserID: uuid.New(), Role: rbac.RolePatient}, row.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)

	// admins see everything
	if _, err := svc.Get(ctx, Scope{UserID: uuid.New(), Role: rbac.RoleAdmin}, row.ID); err != nil {
		t.Fatalf("get as admin: %v", err)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    enums.AppointmentStatus
		to      enums.AppointmentStatus
		allowed bool
	}{
		{"scheduled to confirmed", enums.AppointmentScheduled, enums.AppointmentConfirmed, true},
		{"scheduled to cancelled", enums.AppointmentScheduled, enums.AppointmentCancelled, true},
		{"scheduled to rescheduled", enums.AppointmentScheduled, enums.AppointmentRescheduled, true},
		{"scheduled to completed", enums.AppointmentScheduled, enums.AppointmentCompleted, false},
		{"scheduled to no-show", enums.AppointmentScheduled, enums.AppointmentNoShow, false},
		{"confirmed to completed", enums.AppointmentConfirmed, enums.AppointmentCompleted, true},
		{"confirmed to no-show", enums.AppointmentConfirmed, enums.AppointmentNoShow, true},
		{"rescheduled to confirmed", enums.AppointmentRescheduled, enums.AppointmentConfirmed, true},
		{"rescheduled to completed", enums.AppointmentRescheduled, enums.AppointmentCompleted, false},
		{"completed is terminal", enums.AppointmentCompleted, enums.AppointmentConfirmed, false},
		{"cancelled is terminal", enums.AppointmentCancelled, enums.AppointmentConfirmed, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := seedAppointment(tc.from)
			repo := newFakeRepo(row)
			svc := newTestService(t, repo, nil)

			updated, err := svc.UpdateStatus(context.Background(), Scope{UserID: row.DoctorID, Role: rbac.RoleDoctor}, row.ID, tc.to)
			if tc.allowed {
				if err != nil {
					t.Fatalf("expected transition allowed: %v", err)
				}
				if updated.Status != tc.to {
					t.Fatalf("expected %s, got %s", tc.to.Label(), updated.Status.Label())
				}
				return
			}
			assertCode(t, err, pkgerrors.CodeStateConflict)
		})
	}
}

func TestUpdateStatusSameStatusIsNoOp(t *testing.T) {
	row := seedAppointment(enums.AppointmentConfirmed)
	repo := newFakeRepo(row)
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, notifier)

	updated, err := svc.UpdateStatus(context.Background(), Scope{UserID: row.DoctorID, Role: rbac.RoleDoctor}, row.ID, enums.AppointmentConfirmed)
	if err != nil {
		t.Fatalf("same-status update: %v", err)
	}
	if updated.Status != enums.AppointmentConfirmed {
		t.Fatalf("unexpected status %s", updated.Status.Label())
	}
	if len(notifier.sent) != 0 {
		t.Fatal("no-op must not notify")
	}
}

func TestUpdateStatusConcurrentChange(t *testing.T) {
	row := seedAppointment(enums.AppointmentScheduled)
	repo := newFakeRepo(row)
	repo.casMiss = true
	svc := newTestService(t, repo, nil)

	_, err := svc.UpdateStatus(context.Background(), Scope{UserID: row.DoctorID, Role: rbac.RoleDoctor}, row.ID, enums.AppointmentConfirmed)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestUpdateStatusNotifiesCounterparty(t *testing.T) {
	row := seedAppointment(enums.AppointmentScheduled)
	repo := newFakeRepo(row)
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, notifier)

	// doctor confirms, patient hears about it
	_, err := svc.UpdateStatus(context.Background(), Scope{UserID: row.DoctorID, Role: rbac.RoleDoctor}, row.ID, enums.AppointmentConfirmed)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].UserID != row.PatientID {
		t.Fatalf("expected patient notification, got %+v", notifier.sent)
	}
}

func TestUpdateRescheduleOnDateChange(t *testing.T) {
	row := seedAppointment(enums.AppointmentConfirmed)
	repo := newFakeRepo(row)
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, notifier)

	newDate := "2026-09-15 09:00"
	updated, err := svc.Update(context.Background(), Scope{UserID: row.PatientID, Role: rbac.RolePatient}, row.ID, UpdateParams{
		AppointmentDate: &newDate,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != enums.AppointmentRescheduled {
		t.Fatalf("date change must reschedule, got %s", updated.Status.Label())
	}
	if updated.AppointmentDate != newDate {
		t.Fatalf("date not applied: %q", updated.AppointmentDate)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].UserID != row.DoctorID {
		t.Fatal("reschedule must notify the doctor")
	}
}

func TestUpdateClosedAppointment(t *testing.T) {
	row := seedAppointment(enums.AppointmentCompleted)
	svc := newTestService(t, newFakeRepo(row), nil)

	reason := "new reason"
	_, err := svc.Update(context.Background(), Scope{UserID: row.PatientID, Role: rbac.RolePatient}, row.ID, UpdateParams{Reason: &reason})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}
