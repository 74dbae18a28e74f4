package medicalrecords

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
	rows     map[uuid.UUID]*models.MedicalRecord
	lastList listRecordsParams
}

func newFakeRepo(seed ...*models.MedicalRecord) *fakeRepo {
	repo := &fakeRepo{rows: map[uuid.UUID]*models.MedicalRecord{}}
	for _, row := range seed {
		repo.rows[row.ID] = row
	}
	return repo
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, record *models.MedicalRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.rows[record.ID] = record
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.MedicalRecord, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeRepo) List(ctx context.Context, params listRecordsParams) ([]models.MedicalRecord, *pagination.Cursor, error) {
	f.lastList = params
	out := make([]models.MedicalRecord, 0, len(f.rows))
	for _, row := range f.rows {
		if params.PatientID != nil && row.PatientID != *params.PatientID {
			continue
		}
		if params.DoctorID != nil && row.DoctorID != *params.DoctorID {
			continue
		}
		out = append(out, *row)
	}
	return out, nil, nil
}

func (f *fakeRepo) Save(ctx context.Context, record *models.MedicalRecord) error {
	f.rows[record.ID] = record
	return nil
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

func TestCreateCliniciansOnly(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, notifier)
	ctx := context.Background()

	_, err := svc.Create(ctx, Scope{UserID: uuid.New(), Role: rbac.RolePatient}, CreateParams{
		PatientID: uuid.New(),
		Title:     "Checkup",
	})
	assertCode(t, err, pkgerrors.CodeForbidden)

	doctorID := uuid.New()
	patientID := uuid.New()
	record, err := svc.Create(ctx, Scope{UserID: doctorID, Role: rbac.RoleDoctor}, CreateParams{
		PatientID: patientID,
		Title:     "  Checkup  ",
		Diagnosis: "all clear",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.DoctorID != doctorID {
		t.Fatal("record must carry the authoring clinician")
	}
	if record.Title != "Checkup" {
		t.Fatalf("title not trimmed: %q", record.Title)
	}
	if record.RecordDate.IsZero() {
		t.Fatal("record date must default to now")
	}

	if len(notifier.sent) != 1 || notifier.sent[0].UserID != patientID {
		t.Fatalf("expected patient notification, got %+v", notifier.sent)
	}
	if notifier.sent[0].Type != enums.NotificationTypeMedicalRecord {
		t.Fatalf("unexpected notification type %s", notifier.sent[0].Type)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), nil)
	scope := Scope{UserID: uuid.New(), Role: rbac.RoleDoctor}

	_, err := svc.Create(context.Background(), scope, CreateParams{Title: "x"})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(context.Background(), scope, CreateParams{PatientID: uuid.New(), Title: "  "})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestGetScoped(t *testing.T) {
	record := &models.MedicalRecord{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Title:     "Checkup",
	}
	svc := newTestService(t, newFakeRepo(record), nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, Scope{UserID: record.PatientID, Role: rbac.RolePatient}, record.ID); err != nil {
		t.Fatalf("patient get: %v", err)
	}
	if _, err := svc.Get(ctx, Scope{UserID: record.DoctorID, Role: rbac.RoleDoctor}, record.ID); err != nil {
		t.Fatalf("doctor get: %v", err)
	}
	if _, err := svc.Get(ctx, Scope{UserID: uuid.New(), Role: rbac.RoleAdmin}, record.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}

	_, err := svc.Get(ctx, Scope{UserID: uuid.New(), Role: rbac.RolePatient}, record.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)

	_, err = svc.Get(ctx, Scope{UserID: uuid.New(), Role: rbac.RoleDoctor}, record.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestListScopesByRole(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	patientID := uuid.New()
	if _, err := svc.List(ctx, Scope{UserID: patientID, Role: rbac.RolePatient}, ListParams{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastList.PatientID == nil || *repo.lastList.PatientID != patientID {
		t.Fatal("patient listing must be pinned to own records")
	}

	doctorID := uuid.New()
	filter := uuid.New()
	if _, err := svc.List(ctx, Scope{UserID: doctorID, Role: rbac.RoleDoctor}, ListParams{PatientID: &filter}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastList.DoctorID == nil || *repo.lastList.DoctorID != doctorID {
		t.Fatal("doctor listing must be pinned to own authorship")
	}
	if repo.lastList.PatientID == nil || *repo.lastList.PatientID != filter {
		t.Fatal("doctor patient filter must pass through")
	}

	if _, err := svc.List(ctx, Scope{UserID: uuid.New(), Role: rbac.RoleAdmin}, ListParams{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastList.PatientID != nil || repo.lastList.DoctorID != nil {
		t.Fatal("admin listing is unscoped by default")
	}
}

func TestUpdateCliniciansOnly(t *testing.T) {
	record := &models.MedicalRecord{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Title:     "Checkup",
		Diagnosis: "initial",
	}
	repo := newFakeRepo(record)
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	diag := "revised"
	_, err := svc.Update(ctx, Scope{UserID: record.PatientID, Role: rbac.RolePatient}, record.ID, UpdateParams{Diagnosis: &diag})
	assertCode(t, err, pkgerrors.CodeForbidden)

	updated, err := svc.Update(ctx, Scope{UserID: record.DoctorID, Role: rbac.RoleDoctor}, record.ID, UpdateParams{Diagnosis: &diag})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Diagnosis != "revised" {
		t.Fatalf("diagnosis not applied: %q", updated.Diagnosis)
	}
	if updated.Title != "Checkup" {
		t.Fatal("untouched fields must be preserved")
	}

	blank := "  "
	_, err = svc.Update(ctx, Scope{UserID: record.DoctorID, Role: rbac.RoleDoctor}, record.ID, UpdateParams{Title: &blank})
	assertCode(t, err, pkgerrors.CodeValidation)
}
