package ratings

import (
	"context"
	"testing"

	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type pairKey struct {
	patient uuid.UUID
	doctor  uuid.UUID
}

type fakeRepo struct {
	rows map[pairKey]*models.Rating
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[pairKey]*models.Rating{}}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Upsert(ctx context.Context, rating *models.Rating) error {
	key := pairKey{rating.PatientID, rating.DoctorID}
	if existing, ok := f.rows[key]; ok {
		existing.Score = rating.Score
		existing.Comment = rating.Comment
		*rating = *existing
		return nil
	}
	rating.ID = uuid.New()
	clone := *rating
	f.rows[key] = &clone
	return nil
}

func (f *fakeRepo) GetByPair(ctx context.Context, patientID, doctorID uuid.UUID) (*models.Rating, error) {
	rating, ok := f.rows[pairKey{patientID, doctorID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *rating
	return &clone, nil
}

func (f *fakeRepo) Delete(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	key := pairKey{patientID, doctorID}
	if _, ok := f.rows[key]; !ok {
		return false, nil
	}
	delete(f.rows, key)
	return true, nil
}

func (f *fakeRepo) Aggregate(ctx context.Context, doctorID uuid.UUID) (ratingAggregate, error) {
	var agg ratingAggregate
	for key, rating := range f.rows {
		if key.doctor != doctorID {
			continue
		}
		agg.Count++
		agg.Sum += int64(rating.Score)
	}
	return agg, nil
}

func newTestService(t *testing.T) (Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
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

func TestRateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	patientID := uuid.New()

	_, err := svc.Rate(ctx, patientID, RateParams{DoctorID: uuid.New(), Score: 0})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Rate(ctx, patientID, RateParams{DoctorID: uuid.New(), Score: 6})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Rate(ctx, patientID, RateParams{DoctorID: patientID, Score: 3})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Rate(ctx, uuid.Nil, RateParams{DoctorID: uuid.New(), Score: 3})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestRateResubmitReplaces(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	patientID := uuid.New()
	doctorID := uuid.New()

	first, err := svc.Rate(ctx, patientID, RateParams{DoctorID: doctorID, Score: 5, Comment: "great"})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}

	second, err := svc.Rate(ctx, patientID, RateParams{DoctorID: doctorID, Score: 2, Comment: " changed my mind "})
	if err != nil {
		t.Fatalf("rate again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("resubmission must replace, not add")
	}
	if second.Score != 2 || second.Comment != "changed my mind" {
		t.Fatalf("replacement not applied: %+v", second)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected a single row, got %d", len(repo.rows))
	}
}

func TestSummaryDecimalAverage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doctorID := uuid.New()

	// 5 + 4 + 4 => 13/3 = 4.33
	for _, score := range []int{5, 4, 4} {
		if _, err := svc.Rate(ctx, uuid.New(), RateParams{DoctorID: doctorID, Score: score}); err != nil {
			t.Fatalf("rate: %v", err)
		}
	}

	summary, err := svc.Summary(ctx, doctorID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 3 {
		t.Fatalf("expected 3 ratings, got %d", summary.Count)
	}
	if summary.Average.String() != "4.33" {
		t.Fatalf("expected average 4.33, got %s", summary.Average)
	}
}

func TestSummaryEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	summary, err := svc.Summary(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 0 {
		t.Fatalf("expected zero count, got %d", summary.Count)
	}
	if !summary.Average.IsZero() {
		t.Fatalf("expected zero average, got %s", summary.Average)
	}
}

func TestRemoveRating(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	patientID := uuid.New()
	doctorID := uuid.New()

	if _, err := svc.Rate(ctx, patientID, RateParams{DoctorID: doctorID, Score: 4}); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if err := svc.Remove(ctx, patientID, doctorID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err := svc.GetOwn(ctx, patientID, doctorID)
	assertCode(t, err, pkgerrors.CodeNotFound)

	err = svc.Remove(ctx, patientID, doctorID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestRoleCanRate(t *testing.T) {
	if !RoleCanRate(rbac.RolePatient) {
		t.Fatal("patients rate doctors")
	}
	if RoleCanRate(rbac.RoleDoctor) || RoleCanRate(rbac.RoleAdmin) {
		t.Fatal("only patients rate doctors")
	}
}
