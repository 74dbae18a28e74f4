package ratings

import (
	"context"
	"errors"
	"strings"

	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	minScore = 1
	maxScore = 5
)

// Service defines doctor rating operations. Only patients rate, one rating
// per doctor, resubmitting replaces the previous score.
type Service interface {
	Rate(ctx context.Context, patientID uuid.UUID, params RateParams) (*models.Rating, error)
	GetOwn(ctx context.Context, patientID, doctorID uuid.UUID) (*models.Rating, error)
	Remove(ctx context.Context, patientID, doctorID uuid.UUID) error
	Summary(ctx context.Context, doctorID uuid.UUID) (*Summary, error)
}

type service struct {
	repo Repository
}

// NewService wires rating dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ratings repository required")
	}
	return &service{repo: repo}, nil
}

// RateParams carries a patient's score for a doctor.
type RateParams struct {
	DoctorID uuid.UUID
	Score    int
	Comment  string
}

// Summary is the aggregate a doctor's profile shows.
type Summary struct {
	DoctorID uuid.UUID       `json:"doctorId"`
	Count    int64           `json:"count"`
	Average  decimal.Decimal `json:"average"`
}

func (s *service) Rate(ctx context.Context, patientID uuid.UUID, params RateParams) (*models.Rating, error) {
	if patientID == uuid.Nil || params.DoctorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient and doctor required")
	}
	if patientID == params.DoctorID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot rate yourself")
	}
	if params.Score < minScore || params.Score > maxScore {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "score must be between 1 and 5")
	}

	rating := &models.Rating{
		PatientID: patientID,
		DoctorID:  params.DoctorID,
		Score:     params.Score,
		Comment:   strings.TrimSpace(params.Comment),
	}
	if err := s.repo.Upsert(ctx, rating); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save rating")
	}
	return rating, nil
}

func (s *service) GetOwn(ctx context.Context, patientID, doctorID uuid.UUID) (*models.Rating, error) {
	if patientID == uuid.Nil || doctorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient and doctor required")
	}
	rating, err := s.repo.GetByPair(ctx, patientID, doctorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rating not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get rating")
	}
	return rating, nil
}

func (s *service) Remove(ctx context.Context, patientID, doctorID uuid.UUID) error {
	if patientID == uuid.Nil || doctorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "patient and doctor required")
	}
	deleted, err := s.repo.Delete(ctx, patientID, doctorID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete rating")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "rating not found")
	}
	return nil
}

// Summary computes the average with decimal arithmetic so 4.35 stays 4.35
// instead of drifting through float64, rounded to two places.
func (s *service) Summary(ctx context.Context, doctorID uuid.UUID) (*Summary, error) {
	if doctorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "doctor id required")
	}
	agg, err := s.repo.Aggregate(ctx, doctorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate ratings")
	}

	average := decimal.Zero
	if agg.Count > 0 {
		average = decimal.NewFromInt(agg.Sum).
			Div(decimal.NewFromInt(agg.Count)).
			Round(2)
	}
	return &Summary{DoctorID: doctorID, Count: agg.Count, Average: average}, nil
}

// RoleCanRate reports whether the actor role is allowed to submit ratings.
func RoleCanRate(role rbac.Role) bool {
	return role == rbac.RolePatient
}
