package controllers

import (
	"net/http"

	"github.com/clinicore-health/clinicore-backend/api/responses"
	"github.com/clinicore-health/clinicore-backend/api/validators"
	"github.com/clinicore-health/clinicore-backend/internal/ratings"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/google/uuid"
)

type ratePayload struct {
	DoctorID uuid.UUID `json:"doctorId" validate:"required"`
	Score    int       `json:"score" validate:"required,min=1,max=5"`
	Comment  string    `json:"comment" validate:"max=1000"`
}

// RatingsRate submits or replaces the caller's rating of a doctor.
func RatingsRate(svc ratings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !ratings.RoleCanRate(actorRole(r)) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only patients rate doctors"))
			return
		}

		var body ratePayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rating, err := svc.Rate(r.Context(), patientID, ratings.RateParams{
			DoctorID: body.DoctorID,
			Score:    body.Score,
			Comment:  body.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rating)
	}
}

// RatingsGetOwn returns the caller's rating of a doctor.
func RatingsGetOwn(svc ratings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		doctorID, err := pathUUID(r, "doctorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rating, err := svc.GetOwn(r.Context(), patientID, doctorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rating)
	}
}

// RatingsRemove withdraws the caller's rating of a doctor.
func RatingsRemove(svc ratings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		doctorID, err := pathUUID(r, "doctorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), patientID, doctorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "rating removed"})
	}
}

// RatingsSummary returns the aggregate for a doctor's profile.
func RatingsSummary(svc ratings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := pathUUID(r, "doctorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), doctorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
