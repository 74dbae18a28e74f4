package controllers

import (
	"net/http"
	"time"

	"github.com/clinicore-health/clinicore-backend/api/responses"
	"github.com/clinicore-health/clinicore-backend/api/validators"
	"github.com/clinicore-health/clinicore-backend/internal/medicalrecords"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/google/uuid"
)

type createRecordPayload struct {
	PatientID    uuid.UUID  `json:"patientId" validate:"required"`
	Title        string     `json:"title" validate:"required,max=200"`
	Diagnosis    string     `json:"diagnosis"`
	Treatment    string     `json:"treatment"`
	Prescription string     `json:"prescription"`
	Notes        string     `json:"notes"`
	RecordDate   *time.Time `json:"recordDate"`
}

type updateRecordPayload struct {
	Title        *string `json:"title"`
	Diagnosis    *string `json:"diagnosis"`
	Treatment    *string `json:"treatment"`
	Prescription *string `json:"prescription"`
	Notes        *string `json:"notes"`
}

func recordScope(r *http.Request) (medicalrecords.Scope, error) {
	id, err := actorID(r)
	if err != nil {
		return medicalrecords.Scope{}, err
	}
	return medicalrecords.Scope{UserID: id, Role: actorRole(r)}, nil
}

// MedicalRecordsCreate writes a clinical note for a patient.
func MedicalRecordsCreate(svc medicalrecords.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := recordScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRecordPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := medicalrecords.CreateParams{
			PatientID:    body.PatientID,
			Title:        body.Title,
			Diagnosis:    body.Diagnosis,
			Treatment:    body.Treatment,
			Prescription: body.Prescription,
			Notes:        body.Notes,
		}
		if body.RecordDate != nil {
			params.RecordDate = *body.RecordDate
		}

		record, err := svc.Create(r.Context(), scope, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// MedicalRecordsGet returns one record visible to the caller.
func MedicalRecordsGet(svc medicalrecords.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := recordScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Get(r.Context(), scope, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// MedicalRecordsList returns records scoped to the caller's role.
func MedicalRecordsList(svc medicalrecords.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := recordScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		patientID, err := queryUUID(r, "patientId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), scope, medicalrecords.ListParams{
			PatientID: patientID,
			Limit:     queryLimit(r),
			Cursor:    r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MedicalRecordsUpdate edits a clinical note.
func MedicalRecordsUpdate(svc medicalrecords.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := recordScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateRecordPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Update(r.Context(), scope, id, medicalrecords.UpdateParams{
			Title:        body.Title,
			Diagnosis:    body.Diagnosis,
			Treatment:    body.Treatment,
			Prescription: body.Prescription,
			Notes:        body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}
