package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/clinicore-health/clinicore-backend/api/responses"
	"github.com/clinicore-health/clinicore-backend/api/validators"
	"github.com/clinicore-health/clinicore-backend/internal/appointments"
	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	pkgerrors "github.com/clinicore-health/clinicore-backend/pkg/errors"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/google/uuid"
)

type createAppointmentPayload struct {
	PatientID       uuid.UUID `json:"patientId"`
	DoctorID        uuid.UUID `json:"doctorId" validate:"required"`
	PatientName     string    `json:"patientName" validate:"required,max=200"`
	DoctorName      string    `json:"doctorName" validate:"required,max=200"`
	Specialty       string    `json:"specialty" validate:"max=100"`
	AppointmentDate string    `json:"appointmentDate" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"omitempty,min=5,max=480"`
	Reason          string    `json:"reason" validate:"max=500"`
}

type updateAppointmentPayload struct {
	AppointmentDate *string `json:"appointmentDate"`
	DurationMinutes *int    `json:"durationMinutes"`
	Reason          *string `json:"reason"`
	Notes           *string `json:"notes"`
}

type updateAppointmentStatusPayload struct {
	Status int `json:"status" validate:"required,min=1,max=6"`
}

func appointmentScope(r *http.Request) (appointments.Scope, error) {
	id, err := actorID(r)
	if err != nil {
		return appointments.Scope{}, err
	}
	return appointments.Scope{UserID: id, Role: actorRole(r)}, nil
}

// AppointmentsCreate books a new visit.
func AppointmentsCreate(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := appointmentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createAppointmentPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appointment, err := svc.Create(r.Context(), scope, appointments.CreateParams{
			PatientID:       body.PatientID,
			DoctorID:        body.DoctorID,
			PatientName:     body.PatientName,
			DoctorName:      body.DoctorName,
			Specialty:       body.Specialty,
			AppointmentDate: body.AppointmentDate,
			DurationMinutes: body.DurationMinutes,
			Reason:          body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, appointment)
	}
}

// AppointmentsGet returns one appointment visible to the caller.
func AppointmentsGet(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := appointmentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appointment, err := svc.Get(r.Context(), scope, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appointment)
	}
}

// AppointmentsList returns the caller's appointments.
func AppointmentsList(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := appointmentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := queryInt(r, "status")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), scope, appointments.ListParams{
			Status: status,
			Limit:  queryLimit(r),
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AppointmentsUpdate edits a booking.
func AppointmentsUpdate(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := appointmentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateAppointmentPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appointment, err := svc.Update(r.Context(), scope, id, appointments.UpdateParams{
			AppointmentDate: body.AppointmentDate,
			DurationMinutes: body.DurationMinutes,
			Reason:          body.Reason,
			Notes:           body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appointment)
	}
}

// AppointmentsUpdateStatus applies a status transition.
func AppointmentsUpdateStatus(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := appointmentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateAppointmentStatusPayload
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseAppointmentStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		appointment, err := svc.UpdateStatus(r.Context(), scope, id, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appointment)
	}
}

// AppointmentsCalendar projects the caller's appointments onto a calendar
// window. Rows with unusable legacy dates are omitted rather than failing
// the whole view.
func AppointmentsCalendar(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := appointmentScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := appointments.CalendarParams{}
		if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from"))
				return
			}
			params.From = ts
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to"))
				return
			}
			params.To = ts
		}

		events, err := svc.Calendar(r.Context(), scope, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"events": events})
	}
}
