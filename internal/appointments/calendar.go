package appointments

import (
	"context"
	"strings"
	"time"

	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	"github.com/clinicore-health/clinicore-backend/pkg/logger"
	"github.com/google/uuid"
)

// appointment_date rows imported from the legacy scheduler arrive in several
// formats; each candidate layout is tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04",
	"02.01.2006",
	"02/01/2006",
}

const defaultDurationMinutes = 30

// CalendarEvent is one renderable block on the calendar.
type CalendarEvent struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      int       `json:"status"`
	StatusLabel string    `json:"statusLabel"`
	Color       string    `json:"color"`
	PatientID   uuid.UUID `json:"patientId"`
	DoctorID    uuid.UUID `json:"doctorId"`
	Specialty   string    `json:"specialty,omitempty"`
}

// parseAppointmentDate resolves the stored date text against the known
// layouts. Layouts without a time component land at midnight UTC.
func parseAppointmentDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// projectCalendar converts appointment rows into calendar events. Rows whose
// date text cannot be parsed are dropped from the projection and logged; a
// bad import must not blank the whole calendar.
func projectCalendar(ctx context.Context, logg *logger.Logger, rows []models.Appointment, from, to time.Time) []CalendarEvent {
	events := make([]CalendarEvent, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		start, ok := parseAppointmentDate(row.AppointmentDate)
		if !ok {
			if logg != nil {
				logCtx := logg.WithFields(ctx, map[string]any{
					"appointment_id": row.ID.String(),
					"raw_date":       row.AppointmentDate,
				})
				logg.Warn(logCtx, "appointments.calendar.unparsable_date")
			}
			continue
		}

		if !from.IsZero() && start.Before(from) {
			continue
		}
		if !to.IsZero() && !start.Before(to) {
			continue
		}

		duration := row.DurationMinutes
		if duration <= 0 {
			duration = defaultDurationMinutes
		}

		events = append(events, CalendarEvent{
			ID:          row.ID,
			Title:       eventTitle(row),
			Start:       start,
			End:         start.Add(time.Duration(duration) * time.Minute),
			Status:      int(row.Status),
			StatusLabel: row.Status.Label(),
			Color:       row.Status.Color(),
			PatientID:   row.PatientID,
			DoctorID:    row.DoctorID,
			Specialty:   row.Specialty,
		})
	}
	return events
}

func eventTitle(row *models.Appointment) string {
	title := strings.TrimSpace(row.PatientName)
	if doctor := strings.TrimSpace(row.DoctorName); doctor != "" {
		if title != "" {
			title += " / "
		}
		title += doctor
	}
	if title == "" {
		title = "Appointment"
	}
	return title
}
