package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/clinicore-health/clinicore-backend/pkg/db/models"
	"github.com/clinicore-health/clinicore-backend/pkg/enums"
	"github.com/google/uuid"
)

func TestParseAppointmentDateLayouts(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2026-09-01T10:30:00Z", time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)},
		{"2026-09-01T10:30:00", time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)},
		{"2026-09-01 10:30:00", time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)},
		{"2026-09-01 10:30", time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)},
		{"2026-09-01", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"01.09.2026 10:30", time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)},
		{"01.09.2026", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"01/09/2026", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"  2026-09-01  ", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := parseAppointmentDate(tc.raw)
			if !ok {
				t.Fatalf("expected %q to parse", tc.raw)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("parsed %s, want %s", got, tc.want)
			}
		})
	}

	for _, raw := range []string{"", "   ", "next tuesday", "31-31-2026"} {
		if _, ok := parseAppointmentDate(raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func calendarRow(date string, status enums.AppointmentStatus) models.Appointment {
	return models.Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		PatientName:     "Ana Popescu",
		DoctorName:      "Dr. Rusu",
		AppointmentDate: date,
		DurationMinutes: 45,
		Status:          status,
	}
}

func TestProjectCalendarDropsUnparsableRows(t *testing.T) {
	rows := []models.Appointment{
		calendarRow("2026-09-01 10:30", enums.AppointmentConfirmed),
		calendarRow("garbage from the old scheduler", enums.AppointmentScheduled),
		calendarRow("2026-09-02", enums.AppointmentScheduled),
	}

	events := projectCalendar(context.Background(), nil, rows, time.Time{}, time.Time{})
	if len(events) != 2 {
		t.Fatalf("expected 2 events after dropping the bad row, got %d", len(events))
	}
	for _, event := range events {
		if event.ID == rows[1].ID {
			t.Fatal("unparsable row leaked into the projection")
		}
	}
}

func TestProjectCalendarEventShape(t *testing.T) {
	row := calendarRow("2026-09-01 10:30", enums.AppointmentConfirmed)
	events := projectCalendar(context.Background(), nil, []models.Appointment{row}, time.Time{}, time.Time{})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.Title != "Ana Popescu / Dr. Rusu" {
		t.Fatalf("unexpected title %q", event.Title)
	}
	if !event.End.Equal(event.Start.Add(45 * time.Minute)) {
		t.Fatalf("end must be start plus duration, got %s", event.End)
	}
	if event.Status != int(enums.AppointmentConfirmed) {
		t.Fatalf("unexpected status code %d", event.Status)
	}
	if event.StatusLabel != enums.AppointmentConfirmed.Label() {
		t.Fatalf("unexpected label %q", event.StatusLabel)
	}
	if event.Color != enums.AppointmentConfirmed.Color() {
		t.Fatalf("unexpected color %q", event.Color)
	}
}

func TestProjectCalendarZeroDurationFallsBack(t *testing.T) {
	row := calendarRow("2026-09-01", enums.AppointmentScheduled)
	row.DurationMinutes = 0
	events := projectCalendar(context.Background(), nil, []models.Appointment{row}, time.Time{}, time.Time{})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].End.Equal(events[0].Start.Add(defaultDurationMinutes * time.Minute)) {
		t.Fatal("zero duration must fall back to the default block size")
	}
}

func TestProjectCalendarWindow(t *testing.T) {
	rows := []models.Appointment{
		calendarRow("2026-08-31", enums.AppointmentScheduled),
		calendarRow("2026-09-01", enums.AppointmentScheduled),
		calendarRow("2026-09-02", enums.AppointmentScheduled),
		calendarRow("2026-09-03", enums.AppointmentScheduled),
	}

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	events := projectCalendar(context.Background(), nil, rows, from, to)
	if len(events) != 2 {
		t.Fatalf("expected 2 events inside [from,to), got %d", len(events))
	}
	for _, event := range events {
		if event.Start.Before(from) || !event.Start.Before(to) {
			t.Fatalf("event at %s escaped the window", event.Start)
		}
	}
}

func TestProjectCalendarFallbackTitle(t *testing.T) {
	row := calendarRow("2026-09-01", enums.AppointmentScheduled)
	row.PatientName = ""
	row.DoctorName = " "
	events := projectCalendar(context.Background(), nil, []models.Appointment{row}, time.Time{}, time.Time{})
	if len(events) != 1 || events[0].Title != "Appointment" {
		t.Fatalf("expected fallback title, got %+v", events)
	}
}
