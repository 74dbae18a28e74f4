package enums

import "fmt"

// AppointmentStatus mirrors the numeric status codes used by the legacy
// scheduling system. The numeric keys are part of the wire contract.
type AppointmentStatus int

const (
	AppointmentScheduled   AppointmentStatus = 1
	AppointmentConfirmed   AppointmentStatus = 2
	AppointmentCompleted   AppointmentStatus = 3
	AppointmentCancelled   AppointmentStatus = 4
	AppointmentRescheduled AppointmentStatus = 5
	AppointmentNoShow      AppointmentStatus = 6
)

type appointmentStatusMeta struct {
	label string
	color string
}

var appointmentStatusTable = map[AppointmentStatus]appointmentStatusMeta{
	AppointmentScheduled:   {label: "Scheduled", color: "#3788d8"},
	AppointmentConfirmed:   {label: "Confirmed", color: "#2e7d32"},
	AppointmentCompleted:   {label: "Completed", color: "#546e7a"},
	AppointmentCancelled:   {label: "Cancelled", color: "#d32f2f"},
	AppointmentRescheduled: {label: "Rescheduled", color: "#f9a825"},
	AppointmentNoShow:      {label: "No Show", color: "#6d4c41"},
}

// IsValid reports whether the code is one of the six known statuses.
func (s AppointmentStatus) IsValid() bool {
	_, ok := appointmentStatusTable[s]
	return ok
}

// Label returns the display label for the status code.
func (s AppointmentStatus) Label() string {
	if meta, ok := appointmentStatusTable[s]; ok {
		return meta.label
	}
	return "Unknown"
}

// Color returns the calendar display color for the status code.
func (s AppointmentStatus) Color() string {
	if meta, ok := appointmentStatusTable[s]; ok {
		return meta.color
	}
	return "#9e9e9e"
}

// Terminal reports whether the status permits no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentCompleted || s == AppointmentCancelled || s == AppointmentNoShow
}

// ParseAppointmentStatus converts a raw code into an AppointmentStatus.
func ParseAppointmentStatus(code int) (AppointmentStatus, error) {
	status := AppointmentStatus(code)
	if !status.IsValid() {
		return 0, fmt.Errorf("invalid appointment status %d", code)
	}
	return status, nil
}
