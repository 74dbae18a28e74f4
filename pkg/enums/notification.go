package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeAppointmentReminder NotificationType = "appointment_reminder"
	NotificationTypeAppointmentUpdate   NotificationType = "appointment_update"
	NotificationTypeMedicalRecord       NotificationType = "medical_record"
	NotificationTypeDocument            NotificationType = "document"
	NotificationTypeSystemAnnouncement  NotificationType = "system_announcement"
	NotificationTypeSecurityAlert       NotificationType = "security_alert"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeAppointmentReminder,
	NotificationTypeAppointmentUpdate,
	NotificationTypeMedicalRecord,
	NotificationTypeDocument,
	NotificationTypeSystemAnnouncement,
	NotificationTypeSecurityAlert,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
