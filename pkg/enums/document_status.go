package enums

import "fmt"

// DocumentStatus tracks the upload lifecycle of a patient document.
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusAvailable DocumentStatus = "available"
	DocumentStatusDeleted   DocumentStatus = "deleted"
)

var validDocumentStatuses = []DocumentStatus{
	DocumentStatusPending,
	DocumentStatusAvailable,
	DocumentStatusDeleted,
}

// IsValid reports whether the value is a known DocumentStatus.
func (d DocumentStatus) IsValid() bool {
	for _, candidate := range validDocumentStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDocumentStatus converts raw input into a DocumentStatus.
func ParseDocumentStatus(value string) (DocumentStatus, error) {
	for _, candidate := range validDocumentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document status %q", value)
}
