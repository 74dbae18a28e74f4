// Package types holds the wire envelopes shared by every API response.
package types

// SuccessEnvelope wraps successful payloads under a single data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-visible error body: a stable machine-readable code
// plus a human message. Details carries structured context such as the
// per-field validation map, and only for codes that allow it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError for transport.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
