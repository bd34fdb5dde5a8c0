package models

import "fmt"

// The error types below cover anticipated, user-facing failure
// conditions. Consumers may display them directly instead of treating
// them as crashes. Anything else (transport failures, malformed JSON)
// surfaces as a plain wrapped error.

// APIError is returned when a vendor API envelope reports a
// non-success status. Message carries the vendor's own text verbatim.
type APIError struct {
	Site    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s said: %s", e.Site, e.Message)
}

// UnavailableError is returned when the regional store has no product
// payload for the requested region.
type UnavailableError struct {
	ID string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("video %s is not available in your region", e.ID)
}

// NotFoundError is returned when a requested episode slug is not
// present in the programme's episode list.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("video %s does not exist", e.ID)
}

// StreamUnavailableError is returned when the licensing endpoint
// returns no usable manifest reference.
type StreamUnavailableError struct {
	ID string
}

func (e *StreamUnavailableError) Error() string {
	return fmt.Sprintf("cannot get stream info for %s", e.ID)
}

// DRMError is returned when a manifest is present but format
// extraction yields nothing and a DRM token accompanies the response.
type DRMError struct {
	ID string
}

func (e *DRMError) Error() string {
	return fmt.Sprintf("video %s is DRM protected", e.ID)
}
