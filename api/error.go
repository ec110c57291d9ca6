package api

import "fmt"

// Error is the body of every failed response.
type Error struct {
	// Status is always "false" on an error.
	Status      string        `json:"status"`
	Description string        `json:"description"`
	Details     []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Description, e.Details)
}
