// Package errors carries errors across the HTTP boundary.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jdholdren/podindex/api"
	"github.com/jdholdren/podindex/internal/podindex"
)

// Error is an error with the HTTP status it should be answered with.
type Error struct {
	Status  int
	Err     error // The error this wraps
	Details []Detail
}

type Detail = api.ErrorDetail

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s, details: %v", e.Status, e.Err, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(api.Error{
		Status:      "false",
		Description: e.Err.Error(),
		Details:     e.Details,
	})
}

func (e *Error) UnmarshalJSON(byts []byte) error {
	t := api.Error{}
	if err := json.Unmarshal(byts, &t); err != nil {
		return err
	}

	e.Err = errors.New(t.Description)
	e.Details = t.Details
	return nil
}

func E(args ...any) *Error {
	ret := &Error{
		Status:  http.StatusInternalServerError,
		Err:     nil,
		Details: nil,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case int:
			ret.Status = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	return ret
}

// From coerces any error into an *Error, picking the status from the domain
// sentinel it wraps. Store failures are not described to the client.
func From(err error) *Error {
	sErr := &Error{}
	if errors.As(err, &sErr) {
		return sErr
	}
	apiErr := api.Error{}
	if errors.As(err, &apiErr) {
		return E(http.StatusBadRequest, apiErr.Description, apiErr.Details)
	}

	switch {
	case errors.Is(err, podindex.ErrInvalidInput):
		return E(http.StatusBadRequest, err)
	case errors.Is(err, podindex.ErrNotFound):
		return E(http.StatusNotFound, err)
	case errors.Is(err, podindex.ErrConflict):
		return E(http.StatusConflict, err)
	default:
		return E(http.StatusInternalServerError, "internal server error")
	}
}
