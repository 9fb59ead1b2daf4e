package satellite

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSatellite: no backend is registered for the discipline.
	ErrUnknownSatellite = errors.New("unknown satellite")

	// ErrSatelliteUnavailable: the backend is registered but did not answer
	// successfully in time. Callers may retry.
	ErrSatelliteUnavailable = errors.New("satellite unavailable")
)

// UnknownSatelliteError is returned for a discipline with no registered backend.
type UnknownSatelliteError struct {
	Disciplina string
}

func (e *UnknownSatelliteError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownSatellite, e.Disciplina)
}

func (e *UnknownSatelliteError) Is(target error) bool {
	return target == ErrUnknownSatellite
}

// UnavailableError is returned when a registered backend fails. The transport
// cause is kept for logging only.
type UnavailableError struct {
	Name  string
	cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSatelliteUnavailable, e.Name)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrSatelliteUnavailable
}

// Cause returns the underlying transport error.
func (e *UnavailableError) Cause() error {
	return e.cause
}
