package service

import (
	"errors"
	"fmt"

	"github.com/tazhate/medbot/internal/domain"
)

var (
	// ErrEmptyField is returned when a required create/update field is blank.
	ErrEmptyField = errors.New("all fields are required")

	// ErrBadTimeFormat is returned for times that are not HH:MM.
	ErrBadTimeFormat = errors.New("invalid time format, use HH:MM (e.g. 08:30)")

	// ErrNotPositive is returned when days or interval hours are not positive integers.
	ErrNotPositive = errors.New("days and hours must be positive whole numbers")

	// ErrNotFound is returned when a medication id is unknown.
	ErrNotFound = errors.New("medication not found")
)

// DuplicateError reports a create attempt colliding with an existing
// (name, time) pair. Existing carries the record already registered so
// callers can surface its identity instead of failing silently.
type DuplicateError struct {
	Existing *domain.Medication
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("medication %q at %s is already registered (#%d)",
		e.Existing.Name, e.Existing.Time, e.Existing.ID)
}
