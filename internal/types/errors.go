package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks across packages.
var (
	// ErrNotFound is returned when an id does not resolve to any indexed record.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous is returned when a partial id suffix matches more than one record.
	ErrAmbiguous = errors.New("ambiguous id")
	// ErrConflict is returned for illegal state transitions and id collisions.
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned for bad field values.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports a bad field value (empty title, priority out of
// range, unknown enum value).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is makes errors.Is(err, ErrValidation) work for wrapped values.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports an id that does not resolve to any indexed record.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("issue %s not found", e.ID)
}

// Is makes errors.Is(err, ErrNotFound) work for wrapped values.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AmbiguousIDError reports a partial id that matches multiple records.
type AmbiguousIDError struct {
	ID      string
	Matches []string
}

func (e *AmbiguousIDError) Error() string {
	shown := e.Matches
	extra := ""
	if len(shown) > 5 {
		extra = fmt.Sprintf(" and %d more", len(shown)-5)
		shown = shown[:5]
	}
	return fmt.Sprintf("ambiguous partial id %q matches %d issues: %s%s",
		e.ID, len(e.Matches), join(shown), extra)
}

// Is makes errors.Is(err, ErrAmbiguous) work for wrapped values.
func (e *AmbiguousIDError) Is(target error) bool {
	return target == ErrAmbiguous
}

// ConflictError reports an illegal state transition, an id collision, or a
// cycle-forming dependency.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// Is makes errors.Is(err, ErrConflict) work for wrapped values.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func join(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
