package domain

import "errors"

// Sentinel errors for the template pipeline. Callers branch with errors.Is.
var (
	// ErrValidation marks a structural template rule violation. Never retried;
	// the template definition must be fixed.
	ErrValidation = errors.New("validation error")

	// ErrExampleMismatch marks missing or miscounted example value sets.
	ErrExampleMismatch = errors.New("example mismatch")

	// ErrRender marks a missing required value at send time.
	ErrRender = errors.New("render error")

	// ErrNotFound marks a missing persistent record.
	ErrNotFound = errors.New("not found")

	// ErrFallbackCycle marks a fallback mapping that loops back on itself.
	ErrFallbackCycle = errors.New("fallback cycle")

	// ErrConflict marks a uniqueness or state conflict, such as registering
	// a template name that already exists.
	ErrConflict = errors.New("conflict")
)
