package backend

import "errors"

var (
	// ErrUnknownProvider is returned when no variant is registered for a
	// provider name.
	ErrUnknownProvider = errors.New("unknown backend provider")
	// ErrProviderExists is returned when registering a provider name twice.
	ErrProviderExists = errors.New("backend provider already registered")
	// ErrEmptyProvider is returned when a provider name is blank.
	ErrEmptyProvider = errors.New("backend provider name cannot be empty")
	// ErrUnsupportedFollowUp is returned when a one-shot handler receives a
	// second Send. No stream is produced and the engine is not invoked.
	ErrUnsupportedFollowUp = errors.New("backend does not support follow-up turns")
)
