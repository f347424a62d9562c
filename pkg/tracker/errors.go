package tracker

import "errors"

var (
	// ErrEngineClosed is returned when operations are attempted on a stopped engine.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrEngineRunning is returned when Run is called twice.
	ErrEngineRunning = errors.New("engine is already running")

	// ErrEngineUnavailable is returned when the event loop does not answer
	// a control call in time.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrMissingDependency is returned when a required collaborator is nil.
	ErrMissingDependency = errors.New("missing dependency")
)
