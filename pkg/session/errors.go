package session

import "errors"

var (
	// ErrNoCamerasAvailable means device discovery found nothing backing
	// the requested position.
	ErrNoCamerasAvailable = errors.New("no cameras available for the requested position")

	// ErrSessionMissing means the operation requires a running capture
	// session and there is none.
	ErrSessionMissing = errors.New("capture session is missing")

	// ErrSessionAlreadyRunning guards against a duplicate Prepare.
	ErrSessionAlreadyRunning = errors.New("capture session is already running")

	// ErrInvalidOperation means the hardware rejected a reconfiguration.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUnknown means the hardware reported success but produced no
	// usable result.
	ErrUnknown = errors.New("capture produced no usable image")
)
