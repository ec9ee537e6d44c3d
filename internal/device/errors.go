package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrStateNotFound) {
//	    // fall back to the default state
//	}
var (
	// ErrStateNotFound is returned when no state is stored for a device tag.
	ErrStateNotFound = errors.New("device: state not found")

	// ErrInvalidState is returned when a light state fails validation.
	ErrInvalidState = errors.New("device: invalid state")

	// ErrInvalidCommand is returned when a command payload cannot be used.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrInvalidTag is returned for an empty device tag.
	ErrInvalidTag = errors.New("device: invalid tag")
)
