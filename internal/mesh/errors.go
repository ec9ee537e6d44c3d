package mesh

import "errors"

// Domain errors for the mesh package.
var (
	// ErrNoKey is returned when a command is submitted but no location
	// passphrase was configured. Sends fail closed.
	ErrNoKey = errors.New("mesh: no key material")

	// ErrPermissionDenied is returned (wrapped) by a Radio when the platform
	// refuses access to the Bluetooth adapter. It is terminal.
	ErrPermissionDenied = errors.New("mesh: bluetooth permission denied")

	// ErrInvalidFrame is returned when a serialised frame is malformed.
	ErrInvalidFrame = errors.New("mesh: invalid frame")

	// ErrInvalidSequence is returned when a sequence number does not fit in
	// 24 bits or is zero.
	ErrInvalidSequence = errors.New("mesh: invalid sequence number")

	// ErrInvalidDevice is returned when a device id does not fit the
	// protocol's address byte.
	ErrInvalidDevice = errors.New("mesh: invalid device id")

	// ErrStopped is returned when the coordinator's event loop has exited.
	ErrStopped = errors.New("mesh: coordinator stopped")

	// ErrNoRadio is returned by NewCoordinator when Options.Radio is nil.
	ErrNoRadio = errors.New("mesh: radio is required")
)
