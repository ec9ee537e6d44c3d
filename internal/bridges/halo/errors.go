package halo

import "errors"

// Domain-specific errors for the Halo bridge.
var (
	// ErrUnknownTopic is returned for a message outside the command namespace.
	ErrUnknownTopic = errors.New("halo: unknown topic")

	// ErrUnknownDevice is returned for a command addressed to a tag that is
	// not a fixture of the primary location.
	ErrUnknownDevice = errors.New("halo: unknown device")

	// ErrMissingDependency is returned by NewBridge when a required
	// collaborator is nil.
	ErrMissingDependency = errors.New("halo: missing dependency")
)
