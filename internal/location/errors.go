package location

import "errors"

var (
	// ErrInvalidFile is returned when a locations file is not a JSON array.
	ErrInvalidFile = errors.New("location: invalid locations file")

	// ErrInvalidRecord wraps the reason a single location or device record
	// was skipped.
	ErrInvalidRecord = errors.New("location: invalid record")

	// ErrNoLocations is returned by Primary when no location was loaded.
	ErrNoLocations = errors.New("location: no locations configured")

	// ErrEmptyPassphrase is returned by Primary when the first location has
	// no passphrase to derive a key from.
	ErrEmptyPassphrase = errors.New("location: empty passphrase")
)
