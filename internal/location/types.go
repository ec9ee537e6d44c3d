package location

import "fmt"

// Location is one Halo site. The first location's passphrase seeds the mesh
// key for the whole bridge.
type Location struct {
	ID         uint32         `json:"id"`
	Name       string         `json:"name"`
	Passphrase string         `json:"passphrase"`
	Devices    []DeviceConfig `json:"devices"`
}

// DeviceConfig is a fixture's static identity. DID is the protocol address
// byte used in command payloads.
type DeviceConfig struct {
	DID  uint32 `json:"did"`
	MAC  string `json:"mac"`
	Name string `json:"name"`
	PID  string `json:"pid"`
}

// Tag returns the control-plane identifier for a device at this location,
// e.g. "halomqtt_12345_3".
func (l *Location) Tag(did uint32) string {
	return fmt.Sprintf("halomqtt_%d_%d", l.ID, did)
}

// Device returns the configured device with the given id.
func (l *Location) Device(did uint32) (DeviceConfig, bool) {
	for _, d := range l.Devices {
		if d.DID == did {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// File is the result of loading a locations file.
type File struct {
	Locations []Location

	// Skipped holds one error per record that was dropped while loading.
	Skipped []error
}

// Primary returns the first location, which carries the key material.
func (f *File) Primary() (*Location, error) {
	if f == nil || len(f.Locations) == 0 {
		return nil, ErrNoLocations
	}
	loc := &f.Locations[0]
	if loc.Passphrase == "" {
		return nil, fmt.Errorf("%w: location %d", ErrEmptyPassphrase, loc.ID)
	}
	return loc, nil
}
