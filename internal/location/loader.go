package location

import (
	"encoding/json"
	"fmt"
	"os"
)

// maxDeviceID is the largest device id the protocol can address.
const maxDeviceID = 255

// LoadLocations reads and parses a locations file.
//
// Parameters:
//   - path: Path to the JSON array exported from the Halo account
//
// Returns:
//   - *File: Loaded locations, with any skipped records listed
//   - error: If the file cannot be read or is not a JSON array
func LoadLocations(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading locations file: %w", err)
	}
	return ParseLocations(data)
}

// ParseLocations parses the JSON form of a locations file:
//
//	[{"id": 1, "name": "Home", "passphrase": "...",
//	  "devices": [{"did": 3, "mac": "...", "name": "Kitchen", "pid": "..."}]}]
//
// Records that are not objects or whose fields have the wrong type are
// skipped. Devices with an id above 255 are skipped.
func ParseLocations(data []byte) (*File, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	f := &File{}
	for i, raw := range records {
		loc, skipped, err := parseLocation(raw)
		if err != nil {
			f.Skipped = append(f.Skipped, fmt.Errorf("%w: location %d: %w", ErrInvalidRecord, i, err))
			continue
		}
		for _, s := range skipped {
			f.Skipped = append(f.Skipped, fmt.Errorf("location %d: %w", loc.ID, s))
		}
		f.Locations = append(f.Locations, loc)
	}
	return f, nil
}

type rawLocation struct {
	ID         uint32            `json:"id"`
	Name       string            `json:"name"`
	Passphrase string            `json:"passphrase"`
	Devices    []json.RawMessage `json:"devices"`
}

func parseLocation(raw json.RawMessage) (Location, []error, error) {
	var rl rawLocation
	if err := json.Unmarshal(raw, &rl); err != nil {
		return Location{}, nil, err
	}

	loc := Location{
		ID:         rl.ID,
		Name:       rl.Name,
		Passphrase: rl.Passphrase,
		Devices:    make([]DeviceConfig, 0, len(rl.Devices)),
	}

	var skipped []error
	for i, rd := range rl.Devices {
		var d DeviceConfig
		if err := json.Unmarshal(rd, &d); err != nil {
			skipped = append(skipped, fmt.Errorf("%w: device %d: %w", ErrInvalidRecord, i, err))
			continue
		}
		if d.DID > maxDeviceID {
			skipped = append(skipped, fmt.Errorf("%w: device %d: did %d out of range", ErrInvalidRecord, i, d.DID))
			continue
		}
		loc.Devices = append(loc.Devices, d)
	}
	return loc, skipped, nil
}
