package device

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Command is a JSON-schema light command from Home Assistant. Every field
// is optional.
type Command struct {
	State      *string  `json:"state,omitempty"`
	Brightness *int     `json:"brightness,omitempty"`
	ColorTemp  *float64 `json:"color_temp,omitempty"`
}

// ParseCommand decodes a command payload. The payload must be a JSON
// object; state must be "ON" or "OFF"; brightness is clamped to 0-255;
// color_temp must be a positive mired value.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return cmd, fmt.Errorf("%w: payload is not a JSON object", ErrInvalidCommand)
	}
	if err := json.Unmarshal(trimmed, &cmd); err != nil {
		return cmd, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	if cmd.State != nil && *cmd.State != StateOn && *cmd.State != StateOff {
		return cmd, fmt.Errorf("%w: state %q", ErrInvalidCommand, *cmd.State)
	}
	if cmd.Brightness != nil {
		b := min(max(*cmd.Brightness, 0), MaxBrightness)
		cmd.Brightness = &b
	}
	if cmd.ColorTemp != nil {
		if _, err := MiredToKelvin(*cmd.ColorTemp); err != nil {
			return cmd, err
		}
	}
	return cmd, nil
}

// Change is what a command sends to the mesh. A nil field is not sent.
type Change struct {
	Brightness *uint8
	Kelvin     *uint32
}

// Empty reports whether nothing needs sending.
func (c Change) Empty() bool {
	return c.Brightness == nil && c.Kelvin == nil
}

// Apply returns the state after cmd and the change to transmit.
//
// An explicit brightness always wins. Without one, "ON" from 0 implies 255
// and "OFF" from a lit state implies 0.
func (s LightState) Apply(cmd Command) (LightState, Change, error) {
	var change Change

	switch {
	case cmd.Brightness != nil:
		b := uint8(min(max(*cmd.Brightness, 0), MaxBrightness))
		change.Brightness = &b
	case cmd.State != nil && *cmd.State == StateOn && s.Brightness == 0:
		b := uint8(MaxBrightness)
		change.Brightness = &b
	case cmd.State != nil && *cmd.State == StateOff && s.Brightness > 0:
		b := uint8(0)
		change.Brightness = &b
	}

	if cmd.ColorTemp != nil {
		k, err := MiredToKelvin(*cmd.ColorTemp)
		if err != nil {
			return s, Change{}, err
		}
		change.Kelvin = &k
	}

	next := s
	if change.Brightness != nil {
		next.Brightness = *change.Brightness
	}
	if change.Kelvin != nil {
		next.Kelvin = *change.Kelvin
	}
	return next, change, nil
}
