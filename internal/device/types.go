package device

import (
	"fmt"
	"math"
	"time"
)

// Light limits and defaults.
const (
	// MaxBrightness is the top of the mesh brightness range.
	MaxBrightness = 255

	// DefaultBrightness and DefaultKelvin are announced for a light that has
	// no stored state.
	DefaultBrightness uint8  = 200
	DefaultKelvin     uint32 = 5000

	// MinMireds and MaxMireds bound the colour temperature advertised to
	// Home Assistant (5000 K to 2700 K).
	MinMireds = 200
	MaxMireds = 370

	// ColorModeTemp is the only colour mode the fixtures support.
	ColorModeTemp = "color_temp"

	// StateOn and StateOff are the JSON light schema's state values.
	StateOn  = "ON"
	StateOff = "OFF"
)

// LightState is the last commanded state of one fixture.
type LightState struct {
	Brightness uint8     `json:"brightness"`
	Kelvin     uint32    `json:"kelvin"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DefaultLightState returns the state announced for an unknown light.
func DefaultLightState() LightState {
	return LightState{Brightness: DefaultBrightness, Kelvin: DefaultKelvin}
}

// On reports whether the light is lit.
func (s LightState) On() bool {
	return s.Brightness > 0
}

// Mired returns the colour temperature in mireds, rounded. A zero kelvin
// value yields 0.
func (s LightState) Mired() uint32 {
	if s.Kelvin == 0 {
		return 0
	}
	return uint32(math.Round(1_000_000 / float64(s.Kelvin)))
}

// Validate checks the state can be sent and stored.
func (s LightState) Validate() error {
	if s.Kelvin == 0 {
		return fmt.Errorf("%w: kelvin must be positive", ErrInvalidState)
	}
	return nil
}

// MiredToKelvin converts a mired value to kelvin, rounded.
func MiredToKelvin(mired float64) (uint32, error) {
	if mired <= 0 || math.IsNaN(mired) || math.IsInf(mired, 0) {
		return 0, fmt.Errorf("%w: color_temp %v", ErrInvalidCommand, mired)
	}
	k := math.Round(1_000_000 / mired)
	if k > math.MaxUint32 {
		return 0, fmt.Errorf("%w: color_temp %v", ErrInvalidCommand, mired)
	}
	return uint32(k), nil
}

// StatePayload is the JSON published on a light's state topic.
type StatePayload struct {
	State      string `json:"state"`
	ColorTemp  uint32 `json:"color_temp"`
	Brightness uint8  `json:"brightness"`
	ColorMode  string `json:"color_mode"`
}

// Payload renders s for the state topic.
func (s LightState) Payload() StatePayload {
	state := StateOff
	if s.On() {
		state = StateOn
	}
	return StatePayload{
		State:      state,
		ColorTemp:  s.Mired(),
		Brightness: s.Brightness,
		ColorMode:  ColorModeTemp,
	}
}
