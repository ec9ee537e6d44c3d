package mesh

import "fmt"

// Command payload templates. Byte 0 carries the device id offset; the rest is
// opaque to the bridge.
var (
	brightnessTemplate = [13]byte{0x80, 0x80, 0x73, 0x00, 0x0A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	colorTempTemplate  = [13]byte{0x80, 0x80, 0x73, 0x00, 0x1D, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
)

// MaxDeviceID is the largest addressable device id.
const MaxDeviceID = 255

// BrightnessCommand builds the plaintext payload that sets device did to
// brightness (0 is off).
func BrightnessCommand(did uint32, brightness uint8) ([]byte, error) {
	if did > MaxDeviceID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDevice, did)
	}
	p := brightnessTemplate
	p[0] += byte(did)
	p[8] = brightness
	return p[:], nil
}

// ColorTemperatureCommand builds the plaintext payload that sets device did
// to the given colour temperature in kelvin. The value is sent as a
// big-endian uint16 in bytes 9-10.
func ColorTemperatureCommand(did uint32, kelvin uint16) ([]byte, error) {
	if did > MaxDeviceID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDevice, did)
	}
	p := colorTempTemplate
	p[0] += byte(did)
	p[9] += byte(kelvin >> 8)
	p[10] += byte(kelvin)
	return p[:], nil
}
