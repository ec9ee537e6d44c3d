package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementLightState = "light_state"
	MeasurementBLELink    = "ble_link"
)

// WriteLightState records the state a light was commanded to.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteLightState("halomqtt_1_3", 128, 2700)
func (c *Client) WriteLightState(deviceTag string, brightness uint8, kelvin uint32) {
	c.WritePoint(MeasurementLightState,
		map[string]string{"device": deviceTag},
		map[string]any{
			"brightness": int64(brightness),
			"kelvin":     int64(kelvin),
		},
	)
}

// WriteLink records a BLE link coming up or going down.
//
// Parameters:
//   - transportID: Radio transport identifier of the fixture
//   - connected: true on connect, false on disconnect
//   - connectCount: Successful connects so far for this transport
func (c *Client) WriteLink(transportID string, connected bool, connectCount uint32) {
	c.WritePoint(MeasurementBLELink,
		map[string]string{"transport_id": transportID},
		map[string]any{
			"connected":     connected,
			"connect_count": int64(connectCount),
		},
	)
}

// WritePoint writes a custom point stamped with the current time.
// It is a no-op on a nil or closed client.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.WritePointWithTime(measurement, tags, fields, c.now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
