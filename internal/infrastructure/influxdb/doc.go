// Package influxdb provides optional InfluxDB telemetry for halomqtt.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched writes and health monitoring.
//
// # Measurements
//
//   - light_state: tag device, fields brightness and kelvin, written for
//     every command the bridge applies
//   - ble_link: tag transport_id, fields connected and connect_count,
//     written when a fixture's radio link comes up or goes down
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteLightState("halomqtt_1_3", 128, 2700)
//
// A nil *Client is valid and drops every write, so callers do not need to
// branch on whether telemetry is enabled.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback wrapped in ErrWriteFailed. Connection and health check
// errors are returned directly.
package influxdb
