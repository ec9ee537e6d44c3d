package influxdb

import "errors"

// Telemetry is optional, so callers branch on these rather than treating
// every error as fatal. Startup skips telemetry when it is switched off:
//
//	tc, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    tc = nil // influxdb.enabled is false
//	}
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false,
	// which is the default.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrConnectionFailed means the server did not answer the startup ping
	// or reported itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck once the client is closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps errors from the asynchronous write API and is
	// only ever seen by the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
