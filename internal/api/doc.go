// Package api implements the local HTTP status API for halomqtt.
//
// This package provides:
//   - GET /api/v1/health: liveness and MQTT connectivity
//   - GET /api/v1/devices: configured lights, their last state and the mesh
//     connection entries
//   - GET /api/v1/devices/{tag}/history: recorded state changes of one light
//   - GET /api/v1/metrics: runtime, bridge and database statistics
//   - Middleware stack (request ID, access logging, panic recovery)
//
// The API is read-only. Lights are controlled through MQTT; the API exists
// for operators and monitoring and binds to the loopback interface by
// default.
//
// # Graceful Degradation
//
// Every collaborator except the mesh status source and the state reader is
// optional. Without MQTT the health endpoint reports "degraded"; without a
// database the metrics omit pool statistics.
package api
