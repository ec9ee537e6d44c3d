package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/halomqtt/internal/bridges/halo"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string              `json:"timestamp"`
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Runtime       RuntimeMetrics      `json:"runtime"`
	MQTT          MQTTMetrics         `json:"mqtt"`
	Bridge        *halo.BridgeMetrics `json:"bridge,omitempty"`
	Mesh          MeshMetrics         `json:"mesh"`
	Lights        LightMetrics        `json:"lights"`
	Database      *DatabaseMetrics    `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	HeapObjects   uint64  `json:"heap_objects"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// MeshMetrics counts connection entries. Available is false when the
// coordinator did not answer.
type MeshMetrics struct {
	Available bool `json:"available"`
	Entries   int  `json:"entries"`
	Connected int  `json:"connected"`
	Ready     int  `json:"ready"`
}

// LightMetrics counts configured and stored lights.
type LightMetrics struct {
	Configured int `json:"configured"`
	Stored     int `json:"stored"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime, bridge, mesh and database metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			HeapObjects:   memStats.HeapObjects,
			NumGC:         memStats.NumGC,
		},
		Lights: LightMetrics{Stored: len(s.states.Snapshot())},
	}

	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}

	if s.bridge != nil {
		m := s.bridge.GetMetrics()
		metrics.Bridge = &m
	}

	if s.loc != nil {
		metrics.Lights.Configured = len(s.loc.Devices)
	}

	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()
	if entries, err := s.mesh.Snapshot(ctx); err == nil {
		summary := halo.Summarise(0, entries)
		metrics.Mesh = MeshMetrics{
			Available: true,
			Entries:   summary.Discovered,
			Connected: summary.Connected,
			Ready:     summary.Ready,
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
