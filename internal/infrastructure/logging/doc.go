// Package logging provides structured logging for halomqtt.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the bridge.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Rotating file output via lumberjack
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "./logs/halomqtt.log"
//	    max_size: 10     # megabytes
//	    max_backups: 3
//	    max_age: 28      # days
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	defer logger.Close()
//	logger.Info("mesh ready", "devices", 4)
//
// # Security
//
// Never log the mesh passphrase, the derived key, or MQTT credentials.
package logging
