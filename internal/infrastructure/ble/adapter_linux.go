//go:build linux

package ble

import (
	"strings"

	"tinygo.org/x/bluetooth"
)

// resolveAdapter returns the named BlueZ adapter ("hci1"), or the default.
func resolveAdapter(adapterID string) *bluetooth.Adapter {
	trimmed := strings.TrimSpace(adapterID)
	if trimmed == "" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(trimmed)
}
