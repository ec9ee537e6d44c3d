//go:build !linux

package ble

import "tinygo.org/x/bluetooth"

func resolveAdapter(_ string) *bluetooth.Adapter {
	// Custom adapter IDs are only exposed via NewAdapter on Linux.
	return bluetooth.DefaultAdapter
}
