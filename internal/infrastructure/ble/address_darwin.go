//go:build darwin

package ble

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"tinygo.org/x/bluetooth"
)

// parseAddress turns a CoreBluetooth peripheral UUID into an address.
func parseAddress(id string) (bluetooth.Address, error) {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("invalid peripheral id %q: %w", id, err)
	}
	return bluetooth.Address{UUID: bluetooth.NewUUID(u)}, nil
}
