//go:build !darwin

package ble

import (
	"errors"
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// parseAddress turns a MAC transport identifier into an address.
func parseAddress(id string) (bluetooth.Address, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return bluetooth.Address{}, errors.New("bluetooth address is empty")
	}

	mac, err := bluetooth.ParseMAC(strings.ToUpper(trimmed))
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("invalid bluetooth address %q: %w", trimmed, err)
	}

	return bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, nil
}
