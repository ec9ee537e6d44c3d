package ble

import (
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/halomqtt/internal/mesh"
)

var (
	// ErrNotConnected is reported when GATT discovery is requested for a
	// device without a live link.
	ErrNotConnected = errors.New("ble: device not connected")

	// ErrUnknownService is reported when characteristics are requested for
	// a service that was not discovered on the device.
	ErrUnknownService = errors.New("ble: service not discovered")

	// ErrShortWrite is returned when a characteristic accepted fewer bytes
	// than were written.
	ErrShortWrite = errors.New("ble: short write")
)

// D-Bus error names that mean the process may not use the adapter.
var permissionErrorNames = []string{
	"org.bluez.Error.NotPermitted",
	"org.bluez.Error.NotAuthorized",
	"org.freedesktop.DBus.Error.AccessDenied",
	"org.freedesktop.DBus.Error.AuthFailed",
}

// classify wraps platform permission failures in mesh.ErrPermissionDenied.
// Other errors are returned unchanged.
func classify(err error) error {
	if err == nil || errors.Is(err, mesh.ErrPermissionDenied) {
		return err
	}
	for _, name := range permissionErrorNames {
		if isDBusErrorName(err, name) {
			return fmt.Errorf("%w: %w", mesh.ErrPermissionDenied, err)
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "not permitted") ||
		strings.Contains(msg, "access denied") {
		return fmt.Errorf("%w: %w", mesh.ErrPermissionDenied, err)
	}
	return err
}

func isDBusErrorName(err error, want string) bool {
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr != nil && dbusErrPtr.Name == want {
		return true
	}

	var dbusErr dbus.Error
	return errors.As(err, &dbusErr) && dbusErr.Name == want
}

// isBenignStopScanError reports whether a StopScan error only means no
// scan was running.
func isBenignStopScanError(err error) bool {
	if err == nil {
		return true
	}
	if isDBusErrorName(err, "org.bluez.Error.NotReady") {
		return true
	}
	if isDBusErrorName(err, "org.bluez.Error.Failed") && strings.Contains(strings.ToLower(err.Error()), "no discovery started") {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cancel") ||
		strings.Contains(msg, "stopped") ||
		strings.Contains(msg, "not scanning") ||
		strings.Contains(msg, "no scan in progress")
}

// normalizeScanError drops errors a scan returns because it was stopped.
func normalizeScanError(err error) error {
	if err == nil || isBenignStopScanError(err) {
		return nil
	}
	return err
}
