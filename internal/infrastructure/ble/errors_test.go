package ble

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/halomqtt/internal/mesh"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		permission bool
	}{
		{"nil", nil, false},
		{"bluez not permitted", dbus.Error{Name: "org.bluez.Error.NotPermitted", Body: []any{"Not Permitted"}}, true},
		{"pointer access denied", &dbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied"}, true},
		{"wrapped not authorized", fmt.Errorf("connect: %w", dbus.Error{Name: "org.bluez.Error.NotAuthorized"}), true},
		{"errno text", errors.New("socket: operation not permitted"), true},
		{"already classified", fmt.Errorf("%w: x", mesh.ErrPermissionDenied), true},
		{"bluez failed", dbus.Error{Name: "org.bluez.Error.Failed", Body: []any{"le-connection-abort-by-local"}}, false},
		{"plain", errors.New("timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if errors.Is(got, mesh.ErrPermissionDenied) != tt.permission {
				t.Errorf("classify(%v) = %v, permission = %v", tt.err, got, tt.permission)
			}
			if tt.err != nil && !strings.Contains(got.Error(), tt.err.Error()) {
				t.Errorf("classify(%v) lost the original error", tt.err)
			}
			if tt.err == nil && got != nil {
				t.Errorf("classify(nil) = %v", got)
			}
		})
	}
}

func TestIsBenignStopScanError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, true},
		{dbus.Error{Name: "org.bluez.Error.NotReady"}, true},
		{dbus.Error{Name: "org.bluez.Error.Failed", Body: []any{"No discovery started"}}, true},
		{errors.New("scan cancelled"), true},
		{errors.New("not scanning"), true},
		{dbus.Error{Name: "org.bluez.Error.Failed", Body: []any{"Resource busy"}}, false},
		{errors.New("adapter gone"), false},
	}

	for _, tt := range tests {
		if got := isBenignStopScanError(tt.err); got != tt.want {
			t.Errorf("isBenignStopScanError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	if err := normalizeScanError(errors.New("scan stopped")); err != nil {
		t.Errorf("normalizeScanError() = %v, want nil", err)
	}
}
