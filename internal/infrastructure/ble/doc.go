// Package ble implements mesh.Radio on a real Bluetooth adapter using
// tinygo.org/x/bluetooth.
//
// On Linux the adapter is driven through BlueZ over D-Bus; transport
// identifiers are MAC addresses ("AA:BB:CC:DD:EE:FF"). On macOS they are
// CoreBluetooth peripheral UUIDs.
//
// Every mesh.Radio method returns immediately. Scans, connects and GATT
// discovery run on their own goroutines and report back through the event
// sink registered by Start. A connect that is cancelled by Disconnect while
// still in progress is torn down silently when it completes, so the
// coordinator never sees a late result for an attempt it already gave up on.
//
// BlueZ "not permitted" and D-Bus "access denied" errors are reported
// wrapped in mesh.ErrPermissionDenied, which stops the coordinator.
//
// # Usage
//
//	radio := ble.New(ble.Options{
//	    Adapter:      cfg.Bluetooth.Adapter,
//	    ScanDuration: cfg.Bluetooth.GetScanDuration(),
//	    Logger:       logger.With("component", "ble"),
//	})
//	coord, err := mesh.NewCoordinator(mesh.Options{Radio: radio, ...})
package ble
