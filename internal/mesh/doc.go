// Package mesh implements the Halo (Avi-on) BLE lighting-mesh protocol and the
// per-device connection lifecycle that drives it.
//
// The package has two halves:
//
//   - The wire protocol: DeriveKey turns a location passphrase into the shared
//     AES-128/HMAC key, EncodeFrame builds an authenticated OFB-encrypted
//     Frame, and SplitFrame cuts the serialised frame into the two 20-byte
//     characteristic writes the fixtures expect.
//   - The Coordinator: a single-goroutine event loop that owns every
//     connection entry, the reconnect backoff, the dispatch queue and the
//     one-shot "devices ready" signal.
//
// # Event loop
//
// All state is owned by the goroutine running Coordinator.Run. Radio
// completions, timer expiries and submitted commands are posted to a single
// channel and handled in order, so no field of the coordinator is guarded by a
// mutex. The Radio implementation must never block the loop: every Radio
// method returns immediately and reports completion by posting an Event.
//
// # Usage
//
//	coord, err := mesh.NewCoordinator(mesh.Options{
//	    Radio:       radio,
//	    Location:    loc,
//	    Approved:    approved,
//	    DeviceDelay: 100 * time.Millisecond,
//	    Logger:      logger.With("component", "mesh"),
//	})
//	go coord.Run(ctx)
//	coord.SetBrightness(ctx, 3, 128)
package mesh
