// Package device models the light state the bridge keeps for each mesh
// fixture.
//
// The mesh is fire-and-forget: fixtures never report their state, so the
// bridge's own record of the last command is the only state there is. This
// package owns that record.
//
// # Key Types
//
//   - LightState: brightness (0-255) and colour temperature (kelvin)
//   - Command: a decoded Home Assistant JSON light command
//   - Change: the brightness and/or temperature a command actually sends
//   - Registry: cached, thread-safe state per device tag, persisted through
//     a StateRepository and audited through a StateHistoryRepository
//
// # On/off inference
//
// A command that turns a light on without a brightness restores full
// brightness (255) if the light was at 0. A command that turns a light off
// without a brightness drops it to 0 if it was lit. In every other case a
// missing brightness leaves the fixture's brightness alone.
//
// # Usage
//
//	registry := device.NewRegistry(
//	    device.NewSQLiteStateRepository(db.DB),
//	    device.NewSQLiteStateHistoryRepository(db.DB),
//	)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	cmd, err := device.ParseCommand(payload)
//	state, change, err := registry.Apply(ctx, "halomqtt_4242_3", cmd)
package device
