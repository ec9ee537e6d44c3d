// Package halo implements the MQTT side of halomqtt.
//
// The bridge announces every fixture of the primary location to Home
// Assistant through MQTT discovery, publishes retained light state, and turns
// JSON light commands into mesh brightness and colour-temperature commands.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐
//	│ Home Assistant  │   MQTT   │   Halo Bridge   │   BLE mesh
//	│                 │◄────────►│   (this pkg)    │◄────────► Fixtures
//	└─────────────────┘          └─────────────────┘
//
// # Topics
//
// With the default prefixes a fixture tagged halomqtt_4242_3 uses:
//
//	homeassistant/light/halomqtt_4242_3/config   discovery (retained)
//	halomqtt/light/state/halomqtt_4242_3         state (retained)
//	halomqtt/light/command/halomqtt_4242_3       commands
//	halomqtt/bridge/availability                 online / offline
//	halomqtt/bridge/health                       health JSON (retained)
//
// # Lifecycle
//
// Start publishes a "starting" health report and begins periodic reporting.
// Nothing is announced until the mesh reports every expected device ready;
// the coordinator's OnDevicesReady callback calls DevicesReady. Stop removes
// the discovery configs, so the lights disappear from Home Assistant.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
package halo
