package mesh

import (
	"context"

	"github.com/google/uuid"
)

// ProductName is the advertised local name of every Halo fixture.
const ProductName = "Avi-on"

// GATT identifiers of the mesh service and its two write characteristics.
var (
	MeshServiceUUID = uuid.MustParse("0000fef1-0000-1000-8000-00805f9b34fb")
	LowCharUUID     = uuid.MustParse("c4edc000-9daf-11e3-8003-00025b000b00")
	HighCharUUID    = uuid.MustParse("c4edc000-9daf-11e3-8004-00025b000b00")
)

// Radio is the BLE transport the coordinator drives.
//
// Every method except Start returns immediately. Completions and failures
// are reported by posting an Event to the sink given to Start; the sink may be
// called from any goroutine.
type Radio interface {
	// Start powers up the adapter and registers the event sink. A refusal
	// by the platform wraps ErrPermissionDenied.
	Start(ctx context.Context, sink func(Event)) error

	// StartDiscovery begins a scan. Each advertisement is reported as
	// DeviceDiscovered and the end of the scan as DiscoveryFinished.
	StartDiscovery()

	// StopDiscovery ends a running scan.
	StopDiscovery()

	// Connect opens a connection. Reports Connected or ConnectFailed.
	Connect(id string)

	// DiscoverServices lists the device's services. Reports one
	// ServiceDiscovered per service, or ServiceFailed.
	DiscoverServices(id string)

	// DiscoverCharacteristics resolves the characteristics of a service.
	// Reports CharacteristicsDiscovered or ServiceFailed.
	DiscoverCharacteristics(id string, service uuid.UUID)

	// Disconnect tears down a connection or cancels a pending connect.
	// Reports Disconnected once the link is gone.
	Disconnect(id string)
}

// Characteristic is a resolved, writable GATT characteristic.
type Characteristic interface {
	UUID() uuid.UUID
	WriteWithoutResponse(p []byte) error
}

// Event is a message delivered to the coordinator's event loop.
type Event interface {
	meshEvent()
}

// DeviceDiscovered reports one advertisement seen during a scan.
type DeviceDiscovered struct {
	ID        string
	Name      string
	LowEnergy bool
}

// DiscoveryFinished reports the end of a scan. Err is non-nil if the scan
// failed.
type DiscoveryFinished struct {
	Err error
}

// Connected reports a successful low-level connect.
type Connected struct {
	ID string
}

// ConnectFailed reports a connect attempt that failed before the link came
// up.
type ConnectFailed struct {
	ID  string
	Err error
}

// Disconnected reports the loss of a link.
type Disconnected struct {
	ID string
}

// ServiceDiscovered reports one service on a connected device.
type ServiceDiscovered struct {
	ID      string
	Service uuid.UUID
}

// CharacteristicsDiscovered reports the resolved characteristics of a
// service.
type CharacteristicsDiscovered struct {
	ID              string
	Service         uuid.UUID
	Characteristics []Characteristic
}

// ServiceFailed reports a service or characteristic discovery error.
type ServiceFailed struct {
	ID  string
	Err error
}

// RadioFailed reports an adapter-level failure. Errors wrapping
// ErrPermissionDenied stop the coordinator.
type RadioFailed struct {
	Err error
}

func (DeviceDiscovered) meshEvent()          {}
func (DiscoveryFinished) meshEvent()         {}
func (Connected) meshEvent()                 {}
func (ConnectFailed) meshEvent()             {}
func (Disconnected) meshEvent()              {}
func (ServiceDiscovered) meshEvent()         {}
func (CharacteristicsDiscovered) meshEvent() {}
func (ServiceFailed) meshEvent()             {}
func (RadioFailed) meshEvent()               {}

// Events the coordinator posts to itself.
type (
	retryFired    struct{ id string }
	watchdogFired struct {
		id      string
		attempt uint64
	}
	drainFired     struct{}
	submitted      struct{ payload []byte }
	snapshotWanted struct{ reply chan []EntryStatus }
)

func (retryFired) meshEvent()     {}
func (watchdogFired) meshEvent()  {}
func (drainFired) meshEvent()     {}
func (submitted) meshEvent()      {}
func (snapshotWanted) meshEvent() {}
