package ble

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"tinygo.org/x/bluetooth"

	"github.com/nerrad567/halomqtt/internal/mesh"
)

// advertisement is one scan result.
type advertisement struct {
	ID   string
	Name string
}

// dialer is the adapter surface the Radio drives. tinygoDialer is the
// production implementation.
type dialer interface {
	Enable() error
	// Scan blocks, calling fn for every advertisement, until StopScan.
	Scan(fn func(advertisement)) error
	StopScan() error
	// Dial blocks until the link is up or the connect fails.
	Dial(id string) (link, error)
	// OnDisconnect registers fn for links dropped by the peer or adapter.
	OnDisconnect(fn func(id string))
}

// link is a connected peripheral.
type link interface {
	Services() ([]service, error)
	Disconnect() error
}

// service is a discovered GATT service.
type service interface {
	UUID() uuid.UUID
	Characteristics() ([]mesh.Characteristic, error)
}

type tinygoDialer struct {
	adapter *bluetooth.Adapter
}

func (d *tinygoDialer) Enable() error {
	return d.adapter.Enable()
}

func (d *tinygoDialer) Scan(fn func(advertisement)) error {
	return d.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		fn(advertisement{
			ID:   result.Address.String(),
			Name: strings.TrimSpace(result.LocalName()),
		})
	})
}

func (d *tinygoDialer) StopScan() error {
	return d.adapter.StopScan()
}

func (d *tinygoDialer) Dial(id string) (link, error) {
	addr, err := parseAddress(id)
	if err != nil {
		return nil, err
	}

	device, err := d.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("connect bluetooth device %q: %w", id, err)
	}
	return &tinygoLink{device: device}, nil
}

func (d *tinygoDialer) OnDisconnect(fn func(id string)) {
	d.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if !connected {
			fn(device.Address.String())
		}
	})
}

type tinygoLink struct {
	device bluetooth.Device
}

func (l *tinygoLink) Services() ([]service, error) {
	found, err := l.device.DiscoverServices(nil)
	if err != nil {
		return nil, err
	}

	out := make([]service, 0, len(found))
	for i := range found {
		id, err := uuid.Parse(found[i].UUID().String())
		if err != nil {
			continue
		}
		out = append(out, &tinygoService{id: id, svc: found[i]})
	}
	return out, nil
}

func (l *tinygoLink) Disconnect() error {
	return l.device.Disconnect()
}

type tinygoService struct {
	id  uuid.UUID
	svc bluetooth.DeviceService
}

func (s *tinygoService) UUID() uuid.UUID { return s.id }

func (s *tinygoService) Characteristics() ([]mesh.Characteristic, error) {
	found, err := s.svc.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, err
	}

	out := make([]mesh.Characteristic, 0, len(found))
	for i := range found {
		id, err := uuid.Parse(found[i].UUID().String())
		if err != nil {
			continue
		}
		out = append(out, &characteristic{id: id, char: found[i]})
	}
	return out, nil
}

// characteristic adapts a tinygo characteristic to mesh.Characteristic.
type characteristic struct {
	id   uuid.UUID
	char bluetooth.DeviceCharacteristic
}

func (c *characteristic) UUID() uuid.UUID { return c.id }

func (c *characteristic) WriteWithoutResponse(p []byte) error {
	written, err := c.char.WriteWithoutResponse(p)
	if err != nil {
		return fmt.Errorf("write %s: %w", c.id, err)
	}
	if written != len(p) {
		return fmt.Errorf("%w: wrote %d of %d to %s", ErrShortWrite, written, len(p), c.id)
	}
	return nil
}
