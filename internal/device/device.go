package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "service", "characteristic"
	UUIDs    []string // One or more UUIDs (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
	BluetoothOff     ConnectionState = "bluetooth is turned off"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff}
)

// Operation errors
var (
	ErrTimeout     = errors.New("timeout")
	ErrUnsupported = errors.New("unsupported")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// ContainsIgnoreCase checks substring case-insensitively
func ContainsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// AdapterState is the power state reported by the radio adapter.
type AdapterState string

const (
	StateUnknown      AdapterState = "unknown"
	StatePoweredOn    AdapterState = "poweredOn"
	StatePoweredOff   AdapterState = "poweredOff"
	StateUnauthorized AdapterState = "unauthorized"
	StateUnsupported  AdapterState = "unsupported"
)

type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	Services() []string
	TxPowerLevel() int
	Connectable() bool

	RSSI() int
	Addr() string
}

// Adapter is the radio adapter: power state, scanning and outgoing connections.
//
// Scan blocks until ctx is done or the scan fails, invoking handler for every
// advertisement seen. An Adapter supports a single concurrent scan.
type Adapter interface {
	// Open initializes the radio and returns a channel of adapter state changes.
	// The channel is closed by Close.
	Open(ctx context.Context) (<-chan AdapterState, error)
	Scan(ctx context.Context, serviceFilter []string, allowDup bool, handler func(Advertisement)) error
	Connect(ctx context.Context, address string) (Peripheral, error)
	Close() error
}

// Peripheral is one live connection to a remote device.
type Peripheral interface {
	Address() string
	Name() string

	// DiscoverServices enumerates primary services; an empty filter means all.
	DiscoverServices(ctx context.Context, filter []string) ([]Service, error)
	// DiscoverCharacteristics enumerates characteristics of svc; an empty filter means all.
	DiscoverCharacteristics(ctx context.Context, svc Service, filter []string) ([]Characteristic, error)

	// Disconnected is closed once the connection is gone, whether requested or not.
	Disconnected() <-chan struct{}
	Disconnect() error
}

// Service represents a discovered GATT service
type Service interface {
	UUID() string
}

// Property is a bit set of GATT characteristic properties
type Property uint8

const (
	PropBroadcast Property = 1 << iota
	PropRead
	PropWriteWithoutResponse
	PropWrite
	PropNotify
	PropIndicate
)

// Has reports whether all bits of p2 are set.
func (p Property) Has(p2 Property) bool {
	return p&p2 == p2
}

func (p Property) String() string {
	names := []struct {
		bit  Property
		name string
	}{
		{PropBroadcast, "broadcast"},
		{PropRead, "read"},
		{PropWriteWithoutResponse, "write-without-response"},
		{PropWrite, "write"},
		{PropNotify, "notify"},
		{PropIndicate, "indicate"},
	}
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if p&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// Characteristic is a discovered characteristic bound to the connection it was
// discovered on. Operations fail with ErrNotConnected once that connection is gone.
type Characteristic interface {
	UUID() string
	Properties() Property

	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte, withResponse bool) error
	// Subscribe enables notifications (or indications) and delivers every value to handler.
	Subscribe(handler func([]byte)) error
	Unsubscribe() error
}
