package bridge

import (
	"sync/atomic"

	"github.com/srg/blebridge/internal/device"
	"github.com/srg/blebridge/internal/host"
	"github.com/srg/blebridge/internal/registry"
)

// State is the connection lifecycle state of one registry entry.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDiscoveringServices
	StateDiscoveringCharacteristics
	StateBound
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDiscoveringServices:
		return "discovering_services"
	case StateDiscoveringCharacteristics:
		return "discovering_characteristics"
	case StateBound:
		return "bound"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type bindingKey struct {
	service        string
	characteristic string
}

// binding ties one expected characteristic to its live transport and host
// counterparts for the duration of a connection.
type binding struct {
	spec      *registry.CharacteristicSpec
	transport device.Characteristic
	host      *host.Characteristic

	// cleared on teardown; handlers running on transport goroutines check it
	live       atomic.Bool
	subscribed atomic.Bool
}

// liveDevice is the runtime side of a registry entry. It is owned by the event loop.
type liveDevice struct {
	entry *registry.Entry
	state State

	// session identifies the current connection attempt; completions carrying
	// any other session are stale
	session    string
	address    string // as advertised, used to dial
	peripheral device.Peripheral
	accessory  *host.Accessory
	// registered is false until the host registry accepted accessory
	registered bool

	bindings map[bindingKey]*binding
	// characteristic discoveries still outstanding for this session
	pending int
}

func newLiveDevice(entry *registry.Entry) *liveDevice {
	return &liveDevice{
		entry:    entry,
		bindings: make(map[bindingKey]*binding),
	}
}

func (d *liveDevice) identifyBinding() (*binding, bool) {
	for _, b := range d.bindings {
		if b.spec.Identify {
			return b, true
		}
	}
	return nil, false
}
