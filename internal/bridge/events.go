package bridge

import (
	"github.com/srg/blebridge/internal/device"
	"github.com/srg/blebridge/internal/registry"
)

// event is a completion posted back to the event loop by a worker goroutine.
// Every event carries the session it was issued for.
type event interface {
	target() (id, session string)
}

type connectResult struct {
	id, session string
	peripheral  device.Peripheral
	err         error
}

type disconnected struct {
	id, session string
}

type servicesDiscovered struct {
	id, session string
	services    []device.Service
	err         error
}

type characteristicsDiscovered struct {
	id, session string
	service     *registry.ServiceSpec
	chars       []device.Characteristic
	err         error
}

type identifyRequested struct {
	id, session string
}

func (e connectResult) target() (string, string)             { return e.id, e.session }
func (e disconnected) target() (string, string)              { return e.id, e.session }
func (e servicesDiscovered) target() (string, string)        { return e.id, e.session }
func (e characteristicsDiscovered) target() (string, string) { return e.id, e.session }
func (e identifyRequested) target() (string, string)         { return e.id, e.session }

// advertisement is a scan result tagged with the scan generation that produced it.
type advertisement struct {
	generation uint64
	adv        device.Advertisement
}
