package bridge

import (
	"github.com/srg/blebridge/internal/device"
)

// teardown unwinds a connection after a disconnect: bindings and identify are
// detached, the peripheral is dropped, the entry returns to Idle and scanning
// is re-armed once.
func (p *Platform) teardown(dev *liveDevice) {
	fields := p.deviceFields(dev)
	p.setState(dev, StateDisconnected)
	p.release(dev)
	p.setState(dev, StateIdle)
	p.logger.WithFields(fields).Info("Disconnected")

	p.scan.rearm()
}

// release detaches every live resource of dev and drops its peripheral.
func (p *Platform) release(dev *liveDevice) {
	var subscribed []device.Characteristic
	for key, b := range dev.bindings {
		b.live.Store(false)
		b.host.Unbind()
		if b.subscribed.Load() {
			subscribed = append(subscribed, b.transport)
		}
		delete(dev.bindings, key)
	}
	p.detachIdentify(dev)

	if dev.peripheral != nil {
		p.disconnectAsync(dev.entry.ID, dev.peripheral, subscribed)
	}
	dev.peripheral = nil
	dev.session = ""
	dev.pending = 0
}
