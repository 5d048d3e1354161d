package bridge

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/srg/blebridge/internal/device"
)

// live returns the device an event refers to if the event belongs to its
// current connection. Anything else is a late completion from a torn down
// session and must be ignored.
func (p *Platform) live(ev event) (*liveDevice, bool) {
	id, session := ev.target()
	dev, ok := p.devices[id]
	if !ok || session == "" || dev.session != session || dev.peripheral == nil {
		return nil, false
	}
	return dev, true
}

// connect moves an Idle entry to Connecting and dials it on a worker.
func (p *Platform) connect(dev *liveDevice, address string) {
	dev.session = ulid.Make().String()
	dev.address = address
	p.setState(dev, StateConnecting)
	p.logger.WithFields(p.deviceFields(dev)).Info("Connecting")

	id, session := dev.entry.ID, dev.session
	p.workers.Go(p.runCtx, "connect-"+id, func(ctx context.Context) {
		ctx, cancel := withTimeout(ctx, p.opts.ConnectTimeout)
		defer cancel()

		per, err := p.adapter.Connect(ctx, address)
		if !p.post(connectResult{id: id, session: session, peripheral: per, err: err}) && per != nil {
			_ = per.Disconnect()
		}
	})
}

func (p *Platform) onConnectResult(ev connectResult) {
	dev, ok := p.devices[ev.id]
	if !ok || dev.session != ev.session || dev.state != StateConnecting {
		if ev.peripheral != nil {
			p.logger.WithField("id", ev.id).Debug("Dropping connection of a stale session")
			p.disconnectAsync(ev.id, ev.peripheral, nil)
		}
		return
	}

	if ev.err != nil {
		err := &ConnectError{ID: dev.entry.ID, Name: dev.entry.Name, Address: dev.address, Err: ev.err}
		p.logger.WithFields(p.deviceFields(dev)).WithField("error", err).Error("Connecting failed")
		dev.session = ""
		p.setState(dev, StateIdle)
		return
	}

	dev.peripheral = ev.peripheral
	p.setState(dev, StateConnected)
	p.logger.WithFields(p.deviceFields(dev)).Info("Connected")

	p.ensureHostAccessory(dev)
	p.watchDisconnect(dev)
	p.attachIdentify(dev)
	p.discoverServices(dev)
}

func (p *Platform) watchDisconnect(dev *liveDevice) {
	id, session, per := dev.entry.ID, dev.session, dev.peripheral
	p.workers.Go(p.runCtx, "watch-"+id, func(ctx context.Context) {
		select {
		case <-per.Disconnected():
			p.post(disconnected{id: id, session: session})
		case <-ctx.Done():
		}
	})
}

func (p *Platform) discoverServices(dev *liveDevice) {
	p.setState(dev, StateDiscoveringServices)

	id, session, per := dev.entry.ID, dev.session, dev.peripheral
	p.workers.Go(p.runCtx, "discover-services-"+id, func(ctx context.Context) {
		ctx, cancel := withTimeout(ctx, p.opts.DiscoveryTimeout)
		defer cancel()

		services, err := per.DiscoverServices(ctx, nil)
		p.post(servicesDiscovered{id: id, session: session, services: services, err: err})
	})
}

func (p *Platform) onServicesDiscovered(ev servicesDiscovered) {
	dev, ok := p.live(ev)
	if !ok {
		p.logger.WithField("id", ev.id).Debug("Ignored service discovery of a stale session")
		return
	}

	if ev.err != nil {
		err := &DiscoveryError{ID: dev.entry.ID, Name: dev.entry.Name, Address: dev.address, Stage: StageServices, Err: ev.err}
		p.logger.WithFields(p.deviceFields(dev)).WithField("error", err).Error("Discovering services failed")
		p.setState(dev, StateConnected)
		return
	}

	if len(ev.services) == 0 {
		p.logger.WithFields(p.deviceFields(dev)).Warn("No services discovered")
		p.setState(dev, StateConnected)
		return
	}

	matched := 0
	for _, svc := range ev.services {
		spec, ok := dev.entry.Service(svc.UUID())
		if !ok {
			p.logger.WithFields(p.deviceFields(dev)).WithField("service_uuid", svc.UUID()).Trace("Ignored service")
			continue
		}
		matched++

		p.ensureHostService(dev, spec)
		p.discoverCharacteristics(dev, svc, spec.UUID)
	}

	if matched == 0 {
		p.logger.WithFields(p.deviceFields(dev)).Debug("No expected services")
		p.setState(dev, StateConnected)
		return
	}
	p.setState(dev, StateDiscoveringCharacteristics)
}

func (p *Platform) discoverCharacteristics(dev *liveDevice, svc device.Service, serviceUUID string) {
	spec, _ := dev.entry.Service(serviceUUID)
	dev.pending++

	id, session, per := dev.entry.ID, dev.session, dev.peripheral
	p.workers.Go(p.runCtx, "discover-characteristics-"+id, func(ctx context.Context) {
		ctx, cancel := withTimeout(ctx, p.opts.DiscoveryTimeout)
		defer cancel()

		chars, err := per.DiscoverCharacteristics(ctx, svc, nil)
		p.post(characteristicsDiscovered{id: id, session: session, service: spec, chars: chars, err: err})
	})
}

func (p *Platform) onCharacteristicsDiscovered(ev characteristicsDiscovered) {
	dev, ok := p.live(ev)
	if !ok {
		p.logger.WithField("id", ev.id).Debug("Ignored characteristic discovery of a stale session")
		return
	}
	dev.pending--

	fields := p.deviceFields(dev)
	fields["service_uuid"] = ev.service.UUID

	switch {
	case ev.err != nil:
		err := &DiscoveryError{
			ID:      dev.entry.ID,
			Name:    dev.entry.Name,
			Address: dev.address,
			Stage:   StageCharacteristics,
			Service: ev.service.UUID,
			Err:     ev.err,
		}
		p.logger.WithFields(fields).WithField("error", err).Error("Discovering characteristics failed")
	case len(ev.chars) == 0:
		p.logger.WithFields(fields).Warn("No characteristics discovered")
	default:
		for _, c := range ev.chars {
			spec, ok := ev.service.Characteristic(c.UUID())
			if !ok {
				p.logger.WithFields(fields).WithField("char_uuid", c.UUID()).Trace("Ignored characteristic")
				continue
			}
			p.bindCharacteristic(dev, ev.service, spec, c)
		}
	}

	if dev.pending == 0 && len(dev.bindings) == 0 {
		p.setState(dev, StateConnected)
	}
}

func (p *Platform) onDisconnected(ev disconnected) {
	dev, ok := p.live(ev)
	if !ok {
		return
	}
	p.teardown(dev)
}

func (p *Platform) onIdentifyRequested(ev identifyRequested) {
	dev, ok := p.live(ev)
	if !ok {
		return
	}
	p.logger.WithFields(p.deviceFields(dev)).Info("Identify")

	b, ok := dev.identifyBinding()
	if !ok {
		return
	}

	data, err := b.spec.Format.Encode(alertLevelHigh)
	if err != nil {
		p.logger.WithFields(p.deviceFields(dev)).WithField("error", err).Error("Identify failed")
		return
	}

	fields := p.deviceFields(dev)
	fields["char_uuid"] = b.spec.UUID
	p.workers.Go(p.runCtx, "identify-"+dev.entry.ID, func(ctx context.Context) {
		ctx, cancel := withTimeout(ctx, p.opts.DiscoveryTimeout)
		defer cancel()

		if err := b.transport.Write(ctx, data, writeWithResponse(b.transport)); err != nil {
			p.logger.WithFields(fields).WithField("error", err).Error("Identify failed")
		}
	})
}

func (p *Platform) disconnectAsync(id string, per device.Peripheral, unsubscribe []device.Characteristic) {
	p.workers.Go(context.Background(), "disconnect-"+id, func(context.Context) {
		select {
		case <-per.Disconnected():
			return
		default:
		}

		for _, c := range unsubscribe {
			if err := c.Unsubscribe(); err != nil {
				p.logger.WithFields(logrus.Fields{
					"id":        id,
					"char_uuid": c.UUID(),
					"error":     err,
				}).Debug("Unsubscribe failed")
			}
		}

		if err := per.Disconnect(); err != nil {
			p.logger.WithFields(logrus.Fields{
				"id":    id,
				"error": err,
			}).Debug("Disconnect failed")
		}
	})
}
