package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/blebridge/internal/device"
	"github.com/srg/blebridge/internal/host"
	"github.com/srg/blebridge/internal/registry"
)

// alertLevelHigh is the Immediate Alert level written on identify.
const alertLevelHigh = 2

// ensureHostAccessory allocates and registers the entry's host accessory the
// first time it is needed. Restored accessories are reused as they are. A
// rejected registration is retried on the next call.
func (p *Platform) ensureHostAccessory(dev *liveDevice) *host.Accessory {
	if dev.accessory == nil {
		acc := host.NewAccessory(dev.entry.Name, host.GenerateUUID(dev.entry.ID))
		acc.SetContext(ContextKeyID, dev.entry.ID)
		dev.accessory = acc
	}
	if dev.registered {
		return dev.accessory
	}

	acc := dev.accessory
	fields := p.deviceFields(dev)
	fields["uuid"] = acc.UUID()

	err := p.host.RegisterAccessories(p.opts.PluginID, p.opts.Platform, []*host.Accessory{acc})
	switch {
	case err == nil:
		p.logger.WithFields(fields).Debug("Created accessory")
	case errors.Is(err, host.ErrPersist):
		// registered in memory, only the save failed
		p.logger.WithFields(fields).WithField("error", err).Warn("Persisting accessory failed")
	default:
		p.logger.WithFields(fields).WithField("error", err).Error("Registering accessory failed")
		return acc
	}
	dev.registered = true
	return acc
}

// ensureHostService returns the host service for spec, adding it on first use.
func (p *Platform) ensureHostService(dev *liveDevice, spec *registry.ServiceSpec) *host.Service {
	acc := p.ensureHostAccessory(dev)
	if svc := acc.Service(spec.DisplayClass); svc != nil {
		return svc
	}

	p.logger.WithFields(p.deviceFields(dev)).WithFields(logrus.Fields{
		"service_uuid": spec.UUID,
		"class":        spec.DisplayClass,
	}).Debug("Added service")
	return acc.AddService(spec.DisplayClass, spec.Name)
}

// bindCharacteristic wires a discovered transport characteristic to its host
// characteristic: live read/write handlers, notifications and an initial read.
func (p *Platform) bindCharacteristic(dev *liveDevice, svcSpec *registry.ServiceSpec, spec *registry.CharacteristicSpec, c device.Characteristic) {
	key := bindingKey{service: svcSpec.UUID, characteristic: spec.UUID}
	fields := p.deviceFields(dev)
	fields["service_uuid"] = svcSpec.UUID
	fields["char_uuid"] = spec.UUID

	if _, exists := dev.bindings[key]; exists {
		p.logger.WithFields(fields).Debug("Characteristic already bound")
		return
	}

	hostSvc := p.ensureHostService(dev, svcSpec)
	b := &binding{
		spec:      spec,
		transport: c,
		host:      hostSvc.Characteristic(spec.DisplayClass),
	}
	b.live.Store(true)
	b.host.Bind(readHandler(b), writeHandler(b))
	dev.bindings[key] = b

	fields["properties"] = c.Properties().String()
	p.logger.WithFields(fields).Debug("Bound characteristic")

	if dev.state != StateBound {
		p.setState(dev, StateBound)
		p.logger.WithFields(p.deviceFields(dev)).Info("Bound")
	}

	props := c.Properties()
	if !props.Has(device.PropNotify) && !props.Has(device.PropIndicate) && !props.Has(device.PropRead) {
		return
	}

	p.workers.Go(p.runCtx, "bind-"+dev.entry.ID+"-"+spec.UUID, func(ctx context.Context) {
		if props.Has(device.PropNotify) || props.Has(device.PropIndicate) {
			err := c.Subscribe(func(data []byte) {
				if !b.live.Load() {
					return
				}
				v, err := spec.Format.Decode(data)
				if err != nil {
					p.logger.WithFields(fields).WithField("error", err).Debug("Dropped undecodable notification")
					return
				}
				b.host.UpdateValue(v)
			})
			if err != nil {
				p.logger.WithFields(fields).WithField("error", err).Warn("Subscribing failed")
			} else {
				b.subscribed.Store(true)
				if !b.live.Load() {
					// torn down while subscribing
					_ = c.Unsubscribe()
					return
				}
			}
		}

		if props.Has(device.PropRead) {
			ctx, cancel := withTimeout(ctx, p.opts.DiscoveryTimeout)
			defer cancel()
			if _, err := b.host.Get(ctx); err != nil {
				p.logger.WithFields(fields).WithField("error", err).Debug("Initial read failed")
			}
		}
	})
}

func readHandler(b *binding) host.Getter {
	if !b.transport.Properties().Has(device.PropRead) {
		return nil
	}
	return func(ctx context.Context) (any, error) {
		if !b.live.Load() {
			return nil, host.ErrNotBound
		}
		data, err := b.transport.Read(ctx)
		if err != nil {
			return nil, err
		}
		return b.spec.Format.Decode(data)
	}
}

func writeHandler(b *binding) host.Setter {
	props := b.transport.Properties()
	if !props.Has(device.PropWrite) && !props.Has(device.PropWriteWithoutResponse) {
		return nil
	}
	return func(ctx context.Context, value any) error {
		if !b.live.Load() {
			return host.ErrNotBound
		}
		data, err := b.spec.Format.Encode(value)
		if err != nil {
			return fmt.Errorf("%s: %w", b.spec.DisplayClass, err)
		}
		return b.transport.Write(ctx, data, writeWithResponse(b.transport))
	}
}

// writeWithResponse prefers write-without-response when the characteristic supports it.
func writeWithResponse(c device.Characteristic) bool {
	return !c.Properties().Has(device.PropWriteWithoutResponse)
}

// attachIdentify installs the identify handler for the current connection.
// The handler only posts to the event loop, which checks the session.
func (p *Platform) attachIdentify(dev *liveDevice) {
	id, session := dev.entry.ID, dev.session
	dev.accessory.SetIdentifyHandler(func() {
		p.post(identifyRequested{id: id, session: session})
	})
}

// detachIdentify removes the handler installed by attachIdentify.
func (p *Platform) detachIdentify(dev *liveDevice) {
	if dev.accessory != nil {
		dev.accessory.ClearIdentifyHandler()
	}
}
