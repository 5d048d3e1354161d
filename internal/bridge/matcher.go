package bridge

import "github.com/sirupsen/logrus"

// onAdvertisement matches an advertisement against the registry and hands
// matches in Idle to the lifecycle.
func (p *Platform) onAdvertisement(ad advertisement) {
	if ad.generation != p.scan.current() {
		return
	}

	address := ad.adv.Addr()
	entry, ok := p.registry.LookupAddress(address)
	if !ok {
		if p.logger.IsLevelEnabled(logrus.TraceLevel) && p.unmatched.Allow() {
			p.logger.WithFields(logrus.Fields{
				"address": address,
				"name":    ad.adv.LocalName(),
				"rssi":    ad.adv.RSSI(),
			}).Trace("Ignored")
		}
		return
	}

	dev := p.devices[entry.ID]
	if dev.state != StateIdle {
		p.logger.WithFields(logrus.Fields{
			"id":    entry.ID,
			"state": dev.state,
		}).Trace("Ignored re-discovery")
		return
	}

	p.logger.WithFields(logrus.Fields{
		"id":      entry.ID,
		"name":    entry.Name,
		"address": address,
		"rssi":    ad.adv.RSSI(),
	}).Info("Discovered")

	p.connect(dev, address)
}
