package goble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blebridge/internal/device"
)

// BLEService wraps a discovered *ble.Service
type BLEService struct {
	uuid string
	svc  *ble.Service
}

func (s *BLEService) UUID() string {
	return s.uuid
}

// BLEPeripheral implements device.Peripheral over a go-ble client connection
type BLEPeripheral struct {
	client  ble.Client
	address string
	logger  *logrus.Logger
}

func newPeripheral(client ble.Client, address string, logger *logrus.Logger) *BLEPeripheral {
	return &BLEPeripheral{
		client:  client,
		address: address,
		logger:  logger,
	}
}

func (p *BLEPeripheral) Address() string {
	return p.address
}

func (p *BLEPeripheral) Name() string {
	return p.client.Name()
}

// DiscoverServices enumerates the primary services of the connected device.
func (p *BLEPeripheral) DiscoverServices(ctx context.Context, filter []string) ([]device.Service, error) {
	uuids, err := parseUUIDs(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid service filter: %w", err)
	}

	bleServices, err := callWithContext(ctx, "discover services", func() ([]*ble.Service, error) {
		return p.client.DiscoverServices(uuids)
	})
	if err != nil {
		return nil, err
	}

	result := make([]device.Service, 0, len(bleServices))
	for _, s := range bleServices {
		p.logger.WithFields(logrus.Fields{
			"address":      p.address,
			"service_uuid": s.UUID.String(),
		}).Trace("Found service UUID")
		result = append(result, &BLEService{uuid: device.NormalizeUUID(s.UUID.String()), svc: s})
	}
	return result, nil
}

// DiscoverCharacteristics enumerates the characteristics of a service previously
// returned by DiscoverServices on this peripheral.
func (p *BLEPeripheral) DiscoverCharacteristics(ctx context.Context, svc device.Service, filter []string) ([]device.Characteristic, error) {
	bleSvc, ok := svc.(*BLEService)
	if !ok || bleSvc.svc == nil {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{svc.UUID()}}
	}

	uuids, err := parseUUIDs(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic filter: %w", err)
	}

	bleChars, err := callWithContext(ctx, "discover characteristics", func() ([]*ble.Characteristic, error) {
		return p.client.DiscoverCharacteristics(uuids, bleSvc.svc)
	})
	if err != nil {
		return nil, err
	}

	result := make([]device.Characteristic, 0, len(bleChars))
	for _, c := range bleChars {
		p.logger.WithFields(logrus.Fields{
			"address":      p.address,
			"service_uuid": bleSvc.uuid,
			"char_uuid":    c.UUID.String(),
		}).Trace("Found characteristic UUID")
		result = append(result, newCharacteristic(p.client, c, p.logger))
	}
	return result, nil
}

func (p *BLEPeripheral) Disconnected() <-chan struct{} {
	return p.client.Disconnected()
}

// Disconnect cancels the connection. The Disconnected channel closes once the
// link is gone.
func (p *BLEPeripheral) Disconnect() error {
	if err := p.client.CancelConnection(); err != nil {
		return NormalizeError(err)
	}
	return nil
}
