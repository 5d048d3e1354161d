package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blebridge/internal/device"
)

// BLECharacteristic implements device.Characteristic over a go-ble characteristic
type BLECharacteristic struct {
	uuid       string
	properties device.Property
	client     ble.Client
	BLEChar    *ble.Characteristic
	logger     *logrus.Logger

	mu         sync.Mutex
	subscribed bool
	indicate   bool
}

func newCharacteristic(client ble.Client, c *ble.Characteristic, logger *logrus.Logger) *BLECharacteristic {
	return &BLECharacteristic{
		uuid:       device.NormalizeUUID(c.UUID.String()),
		properties: convertProperties(c.Property),
		client:     client,
		BLEChar:    c,
		logger:     logger,
	}
}

func (c *BLECharacteristic) UUID() string {
	return c.uuid
}

func (c *BLECharacteristic) Properties() device.Property {
	return c.properties
}

// Read reads the current value from the device.
func (c *BLECharacteristic) Read(ctx context.Context) ([]byte, error) {
	if !c.properties.Has(device.PropRead) {
		return nil, fmt.Errorf("read characteristic %s: %w", c.uuid, device.ErrUnsupported)
	}
	return callWithContext(ctx, "read characteristic "+c.uuid, func() ([]byte, error) {
		return c.client.ReadCharacteristic(c.BLEChar)
	})
}

// Write writes data to the device. Without response the write is issued as a
// write command when the characteristic supports it.
func (c *BLECharacteristic) Write(ctx context.Context, data []byte, withResponse bool) error {
	noRsp := !withResponse && c.properties.Has(device.PropWriteWithoutResponse)
	if !noRsp && !c.properties.Has(device.PropWrite) {
		return fmt.Errorf("write characteristic %s: %w", c.uuid, device.ErrUnsupported)
	}
	_, err := callWithContext(ctx, "write characteristic "+c.uuid, func() (struct{}, error) {
		return struct{}{}, c.client.WriteCharacteristic(c.BLEChar, data, noRsp)
	})
	return err
}

// Subscribe enables notifications, falling back to indications when the
// characteristic only supports those.
func (c *BLECharacteristic) Subscribe(handler func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscribed {
		return nil
	}

	var ind bool
	switch {
	case c.properties.Has(device.PropNotify):
		ind = false
	case c.properties.Has(device.PropIndicate):
		ind = true
	default:
		return fmt.Errorf("subscribe characteristic %s: %w", c.uuid, device.ErrUnsupported)
	}

	// Linux needs the CCCD handle; darwin resolves it internally and may return an error here.
	if c.BLEChar.CCCD == nil {
		if _, err := c.client.DiscoverDescriptors(nil, c.BLEChar); err != nil {
			c.logger.WithFields(logrus.Fields{
				"char_uuid": c.uuid,
				"error":     err,
			}).Debug("Descriptor discovery before subscribe failed")
		}
	}

	err := c.client.Subscribe(c.BLEChar, ind, func(req []byte) {
		data := make([]byte, len(req))
		copy(data, req)
		handler(data)
	})
	if err != nil {
		return fmt.Errorf("subscribe characteristic %s: %w", c.uuid, NormalizeError(err))
	}

	c.subscribed = true
	c.indicate = ind
	return nil
}

func (c *BLECharacteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.subscribed {
		return nil
	}
	c.subscribed = false

	if err := c.client.Unsubscribe(c.BLEChar, c.indicate); err != nil {
		return fmt.Errorf("unsubscribe characteristic %s: %w", c.uuid, NormalizeError(err))
	}
	return nil
}
