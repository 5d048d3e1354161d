package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blebridge/internal/device"
	"github.com/srg/blebridge/internal/groutine"
	"github.com/srg/blebridge/internal/ringchan"
)

const (
	// DefaultProbeInterval is how often a radio that is not powered on is re-probed.
	DefaultProbeInterval = 5 * time.Second

	stateBuffer = 8
)

// AdapterOptions configures the go-ble adapter.
type AdapterOptions struct {
	ProbeInterval time.Duration
}

// Adapter implements device.Adapter on top of a go-ble ble.Device.
//
// go-ble has no adapter state notifications, so the adapter derives them: a
// successful device initialization is reported as poweredOn, a failed one as
// the state implied by the error, and a scan failing with ErrBluetoothOff drops
// the device and reports poweredOff until the next successful probe.
type Adapter struct {
	logger *logrus.Logger
	opts   AdapterOptions

	mu     sync.RWMutex
	dev    ble.Device
	opened bool
	cancel context.CancelFunc

	states *ringchan.RingChannel[device.AdapterState]
	lost   chan struct{}
	group  groutine.Group
}

// NewAdapter creates a go-ble backed adapter.
func NewAdapter(logger *logrus.Logger, opts AdapterOptions) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = DefaultProbeInterval
	}
	return &Adapter{
		logger: logger,
		opts:   opts,
		states: ringchan.New[device.AdapterState](stateBuffer),
		lost:   make(chan struct{}, 1),
	}
}

// Open starts the adapter monitor and returns the adapter state channel.
func (a *Adapter) Open(ctx context.Context) (<-chan device.AdapterState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.opened {
		return nil, fmt.Errorf("adapter: %w", device.ErrAlreadyConnected)
	}
	a.opened = true

	monitorCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.group.Go(monitorCtx, "ble-adapter-monitor", a.monitor)

	return a.states.C(), nil
}

func (a *Adapter) monitor(ctx context.Context) {
	var last device.AdapterState
	emit := func(s device.AdapterState) {
		if s == last {
			return
		}
		last = s
		a.logger.WithField("state", s).Debug("Adapter state changed")
		a.states.Send(s)
	}

	for {
		dev, err := DeviceFactory()
		err = NormalizeError(err)
		if err == nil {
			a.setDevice(dev)
			emit(device.StatePoweredOn)

			select {
			case <-ctx.Done():
				return
			case <-a.lost:
			}

			a.dropDevice()
			emit(device.StatePoweredOff)
		} else {
			a.logger.WithField("error", err).Debug("Failed to initialize BLE device")
			emit(stateFromError(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.opts.ProbeInterval):
		}
	}
}

func (a *Adapter) setDevice(dev ble.Device) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dev = dev
}

func (a *Adapter) dropDevice() {
	a.mu.Lock()
	dev := a.dev
	a.dev = nil
	a.mu.Unlock()

	if dev != nil {
		if err := dev.Stop(); err != nil {
			a.logger.WithField("error", err).Debug("Failed to stop BLE device")
		}
	}
}

func (a *Adapter) current() (ble.Device, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.dev == nil {
		return nil, device.ErrBluetoothOff
	}
	return a.dev, nil
}

func (a *Adapter) signalLost() {
	select {
	case a.lost <- struct{}{}:
	default:
	}
}

// Scan scans until ctx is done. A non-empty serviceFilter keeps only
// advertisements announcing at least one of the given services.
func (a *Adapter) Scan(ctx context.Context, serviceFilter []string, allowDup bool, handler func(device.Advertisement)) error {
	dev, err := a.current()
	if err != nil {
		return err
	}

	filter := make(map[string]struct{}, len(serviceFilter))
	for _, u := range serviceFilter {
		filter[device.NormalizeUUID(u)] = struct{}{}
	}

	err = dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		wrapped := NewBLEAdvertisement(adv)
		if len(filter) > 0 && !advertisesAny(wrapped, filter) {
			return
		}
		handler(wrapped)
	})
	err = NormalizeError(err)

	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil
	case errors.Is(err, device.ErrBluetoothOff):
		a.signalLost()
		return err
	default:
		return fmt.Errorf("scan failed: %w", err)
	}
}

func advertisesAny(adv device.Advertisement, filter map[string]struct{}) bool {
	for _, u := range adv.Services() {
		if _, ok := filter[device.NormalizeUUID(u)]; ok {
			return true
		}
	}
	return false
}

// Connect dials the device at address (as reported by its advertisement).
func (a *Adapter) Connect(ctx context.Context, address string) (device.Peripheral, error) {
	dev, err := a.current()
	if err != nil {
		return nil, err
	}

	a.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := dev.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}
	return newPeripheral(client, address, a.logger), nil
}

// Close stops the monitor, releases the radio and closes the state channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.group.Wait()
	a.dropDevice()
	a.states.Close()
	return nil
}
