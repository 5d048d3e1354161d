package goble

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/blebridge/internal/device"
)

// NormalizeError maps known go-ble error strings to structured ConnectionError types.
// It ensures consistent handling even if the upstream library changes messages slightly.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case device.ContainsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case device.ContainsIgnoreCase(msg, "can't init hci"), device.ContainsIgnoreCase(msg, "no devices available"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case device.ContainsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case device.ContainsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case device.ContainsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", device.ErrAlreadyConnected, err)
	case device.ContainsIgnoreCase(msg, "connection is not initialized"):
		return fmt.Errorf("%w: %v", device.ErrNotInitialized, err)
	default:
		return err
	}
}

// stateFromError maps a radio initialization failure to the adapter state it implies.
func stateFromError(err error) device.AdapterState {
	switch {
	case err == nil:
		return device.StatePoweredOn
	case errors.Is(err, device.ErrBluetoothOff):
		return device.StatePoweredOff
	case device.ContainsIgnoreCase(err.Error(), "unauthorized"), device.ContainsIgnoreCase(err.Error(), "permission"):
		return device.StateUnauthorized
	case device.ContainsIgnoreCase(err.Error(), "unsupported"), device.ContainsIgnoreCase(err.Error(), "not supported"):
		return device.StateUnsupported
	default:
		return device.StateUnknown
	}
}
