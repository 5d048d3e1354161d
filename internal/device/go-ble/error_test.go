package goble

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/srg/blebridge/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectIsError error
	}{
		{
			name:          "darwin Bluetooth off",
			err:           errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"),
			expectIsError: device.ErrBluetoothOff,
		},
		{
			name:          "generic Bluetooth off",
			err:           errors.New("bluetooth is turned off"),
			expectIsError: device.ErrBluetoothOff,
		},
		{
			name:          "linux hci init failure",
			err:           errors.New("can't init hci: no devices available: (hci0: can't down device: no such device)"),
			expectIsError: device.ErrBluetoothOff,
		},
		{
			name:          "not connected",
			err:           errors.New("Device not connected"),
			expectIsError: device.ErrNotConnected,
		},
		{
			name:          "disconnected",
			err:           errors.New("peripheral disconnected"),
			expectIsError: device.ErrNotConnected,
		},
		{
			name:          "already connected",
			err:           errors.New("device already connected"),
			expectIsError: device.ErrAlreadyConnected,
		},
		{
			name:          "context canceled passes through",
			err:           fmt.Errorf("scan: %w", context.Canceled),
			expectIsError: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeError(tt.err)
			assert.ErrorIs(t, got, tt.expectIsError, "error chain MUST contain expected sentinel error")
			assert.Contains(t, got.Error(), tt.err.Error(), "original message MUST be preserved")
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, NormalizeError(nil))
	})

	t.Run("unknown errors pass through", func(t *testing.T) {
		orig := errors.New("some other error")
		assert.Same(t, orig, NormalizeError(orig))
	})
}

func TestStateFromError(t *testing.T) {
	assert.Equal(t, device.StatePoweredOn, stateFromError(nil))
	assert.Equal(t, device.StatePoweredOff, stateFromError(NormalizeError(errors.New("bluetooth is turned off"))))
	assert.Equal(t, device.StateUnauthorized, stateFromError(errors.New("permission denied")))
	assert.Equal(t, device.StateUnsupported, stateFromError(fmt.Errorf("%w: no backend", device.ErrUnsupported)))
	assert.Equal(t, device.StateUnknown, stateFromError(errors.New("boom")))
}
