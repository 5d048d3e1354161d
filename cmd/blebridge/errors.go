package main

import (
	"errors"
	"fmt"

	"github.com/srg/blebridge/internal/device"
	"github.com/srg/blebridge/internal/host/mqttpub"
	"github.com/srg/blebridge/internal/registry"
)

// FormatUserError turns well-known errors into short operator-facing messages.
func FormatUserError(err error) string {
	var cfgErr *registry.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("%s (see the accessories section of the config file)", cfgErr)
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off or no adapter is available"
	case errors.Is(err, mqttpub.ErrConnectionFailed):
		return fmt.Sprintf("cannot reach the MQTT broker: %v", err)
	default:
		return err.Error()
	}
}
