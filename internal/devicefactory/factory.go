// Package devicefactory selects the radio transport used by the bridge.
package devicefactory

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blebridge/internal/device"
	goble "github.com/srg/blebridge/internal/device/go-ble"
)

// Options configures the adapter created by NewAdapter.
type Options struct {
	ProbeInterval time.Duration
}

// NewAdapter creates the platform radio adapter.
// This is a variable so that it can be overridden in tests.
var NewAdapter = func(logger *logrus.Logger, opts Options) device.Adapter {
	return goble.NewAdapter(logger, goble.AdapterOptions{ProbeInterval: opts.ProbeInterval})
}
