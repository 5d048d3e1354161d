package registry

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the sentinel wrapped by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an invalid device list. It is fatal to platform
// initialization.
type ConfigurationError struct {
	Index  int // position in the device list, -1 when not entry-specific
	ID     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	case e.ID == "":
		return fmt.Sprintf("%s: accessory #%d: %s", ErrConfiguration, e.Index, e.Reason)
	default:
		return fmt.Sprintf("%s: accessory %q: %s", ErrConfiguration, e.ID, e.Reason)
	}
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func configErr(index int, id, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Index: index, ID: id, Reason: fmt.Sprintf(format, args...)}
}
