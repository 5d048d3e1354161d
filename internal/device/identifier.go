package device

import (
	"fmt"

	"github.com/srg/blebridge/internal/bledb"
)

// NormalizeUUID returns the comparable form of a service or characteristic UUID.
// See bledb.NormalizeUUID.
func NormalizeUUID(uuid string) string {
	return bledb.NormalizeUUID(uuid)
}

// NormalizeAddress returns the comparable form of a radio address.
func NormalizeAddress(address string) string {
	return bledb.NormalizeAddress(address)
}

// ValidateUUID normalizes uuids and rejects empty or non-hex entries.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	result := make([]string, 0, len(uuids))
	for i, uuid := range uuids {
		normalized := NormalizeUUID(uuid)
		switch {
		case normalized == "":
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		case !bledb.IsHex(normalized):
			return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, uuid)
		case len(normalized) != 4 && len(normalized) != 8 && len(normalized) != 32:
			return nil, fmt.Errorf("invalid UUID length at index %d: %s", i, uuid)
		}
		result = append(result, normalized)
	}
	return result, nil
}

// ValidateAddress validates a radio address and returns its normalized form.
// A valid address normalizes to 12 hex digits (a MAC address) or 32 hex digits
// (a CoreBluetooth peripheral identifier, which macOS reports instead of the MAC).
func ValidateAddress(address string) (string, error) {
	normalized := NormalizeAddress(address)
	if (len(normalized) != 12 && len(normalized) != 32) || !bledb.IsHex(normalized) {
		return "", fmt.Errorf("invalid device address %q", address)
	}
	return normalized, nil
}
