// Package bledb canonicalizes Bluetooth identifiers and resolves display names
// for the Bluetooth SIG assigned numbers the bridge understands.
package bledb

import "strings"

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID
// (0000xxxx-0000-1000-8000-00805f9b34fb) once dashes are removed.
const sigBaseSuffix = "00001000800000805f9b34fb"

var identifierReplacer = strings.NewReplacer("-", "", ":", "", "{", "", "}", "", " ", "")

// NormalizeUUID converts a UUID string to the comparable form used across the bridge:
// lowercase, no dashes, colons, braces or 0x prefix. Full UUIDs in the Bluetooth SIG
// base range are collapsed to their 16-bit short form ("0000180f-0000-1000-8000-00805f9b34fb" -> "180f").
// NormalizeUUID is idempotent.
func NormalizeUUID(uuid string) string {
	u := identifierReplacer.Replace(strings.ToLower(strings.TrimSpace(uuid)))
	for strings.HasPrefix(u, "0x") {
		u = u[2:]
	}
	// only well-formed hex collapses, otherwise the short form could expose a new 0x prefix
	if len(u) == 32 && IsHex(u) && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// NormalizeAddress converts a radio address to its comparable form: lowercase with
// colon and dash delimiters removed ("AA:BB:CC:DD:EE:FF" -> "aabbccddeeff").
func NormalizeAddress(address string) string {
	return identifierReplacer.Replace(strings.ToLower(strings.TrimSpace(address)))
}

// IsHex reports whether s is a non-empty string of lowercase hex digits.
func IsHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

var services = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"1802": "Immediate Alert",
	"180a": "Device Information",
	"180d": "Heart Rate",
	"180f": "Battery Service",
	"181a": "Environmental Sensing",
	"6e400001b5a3f393e0a9e50e24dcca9e": "Nordic UART Service",
}

var characteristics = map[string]string{
	"2a00": "Device Name",
	"2a06": "Alert Level",
	"2a19": "Battery Level",
	"2a29": "Manufacturer Name String",
	"2a37": "Heart Rate Measurement",
	"2a38": "Body Sensor Location",
	"2a6e": "Temperature",
	"2a6f": "Humidity",
	"6e400002b5a3f393e0a9e50e24dcca9e": "Nordic UART RX",
	"6e400003b5a3f393e0a9e50e24dcca9e": "Nordic UART TX",
}

// LookupService returns the display name of a service UUID, or "" when unknown.
func LookupService(uuid string) string {
	return services[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the display name of a characteristic UUID, or "" when unknown.
func LookupCharacteristic(uuid string) string {
	return characteristics[NormalizeUUID(uuid)]
}
