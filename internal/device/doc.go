// Package device defines the radio transport contracts consumed by the bridge.
//
// The package is deliberately small:
//   - Adapter: adapter power state, scanning and connection establishment
//   - Peripheral: one live connection with service and characteristic discovery
//   - Characteristic: read/write/notify operations on a discovered characteristic
//   - a transport error taxonomy shared by every implementation
//
// Implementations live in sub-packages (see device/goble).
package device
