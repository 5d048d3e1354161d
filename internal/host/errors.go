package host

import "errors"

var (
	// ErrUnknownAccessory is returned for operations on an accessory the bridge does not hold.
	ErrUnknownAccessory = errors.New("unknown accessory")
	// ErrNotBound is returned when a characteristic or identify request has no live device behind it.
	ErrNotBound = errors.New("not bound to a connected device")
	// ErrReadOnly is returned when writing a characteristic that has no write handler.
	ErrReadOnly = errors.New("characteristic is read-only")
	// ErrPersist is returned when the registry changed in memory but could not be saved.
	ErrPersist = errors.New("persisting accessories failed")
)
