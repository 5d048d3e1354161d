package mqttpub

import "errors"

var (
	// ErrNotConnected is returned when publishing while the broker connection is down.
	ErrNotConnected = errors.New("mqtt: client not connected")
	// ErrConnectionFailed is returned when the initial broker connection fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	// ErrPublishFailed is returned when a publish is rejected or times out.
	ErrPublishFailed = errors.New("mqtt: publish failed")
	// ErrSubscribeFailed is returned when a command subscription fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")
)
