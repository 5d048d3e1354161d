package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect marks a failed connection attempt. The entry returns to Idle
	// and is reconsidered on its next advertisement.
	ErrConnect = errors.New("connect failed")
	// ErrDiscovery marks a failed service or characteristic enumeration. The
	// device stays connected but unbound.
	ErrDiscovery = errors.New("discovery failed")
)

// ConnectError reports a transport connect failure for one entry.
type ConnectError struct {
	ID      string
	Name    string
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s: %s (%s): %v", ErrConnect, e.Name, e.Address, e.Err)
}

func (e *ConnectError) Is(target error) bool {
	return target == ErrConnect
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// DiscoveryStage names the enumeration that failed.
type DiscoveryStage string

const (
	StageServices        DiscoveryStage = "services"
	StageCharacteristics DiscoveryStage = "characteristics"
)

// DiscoveryError reports a failed service or characteristic enumeration.
type DiscoveryError struct {
	ID      string
	Name    string
	Address string
	Stage   DiscoveryStage
	Service string // set for StageCharacteristics
	Err     error
}

func (e *DiscoveryError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("%s: %s (%s): %s of service %s: %v", ErrDiscovery, e.Name, e.Address, e.Stage, e.Service, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s): %s: %v", ErrDiscovery, e.Name, e.Address, e.Stage, e.Err)
}

func (e *DiscoveryError) Is(target error) bool {
	return target == ErrDiscovery
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
