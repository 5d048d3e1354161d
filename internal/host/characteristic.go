package host

import (
	"context"
	"sync"
)

// Getter reads the current value from the live device.
type Getter func(ctx context.Context) (any, error)

// Setter writes a value to the live device.
type Setter func(ctx context.Context, value any) error

// Characteristic is a host-side data point of a Service. Live handlers are
// installed while the device is connected; the last known value survives
// disconnects.
type Characteristic struct {
	mu      sync.RWMutex
	class   string
	service *Service
	value   any
	bound   bool
	get     Getter
	set     Setter
}

// Class returns the characteristic category.
func (c *Characteristic) Class() string {
	return c.class
}

// Service returns the owning service.
func (c *Characteristic) Service() *Service {
	return c.service
}

// Value returns the last known value, or nil.
func (c *Characteristic) Value() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Bind attaches the characteristic to a live device. Either handler may be
// nil; a notify-only characteristic is bound without any.
func (c *Characteristic) Bind(get Getter, set Setter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = true
	c.get = get
	c.set = set
}

// Unbind detaches the characteristic from the live device.
func (c *Characteristic) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = false
	c.get = nil
	c.set = nil
}

// Bound reports whether the characteristic is attached to a live device.
func (c *Characteristic) Bound() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bound
}

// Writable reports whether a live write handler is installed.
func (c *Characteristic) Writable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set != nil
}

// Get reads through the live handler when there is one, otherwise returns the
// cached value. ErrNotBound is returned when neither is available.
func (c *Characteristic) Get(ctx context.Context) (any, error) {
	c.mu.RLock()
	get, cached := c.get, c.value
	c.mu.RUnlock()

	if get == nil {
		if cached == nil {
			return nil, ErrNotBound
		}
		return cached, nil
	}

	v, err := get(ctx)
	if err != nil {
		return nil, err
	}
	c.UpdateValue(v)
	return v, nil
}

// Set writes through the live handler.
func (c *Characteristic) Set(ctx context.Context, value any) error {
	c.mu.RLock()
	bound, set := c.bound, c.set
	c.mu.RUnlock()

	if !bound {
		return ErrNotBound
	}
	if set == nil {
		return ErrReadOnly
	}
	return set(ctx, value)
}

// UpdateValue stores a new value and notifies observers.
func (c *Characteristic) UpdateValue(value any) {
	c.mu.Lock()
	c.value = value
	c.mu.Unlock()

	acc := c.service.accessory
	if events := acc.eventSink(); events != nil {
		events.valueChanged(acc, c.service, c, value)
	}
}
