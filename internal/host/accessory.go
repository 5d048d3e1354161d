package host

import (
	"fmt"
	"sync"
)

// Accessory is the host-side representation of one logical device. It is
// independent of any radio connection and is safe for concurrent use.
type Accessory struct {
	uuid        string
	displayName string

	mu       sync.RWMutex
	context  map[string]string
	services []*Service
	identify func()
	events   eventSink
}

// eventSink receives accessory changes once the accessory is held by a Bridge.
type eventSink interface {
	accessoryChanged(acc *Accessory)
	valueChanged(acc *Accessory, svc *Service, ch *Characteristic, value any)
}

// NewAccessory creates an unregistered accessory.
func NewAccessory(displayName, uuid string) *Accessory {
	return &Accessory{
		uuid:        uuid,
		displayName: displayName,
		context:     make(map[string]string),
	}
}

// UUID returns the accessory identifier.
func (a *Accessory) UUID() string {
	return a.uuid
}

// DisplayName returns the user-facing name.
func (a *Accessory) DisplayName() string {
	return a.displayName
}

// Context returns the opaque persisted value stored under key.
func (a *Accessory) Context(key string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.context[key]
}

// SetContext stores an opaque value persisted with the accessory.
func (a *Accessory) SetContext(key, value string) {
	a.mu.Lock()
	a.context[key] = value
	a.mu.Unlock()
}

// ContextMap returns a copy of the opaque context.
func (a *Accessory) ContextMap() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m := make(map[string]string, len(a.context))
	for k, v := range a.context {
		m[k] = v
	}
	return m
}

// Service returns the service of the given class, or nil.
func (a *Accessory) Service(class string) *Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range a.services {
		if s.class == class {
			return s
		}
	}
	return nil
}

// AddService adds a service of the given class. When one already exists it is
// returned unchanged; an accessory never holds two services of the same class.
func (a *Accessory) AddService(class, name string) *Service {
	a.mu.Lock()
	for _, s := range a.services {
		if s.class == class {
			a.mu.Unlock()
			return s
		}
	}
	svc := &Service{class: class, name: name, accessory: a}
	a.services = append(a.services, svc)
	events := a.events
	a.mu.Unlock()

	if events != nil {
		events.accessoryChanged(a)
	}
	return svc
}

// Services returns the services in the order they were added.
func (a *Accessory) Services() []*Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*Service(nil), a.services...)
}

// SetIdentifyHandler installs the identify handler, replacing any previous one.
func (a *Accessory) SetIdentifyHandler(fn func()) {
	a.mu.Lock()
	a.identify = fn
	a.mu.Unlock()
}

// ClearIdentifyHandler removes the identify handler.
func (a *Accessory) ClearIdentifyHandler() {
	a.SetIdentifyHandler(nil)
}

// HasIdentifyHandler reports whether an identify handler is installed.
func (a *Accessory) HasIdentifyHandler() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identify != nil
}

// Identify asks the physical device to make itself known.
func (a *Accessory) Identify() error {
	a.mu.RLock()
	fn := a.identify
	a.mu.RUnlock()

	if fn == nil {
		return fmt.Errorf("identify %s: %w", a.displayName, ErrNotBound)
	}
	fn()
	return nil
}

func (a *Accessory) eventSink() eventSink {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.events
}

func (a *Accessory) setEventSink(events eventSink) {
	a.mu.Lock()
	a.events = events
	a.mu.Unlock()
}

// Service is a group of characteristics on an accessory.
type Service struct {
	class     string
	name      string
	accessory *Accessory

	mu              sync.RWMutex
	characteristics []*Characteristic
}

// Class returns the service category.
func (s *Service) Class() string {
	return s.class
}

// Name returns the display name.
func (s *Service) Name() string {
	return s.name
}

// Accessory returns the owning accessory.
func (s *Service) Accessory() *Accessory {
	return s.accessory
}

// Characteristic returns the characteristic of the given class, creating it on first use.
func (s *Service) Characteristic(class string) *Characteristic {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.characteristics {
		if c.class == class {
			return c
		}
	}
	c := &Characteristic{class: class, service: s}
	s.characteristics = append(s.characteristics, c)
	return c
}

// LookupCharacteristic returns an existing characteristic without creating one.
func (s *Service) LookupCharacteristic(class string) (*Characteristic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.characteristics {
		if c.class == class {
			return c, true
		}
	}
	return nil, false
}

// Characteristics returns the characteristics in creation order.
func (s *Service) Characteristics() []*Characteristic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Characteristic(nil), s.characteristics...)
}
