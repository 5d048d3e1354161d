// Package host models the accessory side of the bridge: accessories with their
// services and characteristics, the registry they are published to, and the
// persistence of that registry across restarts.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry is the host accessory registry the platform publishes to.
type Registry interface {
	RegisterAccessories(pluginID, platform string, accs []*Accessory) error
	UnregisterAccessories(pluginID, platform string, accs []*Accessory) error
}

// Observer is notified about registry and value changes. Callbacks are invoked
// outside of any bridge lock and may call back into the bridge.
type Observer interface {
	AccessoryAdded(acc *Accessory)
	AccessoryRemoved(acc *Accessory)
	AccessoryChanged(acc *Accessory)
	ValueChanged(acc *Accessory, svc *Service, ch *Characteristic, value any)
}

type registration struct {
	acc      *Accessory
	pluginID string
	platform string
}

// Bridge is an in-process Registry that persists accessories through a Store
// and fans changes out to observers.
type Bridge struct {
	logger *logrus.Logger
	store  Store

	mu          sync.RWMutex
	accessories *orderedmap.OrderedMap[string, *registration]
	observers   []Observer

	saveMu sync.Mutex
}

var _ Registry = (*Bridge)(nil)

// NewBridge creates a bridge. A nil store disables persistence.
func NewBridge(logger *logrus.Logger, store Store) *Bridge {
	if logger == nil {
		logger = logrus.New()
	}
	return &Bridge{
		logger:      logger,
		store:       store,
		accessories: orderedmap.New[string, *registration](),
	}
}

// AddObserver subscribes o to future changes.
func (b *Bridge) AddObserver(o Observer) {
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

// Restore loads persisted accessories and hands each to fn, once, in stored
// order. Accessories fn leaves registered are announced to observers afterwards.
func (b *Bridge) Restore(fn func(acc *Accessory)) error {
	if b.store == nil {
		return nil
	}

	stored, err := b.store.Load()
	if err != nil {
		return fmt.Errorf("restore accessories: %w", err)
	}

	restored := make([]*Accessory, 0, len(stored))
	b.mu.Lock()
	for _, sa := range stored {
		acc := sa.accessory()
		acc.setEventSink(b)
		b.accessories.Set(acc.UUID(), &registration{acc: acc, pluginID: sa.PluginID, platform: sa.Platform})
		restored = append(restored, acc)
	}
	b.mu.Unlock()

	b.logger.WithField("count", len(restored)).Debug("Restored accessories from store")

	for _, acc := range restored {
		fn(acc)
	}

	for _, acc := range restored {
		if _, ok := b.Accessory(acc.UUID()); ok {
			b.notify(func(o Observer) { o.AccessoryAdded(acc) })
		}
	}
	return nil
}

// RegisterAccessories publishes accessories. Registering an accessory that is
// already held is a no-op for that accessory.
func (b *Bridge) RegisterAccessories(pluginID, platform string, accs []*Accessory) error {
	added := make([]*Accessory, 0, len(accs))

	b.mu.Lock()
	for _, acc := range accs {
		if _, exists := b.accessories.Get(acc.UUID()); exists {
			continue
		}
		acc.setEventSink(b)
		b.accessories.Set(acc.UUID(), &registration{acc: acc, pluginID: pluginID, platform: platform})
		added = append(added, acc)
	}
	b.mu.Unlock()

	if len(added) == 0 {
		return nil
	}

	for _, acc := range added {
		b.logger.WithFields(logrus.Fields{
			"uuid":     acc.UUID(),
			"name":     acc.DisplayName(),
			"platform": platform,
		}).Info("Registered accessory")
		b.notify(func(o Observer) { o.AccessoryAdded(acc) })
	}

	return b.persist()
}

// UnregisterAccessories removes accessories. Unknown accessories are reported
// with ErrUnknownAccessory after the known ones have been removed.
func (b *Bridge) UnregisterAccessories(pluginID, platform string, accs []*Accessory) error {
	var errs []error
	removed := make([]*Accessory, 0, len(accs))

	b.mu.Lock()
	for _, acc := range accs {
		if _, ok := b.accessories.Delete(acc.UUID()); !ok {
			errs = append(errs, fmt.Errorf("%s (%s): %w", acc.DisplayName(), acc.UUID(), ErrUnknownAccessory))
			continue
		}
		acc.setEventSink(nil)
		removed = append(removed, acc)
	}
	b.mu.Unlock()

	for _, acc := range removed {
		b.logger.WithFields(logrus.Fields{
			"uuid":     acc.UUID(),
			"name":     acc.DisplayName(),
			"platform": platform,
		}).Info("Unregistered accessory")
		b.notify(func(o Observer) { o.AccessoryRemoved(acc) })
	}

	if len(removed) > 0 {
		if err := b.persist(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Accessory returns the registered accessory with the given UUID.
func (b *Bridge) Accessory(uuid string) (*Accessory, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	reg, ok := b.accessories.Get(uuid)
	if !ok {
		return nil, false
	}
	return reg.acc, true
}

// Accessories returns the registered accessories in registration order.
func (b *Bridge) Accessories() []*Accessory {
	b.mu.RLock()
	defer b.mu.RUnlock()
	accs := make([]*Accessory, 0, b.accessories.Len())
	for pair := b.accessories.Oldest(); pair != nil; pair = pair.Next() {
		accs = append(accs, pair.Value.acc)
	}
	return accs
}

// SetValue writes a characteristic of a registered accessory.
func (b *Bridge) SetValue(ctx context.Context, uuid, serviceClass, charClass string, value any) error {
	acc, ok := b.Accessory(uuid)
	if !ok {
		return fmt.Errorf("%s: %w", uuid, ErrUnknownAccessory)
	}
	svc := acc.Service(serviceClass)
	if svc == nil {
		return fmt.Errorf("%s has no service %s: %w", acc.DisplayName(), serviceClass, ErrNotBound)
	}
	ch, ok := svc.LookupCharacteristic(charClass)
	if !ok {
		return fmt.Errorf("%s has no characteristic %s/%s: %w", acc.DisplayName(), serviceClass, charClass, ErrNotBound)
	}
	return ch.Set(ctx, value)
}

// Identify triggers the identify handler of a registered accessory.
func (b *Bridge) Identify(uuid string) error {
	acc, ok := b.Accessory(uuid)
	if !ok {
		return fmt.Errorf("%s: %w", uuid, ErrUnknownAccessory)
	}
	return acc.Identify()
}

func (b *Bridge) accessoryChanged(acc *Accessory) {
	b.notify(func(o Observer) { o.AccessoryChanged(acc) })
	if err := b.persist(); err != nil {
		b.logger.WithError(err).WithField("uuid", acc.UUID()).Error("Failed to persist accessory change")
	}
}

func (b *Bridge) valueChanged(acc *Accessory, svc *Service, ch *Characteristic, value any) {
	b.notify(func(o Observer) { o.ValueChanged(acc, svc, ch, value) })
}

func (b *Bridge) notify(fn func(o Observer)) {
	b.mu.RLock()
	observers := append([]Observer(nil), b.observers...)
	b.mu.RUnlock()

	for _, o := range observers {
		fn(o)
	}
}

func (b *Bridge) persist() error {
	if b.store == nil {
		return nil
	}

	b.saveMu.Lock()
	defer b.saveMu.Unlock()

	b.mu.RLock()
	snapshot := make([]StoredAccessory, 0, b.accessories.Len())
	for pair := b.accessories.Oldest(); pair != nil; pair = pair.Next() {
		snapshot = append(snapshot, storedFrom(pair.Value))
	}
	b.mu.RUnlock()

	if err := b.store.Save(snapshot); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
