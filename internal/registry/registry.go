// Package registry holds the immutable set of configured devices and the compiled
// device-model catalog they are declared against.
package registry

import (
	"sort"
	"strings"

	"github.com/cornelk/hashmap"
	"github.com/srg/blebridge/internal/bledb"
	"github.com/srg/blebridge/internal/device"
	"github.com/srg/blebridge/pkg/config"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Entry is one configured device.
type Entry struct {
	ID       string
	Address  string // normalized
	Name     string
	Model    string
	Services []*ServiceSpec
}

// Service returns the expected service with the given UUID (any notation).
func (e *Entry) Service(uuid string) (*ServiceSpec, bool) {
	u := bledb.NormalizeUUID(uuid)
	for _, s := range e.Services {
		if s.UUID == u {
			return s, true
		}
	}
	return nil, false
}

// IdentifyCharacteristic returns the first characteristic that can drive the
// identify capability.
func (e *Entry) IdentifyCharacteristic() (*ServiceSpec, *CharacteristicSpec, bool) {
	for _, s := range e.Services {
		for _, uuid := range s.CharacteristicUUIDs() {
			if c := s.Characteristics[uuid]; c.Identify {
				return s, c, true
			}
		}
	}
	return nil, nil, false
}

// ServiceSpec is an expected GATT service.
type ServiceSpec struct {
	UUID            string
	DisplayClass    string
	Name            string
	Characteristics map[string]*CharacteristicSpec
}

// Characteristic returns the expected characteristic with the given UUID (any notation).
func (s *ServiceSpec) Characteristic(uuid string) (*CharacteristicSpec, bool) {
	c, ok := s.Characteristics[bledb.NormalizeUUID(uuid)]
	return c, ok
}

// CharacteristicUUIDs returns the characteristic UUIDs in a stable order.
func (s *ServiceSpec) CharacteristicUUIDs() []string {
	uuids := make([]string, 0, len(s.Characteristics))
	for u := range s.Characteristics {
		uuids = append(uuids, u)
	}
	sort.Strings(uuids)
	return uuids
}

func (s *ServiceSpec) clone() *ServiceSpec {
	c := *s
	c.Characteristics = make(map[string]*CharacteristicSpec, len(s.Characteristics))
	for u, ch := range s.Characteristics {
		chCopy := *ch
		c.Characteristics[u] = &chCopy
	}
	return &c
}

// CharacteristicSpec is an expected GATT characteristic.
type CharacteristicSpec struct {
	UUID         string
	DisplayClass string
	Format       Format
	// Identify marks the characteristic written when the host asks the accessory to identify itself.
	Identify bool
}

// Registry is the immutable device registry.
type Registry struct {
	entries   *orderedmap.OrderedMap[string, *Entry]
	byAddress *hashmap.Map[string, *Entry]
}

// New validates the configured device list and builds the registry.
func New(accessories []config.AccessoryConfig) (*Registry, error) {
	if len(accessories) == 0 {
		return nil, configErr(-1, "", "no accessories configured")
	}

	r := &Registry{
		entries:   orderedmap.New[string, *Entry](),
		byAddress: hashmap.New[string, *Entry](),
	}

	for i, ac := range accessories {
		id := strings.TrimSpace(ac.ID)
		if id == "" {
			return nil, configErr(i, "", "id is required")
		}
		if _, exists := r.entries.Get(id); exists {
			return nil, configErr(i, id, "duplicate id")
		}
		if strings.TrimSpace(ac.Address) == "" {
			return nil, configErr(i, id, "address is required")
		}
		address, err := device.ValidateAddress(ac.Address)
		if err != nil {
			return nil, configErr(i, id, "%v", err)
		}
		if other, exists := r.byAddress.Get(address); exists {
			return nil, configErr(i, id, "address %s is already used by %q", ac.Address, other.ID)
		}

		modelName := ac.Model
		if modelName == "" {
			modelName = "battery"
		}
		model, ok := LookupModel(modelName)
		if !ok {
			return nil, configErr(i, id, "unknown model %q", ac.Model)
		}

		services, err := selectServices(model, ac.Services)
		if err != nil {
			return nil, configErr(i, id, "%v", err)
		}

		name := ac.Name
		if name == "" {
			name = id
		}

		entry := &Entry{
			ID:       id,
			Address:  address,
			Name:     name,
			Model:    model.Name,
			Services: services,
		}
		r.entries.Set(id, entry)
		r.byAddress.Set(address, entry)
	}

	return r, nil
}

func selectServices(model *Model, filter []string) ([]*ServiceSpec, error) {
	if len(filter) == 0 {
		services := make([]*ServiceSpec, 0, len(model.Services))
		for _, s := range model.Services {
			services = append(services, s.clone())
		}
		return services, nil
	}

	uuids, err := device.ValidateUUID(filter...)
	if err != nil {
		return nil, err
	}

	services := make([]*ServiceSpec, 0, len(uuids))
	seen := make(map[string]bool, len(uuids))
	for _, u := range uuids {
		if seen[u] {
			continue
		}
		seen[u] = true

		var found *ServiceSpec
		for _, s := range model.Services {
			if s.UUID == u {
				found = s
				break
			}
		}
		if found == nil {
			return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{u}}
		}
		services = append(services, found.clone())
	}
	return services, nil
}

// Get returns the entry with the given id.
func (r *Registry) Get(id string) (*Entry, bool) {
	return r.entries.Get(id)
}

// LookupAddress returns the entry whose address matches, in any notation.
func (r *Registry) LookupAddress(address string) (*Entry, bool) {
	return r.byAddress.Get(bledb.NormalizeAddress(address))
}

// Entries returns all entries in configuration order.
func (r *Registry) Entries() []*Entry {
	entries := make([]*Entry, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, pair.Value)
	}
	return entries
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return r.entries.Len()
}
