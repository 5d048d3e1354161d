package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store persists registered accessories between runs.
type Store interface {
	Load() ([]StoredAccessory, error)
	Save(accs []StoredAccessory) error
}

// StoredAccessory is the persisted form of an accessory.
type StoredAccessory struct {
	UUID        string            `yaml:"uuid"`
	DisplayName string            `yaml:"display_name"`
	PluginID    string            `yaml:"plugin_id"`
	Platform    string            `yaml:"platform"`
	Context     map[string]string `yaml:"context,omitempty"`
	Services    []StoredService   `yaml:"services,omitempty"`
}

// StoredService is the persisted form of a service.
type StoredService struct {
	Class string `yaml:"class"`
	Name  string `yaml:"name,omitempty"`
}

func storedFrom(reg *registration) StoredAccessory {
	sa := StoredAccessory{
		UUID:        reg.acc.UUID(),
		DisplayName: reg.acc.DisplayName(),
		PluginID:    reg.pluginID,
		Platform:    reg.platform,
		Context:     reg.acc.ContextMap(),
	}
	for _, svc := range reg.acc.Services() {
		sa.Services = append(sa.Services, StoredService{Class: svc.Class(), Name: svc.Name()})
	}
	return sa
}

func (sa StoredAccessory) accessory() *Accessory {
	acc := NewAccessory(sa.DisplayName, sa.UUID)
	for k, v := range sa.Context {
		acc.SetContext(k, v)
	}
	for _, svc := range sa.Services {
		acc.AddService(svc.Class, svc.Name)
	}
	return acc
}

type storeFile struct {
	Accessories []StoredAccessory `yaml:"accessories"`
}

// YAMLStore keeps accessories in a YAML file.
type YAMLStore struct {
	path string
}

var _ Store = (*YAMLStore)(nil)

// NewYAMLStore creates a store backed by the file at path.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

// Load reads the file. A missing file is an empty store.
func (s *YAMLStore) Load() ([]StoredAccessory, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading accessory store: %w", err)
	}

	var f storeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing accessory store %s: %w", s.path, err)
	}
	return f.Accessories, nil
}

// Save replaces the file contents. The write goes through a temporary file so a
// crash never leaves a truncated store behind.
func (s *YAMLStore) Save(accs []StoredAccessory) error {
	data, err := yaml.Marshal(storeFile{Accessories: accs})
	if err != nil {
		return fmt.Errorf("encoding accessory store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing accessory store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing accessory store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing accessory store: %w", err)
	}
	return nil
}
