package host

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type memoryStore struct {
	mu     sync.Mutex
	loaded []StoredAccessory
	saved  [][]StoredAccessory
	err     error
	saveErr error
}

func (m *memoryStore) Load() ([]StoredAccessory, error) {
	return m.loaded, m.err
}

func (m *memoryStore) Save(accs []StoredAccessory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, accs)
	return nil
}

func (m *memoryStore) last() []StoredAccessory {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

type recordingObserver struct {
	mu      sync.Mutex
	added   []string
	removed []string
	changed []string
	values  []any
}

func (r *recordingObserver) AccessoryAdded(acc *Accessory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, acc.UUID())
}

func (r *recordingObserver) AccessoryRemoved(acc *Accessory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, acc.UUID())
}

func (r *recordingObserver) AccessoryChanged(acc *Accessory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, acc.UUID())
}

func (r *recordingObserver) ValueChanged(_ *Accessory, _ *Service, _ *Characteristic, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, value)
}

type BridgeTestSuite struct {
	suite.Suite
	store    *memoryStore
	observer *recordingObserver
	bridge   *Bridge
}

func (s *BridgeTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	s.store = &memoryStore{}
	s.observer = &recordingObserver{}
	s.bridge = NewBridge(logger, s.store)
	s.bridge.AddObserver(s.observer)
}

func TestBridgeTestSuite(t *testing.T) {
	suite.Run(t, new(BridgeTestSuite))
}

func (s *BridgeTestSuite) TestRegisterPersistsAndNotifies() {
	acc := NewAccessory("Door", GenerateUUID("door1"))
	acc.SetContext("id", "door1")

	s.Require().NoError(s.bridge.RegisterAccessories("blebridge", "Bluetooth", []*Accessory{acc}))

	got, ok := s.bridge.Accessory(acc.UUID())
	s.Require().True(ok)
	s.Same(acc, got)
	s.Equal([]string{acc.UUID()}, s.observer.added)

	saved := s.store.last()
	s.Require().Len(saved, 1)
	s.Equal("door1", saved[0].Context["id"])
	s.Equal("blebridge", saved[0].PluginID)
	s.Equal("Bluetooth", saved[0].Platform)
}

func (s *BridgeTestSuite) TestRegisterSaveFailureKeepsAccessory() {
	disk := errors.New("disk full")
	s.store.saveErr = disk
	acc := NewAccessory("Door", GenerateUUID("door1"))

	err := s.bridge.RegisterAccessories("blebridge", "Bluetooth", []*Accessory{acc})
	s.Require().Error(err)
	s.ErrorIs(err, ErrPersist, "save failure MUST be reported as a persist error")
	s.ErrorIs(err, disk)

	_, ok := s.bridge.Accessory(acc.UUID())
	s.True(ok, "accessory MUST stay registered when only the save failed")
	s.Equal([]string{acc.UUID()}, s.observer.added)
}

func (s *BridgeTestSuite) TestRegisterTwiceIsNoop() {
	acc := NewAccessory("Door", "u1")

	s.Require().NoError(s.bridge.RegisterAccessories("p", "Bluetooth", []*Accessory{acc}))
	s.Require().NoError(s.bridge.RegisterAccessories("p", "Bluetooth", []*Accessory{acc}))

	s.Len(s.bridge.Accessories(), 1, "re-registration MUST NOT duplicate accessories")
	s.Len(s.observer.added, 1)
	s.Len(s.store.saved, 1)
}

func (s *BridgeTestSuite) TestServiceAdditionIsPersisted() {
	acc := NewAccessory("Door", "u1")
	s.Require().NoError(s.bridge.RegisterAccessories("p", "Bluetooth", []*Accessory{acc}))

	acc.AddService("BatteryService", "Battery Service")

	s.Equal([]string{"u1"}, s.observer.changed)
	saved := s.store.last()
	s.Require().Len(saved, 1)
	s.Equal([]StoredService{{Class: "BatteryService", Name: "Battery Service"}}, saved[0].Services)
}

func (s *BridgeTestSuite) TestValueUpdatesReachObservers() {
	acc := NewAccessory("Door", "u1")
	ch := acc.AddService("BatteryService", "").Characteristic("BatteryLevel")

	ch.UpdateValue(10)
	s.Empty(s.observer.values, "unregistered accessory MUST NOT notify")

	s.Require().NoError(s.bridge.RegisterAccessories("p", "Bluetooth", []*Accessory{acc}))
	ch.UpdateValue(90)
	s.Equal([]any{90}, s.observer.values)
}

func (s *BridgeTestSuite) TestUnregister() {
	acc := NewAccessory("Door", "u1")
	s.Require().NoError(s.bridge.RegisterAccessories("p", "Bluetooth", []*Accessory{acc}))

	s.Require().NoError(s.bridge.UnregisterAccessories("p", "Bluetooth", []*Accessory{acc}))
	_, ok := s.bridge.Accessory("u1")
	s.False(ok)
	s.Equal([]string{"u1"}, s.observer.removed)
	s.Empty(s.store.last())

	err := s.bridge.UnregisterAccessories("p", "Bluetooth", []*Accessory{acc})
	s.ErrorIs(err, ErrUnknownAccessory)
}

func (s *BridgeTestSuite) TestRestore() {
	s.store.loaded = []StoredAccessory{
		{UUID: "u1", DisplayName: "Door", PluginID: "p", Platform: "Bluetooth", Context: map[string]string{"id": "door1"},
			Services: []StoredService{{Class: "BatteryService", Name: "Battery Service"}}},
		{UUID: "u2", DisplayName: "Gone", PluginID: "p", Platform: "Bluetooth", Context: map[string]string{"id": "gone"}},
	}

	var seen []string
	err := s.bridge.Restore(func(acc *Accessory) {
		seen = append(seen, acc.Context("id"))
		if acc.Context("id") == "gone" {
			s.Require().NoError(s.bridge.UnregisterAccessories("p", "Bluetooth", []*Accessory{acc}))
		}
	})
	s.Require().NoError(err)

	s.Equal([]string{"door1", "gone"}, seen, "every stored accessory MUST be offered once, in order")
	s.Equal([]string{"u1"}, s.observer.added, "only kept accessories MUST be announced")

	acc, ok := s.bridge.Accessory("u1")
	s.Require().True(ok)
	s.NotNil(acc.Service("BatteryService"), "stored services MUST be restored")
	_, ok = s.bridge.Accessory("u2")
	s.False(ok)
}

func (s *BridgeTestSuite) TestRestoreLoadError() {
	s.store.err = errors.New("disk on fire")
	err := s.bridge.Restore(func(*Accessory) { s.Fail("MUST NOT be called") })
	s.ErrorContains(err, "disk on fire")
}

func (s *BridgeTestSuite) TestSetValueAndIdentify() {
	ctx := context.Background()
	acc := NewAccessory("Tag", "u1")
	ch := acc.AddService("ImmediateAlert", "").Characteristic("AlertLevel")
	s.Require().NoError(s.bridge.RegisterAccessories("p", "Bluetooth", []*Accessory{acc}))

	s.ErrorIs(s.bridge.SetValue(ctx, "missing", "ImmediateAlert", "AlertLevel", 1), ErrUnknownAccessory)
	s.ErrorIs(s.bridge.SetValue(ctx, "u1", "Nope", "AlertLevel", 1), ErrNotBound)
	s.ErrorIs(s.bridge.SetValue(ctx, "u1", "ImmediateAlert", "Nope", 1), ErrNotBound)
	s.ErrorIs(s.bridge.SetValue(ctx, "u1", "ImmediateAlert", "AlertLevel", 1), ErrNotBound)

	var written any
	ch.Bind(nil, func(_ context.Context, v any) error { written = v; return nil })
	s.Require().NoError(s.bridge.SetValue(ctx, "u1", "ImmediateAlert", "AlertLevel", "2"))
	s.Equal("2", written)

	s.ErrorIs(s.bridge.Identify("missing"), ErrUnknownAccessory)
	s.ErrorIs(s.bridge.Identify("u1"), ErrNotBound)
	identified := false
	acc.SetIdentifyHandler(func() { identified = true })
	s.Require().NoError(s.bridge.Identify("u1"))
	s.True(identified)
}
