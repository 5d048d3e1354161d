package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/srg/blebridge/internal/device"
	"github.com/srg/blebridge/internal/host"
)

type fakeAdvertisement struct {
	addr string
	name string
	rssi int
}

func (a *fakeAdvertisement) LocalName() string        { return a.name }
func (a *fakeAdvertisement) ManufacturerData() []byte { return nil }
func (a *fakeAdvertisement) Services() []string       { return nil }
func (a *fakeAdvertisement) TxPowerLevel() int        { return 0 }
func (a *fakeAdvertisement) Connectable() bool        { return true }
func (a *fakeAdvertisement) RSSI() int                { return a.rssi }
func (a *fakeAdvertisement) Addr() string             { return a.addr }

// fakeAdapter scans until cancelled and hands out pre-registered peripherals.
type fakeAdapter struct {
	states chan device.AdapterState

	mu          sync.Mutex
	handler     func(device.Advertisement)
	scans       int
	connects    map[string]int
	connectFn   func(ctx context.Context, address string) (device.Peripheral, error)
	peripherals map[string]*fakePeripheral
	closed      bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		states:      make(chan device.AdapterState, 8),
		connects:    make(map[string]int),
		peripherals: make(map[string]*fakePeripheral),
	}
}

func (f *fakeAdapter) Open(context.Context) (<-chan device.AdapterState, error) {
	return f.states, nil
}

func (f *fakeAdapter) Scan(ctx context.Context, _ []string, _ bool, handler func(device.Advertisement)) error {
	f.mu.Lock()
	f.scans++
	f.handler = handler
	f.mu.Unlock()

	<-ctx.Done()

	f.mu.Lock()
	f.handler = nil
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) Connect(ctx context.Context, address string) (device.Peripheral, error) {
	key := device.NormalizeAddress(address)

	f.mu.Lock()
	f.connects[key]++
	fn := f.connectFn
	per := f.peripherals[key]
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, address)
	}
	if per == nil {
		return nil, errors.New("device not reachable")
	}
	per.connect()
	return per, nil
}

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeAdapter) add(per *fakePeripheral) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peripherals[device.NormalizeAddress(per.address)] = per
}

func (f *fakeAdapter) setConnectFn(fn func(ctx context.Context, address string) (device.Peripheral, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectFn = fn
}

func (f *fakeAdapter) advertise(addr string) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(&fakeAdvertisement{addr: addr, name: "fake", rssi: -60})
	return true
}

func (f *fakeAdapter) scanning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

func (f *fakeAdapter) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

func (f *fakeAdapter) connectCount(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects[device.NormalizeAddress(address)]
}

type fakeService struct {
	uuid string
}

func (s *fakeService) UUID() string { return s.uuid }

type fakePeripheral struct {
	address string

	mu           sync.Mutex
	services     []device.Service
	chars        map[string][]device.Characteristic
	servicesErr  error
	servicesGate chan struct{}
	charsErr     error
	charsGate    chan struct{}
	serviceCalls int
	charCalls    map[string]int
	discon       chan struct{}
	disconnects  int
}

func newFakePeripheral(address string) *fakePeripheral {
	return &fakePeripheral{
		address:   address,
		chars:     make(map[string][]device.Characteristic),
		charCalls: make(map[string]int),
		discon:    make(chan struct{}),
	}
}

func (p *fakePeripheral) withService(uuid string, chars ...*fakeCharacteristic) *fakePeripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services = append(p.services, &fakeService{uuid: uuid})
	for _, c := range chars {
		p.chars[device.NormalizeUUID(uuid)] = append(p.chars[device.NormalizeUUID(uuid)], c)
	}
	return p
}

func (p *fakePeripheral) connect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discon = make(chan struct{})
}

// drop simulates the remote side going away.
func (p *fakePeripheral) drop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.discon:
	default:
		close(p.discon)
	}
}

func (p *fakePeripheral) Address() string { return p.address }
func (p *fakePeripheral) Name() string    { return "fake" }

func (p *fakePeripheral) DiscoverServices(ctx context.Context, _ []string) ([]device.Service, error) {
	p.mu.Lock()
	p.serviceCalls++
	gate := p.servicesGate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]device.Service(nil), p.services...), p.servicesErr
}

func (p *fakePeripheral) DiscoverCharacteristics(ctx context.Context, svc device.Service, _ []string) ([]device.Characteristic, error) {
	key := device.NormalizeUUID(svc.UUID())
	p.mu.Lock()
	p.charCalls[key]++
	gate := p.charsGate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.charsErr != nil {
		return nil, p.charsErr
	}
	return append([]device.Characteristic(nil), p.chars[key]...), nil
}

func (p *fakePeripheral) Disconnected() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discon
}

func (p *fakePeripheral) Disconnect() error {
	p.mu.Lock()
	p.disconnects++
	p.mu.Unlock()
	p.drop()
	return nil
}

func (p *fakePeripheral) disconnectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

func (p *fakePeripheral) serviceCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serviceCalls
}

func (p *fakePeripheral) charCallCount(uuid string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.charCalls[device.NormalizeUUID(uuid)]
}

type fakeCharacteristic struct {
	uuid  string
	props device.Property

	mu           sync.Mutex
	value        []byte
	writes       [][]byte
	handler      func([]byte)
	unsubscribes int
}

func newFakeCharacteristic(uuid string, props device.Property, value ...byte) *fakeCharacteristic {
	return &fakeCharacteristic{uuid: uuid, props: props, value: value}
}

func (c *fakeCharacteristic) UUID() string                { return c.uuid }
func (c *fakeCharacteristic) Properties() device.Property { return c.props }

func (c *fakeCharacteristic) Read(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.value...), nil
}

func (c *fakeCharacteristic) Write(_ context.Context, data []byte, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeCharacteristic) Subscribe(handler func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
	return nil
}

func (c *fakeCharacteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = nil
	c.unsubscribes++
	return nil
}

func (c *fakeCharacteristic) subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

func (c *fakeCharacteristic) notify(data []byte) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(data)
	}
}

func (c *fakeCharacteristic) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

// countingRegistry records host registry calls on top of a real bridge.
type countingRegistry struct {
	*host.Bridge

	mu            sync.Mutex
	registers     int
	unregisters   int
	failRegisters int
}

func (r *countingRegistry) RegisterAccessories(pluginID, platform string, accs []*host.Accessory) error {
	r.mu.Lock()
	r.registers++
	fail := r.failRegisters > 0
	if fail {
		r.failRegisters--
	}
	r.mu.Unlock()
	if fail {
		return errors.New("host registry unavailable")
	}
	return r.Bridge.RegisterAccessories(pluginID, platform, accs)
}

func (r *countingRegistry) UnregisterAccessories(pluginID, platform string, accs []*host.Accessory) error {
	r.mu.Lock()
	r.unregisters++
	r.mu.Unlock()
	return r.Bridge.UnregisterAccessories(pluginID, platform, accs)
}

func (r *countingRegistry) counts() (registers, unregisters int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registers, r.unregisters
}

// failingStore loads nothing and refuses every save.
type failingStore struct{}

func (failingStore) Load() ([]host.StoredAccessory, error) { return nil, nil }
func (failingStore) Save([]host.StoredAccessory) error     { return errors.New("read-only file system") }
