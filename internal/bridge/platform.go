// Package bridge drives configured BLE peripherals from advertisement to bound
// host accessory: it scans, matches advertisements against the registry,
// connects, discovers services and characteristics, binds them to host
// accessories and unwinds everything on disconnect.
//
// All per-device state is owned by a single event loop (Platform.Run).
// Transport calls run on worker goroutines and report back through events.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blebridge/internal/device"
	"github.com/srg/blebridge/internal/groutine"
	"github.com/srg/blebridge/internal/host"
	"github.com/srg/blebridge/internal/registry"
	"github.com/srg/blebridge/internal/ringchan"
	"golang.org/x/time/rate"
)

// ContextKeyID is the accessory context key holding the registry entry id.
const ContextKeyID = "id"

const (
	eventBuffer         = 64
	advertisementBuffer = 256
)

// ErrAlreadyRunning is returned by Run when the platform is already running.
var ErrAlreadyRunning = errors.New("platform is already running")

// Options configures a Platform.
type Options struct {
	PluginID string
	Platform string

	// Zero disables the bound.
	ConnectTimeout   time.Duration
	DiscoveryTimeout time.Duration

	// UnmatchedLogInterval spaces trace logs about unrelated devices.
	UnmatchedLogInterval time.Duration
}

// DefaultOptions returns the default platform options.
func DefaultOptions() Options {
	return Options{
		PluginID:             "blebridge",
		Platform:             "Bluetooth",
		ConnectTimeout:       30 * time.Second,
		DiscoveryTimeout:     20 * time.Second,
		UnmatchedLogInterval: time.Second,
	}
}

// Platform bridges the registry's devices into a host registry.
type Platform struct {
	adapter  device.Adapter
	host     host.Registry
	registry *registry.Registry
	logger   *logrus.Logger
	opts     Options

	devices   map[string]*liveDevice
	events    chan event
	ads       *ringchan.RingChannel[advertisement]
	scan      *scanSupervisor
	unmatched *rate.Limiter

	runCtx     context.Context
	done       chan struct{}
	workers    groutine.Group
	background groutine.Group

	runMu   sync.Mutex
	running bool

	stateMu sync.RWMutex
	states  map[string]State
}

// New creates a platform for every entry of reg. Transport and host registry
// are injected; the platform owns neither.
func New(adapter device.Adapter, hostRegistry host.Registry, reg *registry.Registry, logger *logrus.Logger, opts Options) *Platform {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.UnmatchedLogInterval <= 0 {
		opts.UnmatchedLogInterval = time.Second
	}

	ads := ringchan.New[advertisement](advertisementBuffer)
	p := &Platform{
		adapter:   adapter,
		host:      hostRegistry,
		registry:  reg,
		logger:    logger,
		opts:      opts,
		devices:   make(map[string]*liveDevice, reg.Len()),
		events:    make(chan event, eventBuffer),
		ads:       ads,
		scan:      newScanSupervisor(adapter, logger, ads),
		unmatched: rate.NewLimiter(rate.Every(opts.UnmatchedLogInterval), 1),
		done:      make(chan struct{}),
		states:    make(map[string]State, reg.Len()),
	}
	for _, entry := range reg.Entries() {
		p.devices[entry.ID] = newLiveDevice(entry)
		p.states[entry.ID] = StateIdle
	}
	return p
}

// Run opens the adapter and processes events until ctx is done. On return all
// connections are dropped and the adapter is closed.
func (p *Platform) Run(ctx context.Context) error {
	p.runMu.Lock()
	if p.running {
		p.runMu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.runMu.Unlock()

	states, err := p.adapter.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.adapter.Close(); err != nil {
			p.logger.WithField("error", err).Debug("Failed to close adapter")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.runCtx = ctx

	p.background.Go(ctx, "ble-scan-supervisor", p.scan.run)

	p.logger.WithFields(logrus.Fields{
		"platform": p.opts.Platform,
		"devices":  len(p.devices),
	}).Info("Started")

	defer p.shutdown(cancel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			p.onAdapterStateChanged(state)
		case ad := <-p.ads.C():
			p.onAdvertisement(ad)
		case ev := <-p.events:
			p.dispatch(ev)
		}
	}
}

func (p *Platform) shutdown(cancel context.CancelFunc) {
	cancel()
	close(p.done)

	for _, dev := range p.devices {
		if dev.peripheral != nil {
			p.release(dev)
		}
	}

	p.workers.Wait()
	p.drainEvents()
	p.background.Wait()
	p.ads.Close()
	p.logger.Info("Stopped platform")
}

// drainEvents drops events queued after the loop stopped, disconnecting any
// peripheral a late connect handed over.
func (p *Platform) drainEvents() {
	for {
		select {
		case ev := <-p.events:
			if res, ok := ev.(connectResult); ok && res.peripheral != nil {
				if err := res.peripheral.Disconnect(); err != nil {
					p.logger.WithFields(logrus.Fields{
						"id":    res.id,
						"error": err,
					}).Debug("Disconnect failed")
				}
			}
		default:
			return
		}
	}
}

func (p *Platform) dispatch(ev event) {
	switch e := ev.(type) {
	case connectResult:
		p.onConnectResult(e)
	case disconnected:
		p.onDisconnected(e)
	case servicesDiscovered:
		p.onServicesDiscovered(e)
	case characteristicsDiscovered:
		p.onCharacteristicsDiscovered(e)
	case identifyRequested:
		p.onIdentifyRequested(e)
	}
}

// post delivers ev to the event loop. It returns false once the loop has exited.
func (p *Platform) post(ev event) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.events <- ev:
		return true
	case <-p.done:
		return false
	}
}

// onAdapterStateChanged stops scanning for any state but poweredOn, then
// restarts it unconditionally.
func (p *Platform) onAdapterStateChanged(state device.AdapterState) {
	if state != device.StatePoweredOn {
		p.logger.WithField("state", state).Info("Stopped")
		p.scan.stop()
	}
	p.scan.start()
}

// ConfigureAccessory adopts an accessory persisted by the host. It must be
// called before Run, once per persisted accessory. Accessories whose entry is
// no longer configured are unregistered.
func (p *Platform) ConfigureAccessory(acc *host.Accessory) {
	p.runMu.Lock()
	running := p.running
	p.runMu.Unlock()
	if running {
		p.logger.WithField("uuid", acc.UUID()).Error("Accessory restore after start ignored")
		return
	}

	id := acc.Context(ContextKeyID)
	dev, ok := p.devices[id]
	if !ok {
		p.logger.WithFields(logrus.Fields{
			"id":   id,
			"name": acc.DisplayName(),
		}).Info("Removed")
		if err := p.host.UnregisterAccessories(p.opts.PluginID, p.opts.Platform, []*host.Accessory{acc}); err != nil {
			p.logger.WithFields(logrus.Fields{
				"id":    id,
				"error": err,
			}).Error("Unregistering accessory failed")
		}
		return
	}

	p.logger.WithFields(logrus.Fields{
		"id":   id,
		"name": acc.DisplayName(),
	}).Info("Persist")
	dev.accessory = acc
	dev.registered = true
}

// States returns a snapshot of every entry's state.
func (p *Platform) States() map[string]State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	snapshot := make(map[string]State, len(p.states))
	for id, s := range p.states {
		snapshot[id] = s
	}
	return snapshot
}

// State returns the current state of one entry.
func (p *Platform) State(id string) (State, bool) {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	s, ok := p.states[id]
	return s, ok
}

func (p *Platform) setState(dev *liveDevice, state State) {
	if dev.state == state {
		return
	}
	p.logger.WithFields(logrus.Fields{
		"id":    dev.entry.ID,
		"from":  dev.state,
		"state": state,
	}).Debug("State changed")

	dev.state = state
	p.stateMu.Lock()
	p.states[dev.entry.ID] = state
	p.stateMu.Unlock()
}

// withTimeout bounds ctx by d unless d is zero.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (p *Platform) deviceFields(dev *liveDevice) logrus.Fields {
	return logrus.Fields{
		"id":      dev.entry.ID,
		"name":    dev.entry.Name,
		"address": dev.address,
		"session": dev.session,
	}
}
