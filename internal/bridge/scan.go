package bridge

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/blebridge/internal/device"
	"github.com/srg/blebridge/internal/groutine"
	"github.com/srg/blebridge/internal/ringchan"
)

type scanCommand int

const (
	scanStart scanCommand = iota
	scanStop
)

// scanSupervisor serializes scan start/stop requests so that at most one scan
// is active. Every start gets a new generation; advertisements from earlier
// generations are dropped by the event loop.
type scanSupervisor struct {
	adapter device.Adapter
	logger  *logrus.Logger
	ads     *ringchan.RingChannel[advertisement]
	cmds    *ringchan.RingChannel[scanCommand]

	generation atomic.Uint64
	starts     atomic.Int64
}

func newScanSupervisor(adapter device.Adapter, logger *logrus.Logger, ads *ringchan.RingChannel[advertisement]) *scanSupervisor {
	return &scanSupervisor{
		adapter: adapter,
		logger:  logger,
		ads:     ads,
		cmds:    ringchan.New[scanCommand](16),
	}
}

// start (re)starts scanning with no service filter and duplicates allowed.
func (s *scanSupervisor) start() {
	s.cmds.Send(scanStart)
}

func (s *scanSupervisor) stop() {
	s.cmds.Send(scanStop)
}

// rearm restarts scanning after a disconnect.
func (s *scanSupervisor) rearm() {
	s.start()
}

func (s *scanSupervisor) current() uint64 {
	return s.generation.Load()
}

func (s *scanSupervisor) run(ctx context.Context) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	stopCurrent := func() {
		if cancel == nil {
			return
		}
		cancel()
		<-done
		cancel = nil
	}
	defer stopCurrent()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds.C():
			stopCurrent()
			gen := s.generation.Add(1)
			if cmd == scanStop {
				s.logger.Debug("Scanning stopped")
				continue
			}

			scanCtx, c := context.WithCancel(ctx)
			d := make(chan struct{})
			cancel, done = c, d
			s.starts.Add(1)

			groutine.Go(scanCtx, "ble-scan", func(ctx context.Context) {
				defer close(d)
				s.logger.WithField("generation", gen).Debug("Scanning started")
				err := s.adapter.Scan(ctx, nil, true, func(adv device.Advertisement) {
					s.ads.Send(advertisement{generation: gen, adv: adv})
				})
				if err != nil {
					s.logger.WithField("error", err).Error("Scanning failed")
				}
			})
		}
	}
}
