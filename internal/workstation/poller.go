package workstation

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPollInterval is the fixed delay between fetch-and-merge ticks.
	DefaultPollInterval = 3 * time.Second
	// MaxConsecutiveFailures stops a poll run after this many failed ticks in a row.
	MaxConsecutiveFailures = 5
)

// Ticker is the subset of time.Ticker the poller needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// TickFunc runs one fetch-and-merge cycle and reports whether work is still pending.
type TickFunc func(ctx context.Context, shotID string) (pending bool, err error)

// Poller re-runs a TickFunc at a fixed interval while generations are pending.
// It moves idle → polling → idle; Start while polling is a no-op.
type Poller struct {
	tick      TickFunc
	interval  time.Duration
	newTicker TickerFactory

	mu     sync.Mutex
	shotID string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates an idle poller. A non-positive interval falls back to
// DefaultPollInterval and a nil factory to NewTimeTicker.
func NewPoller(tick TickFunc, interval time.Duration, newTicker TickerFactory) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	return &Poller{tick: tick, interval: interval, newTicker: newTicker}
}

// Start begins polling shotID. It returns false if a poll run is already active.
func (p *Poller) Start(shotID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.shotID = shotID
	p.cancel = cancel
	p.done = done

	ticker := p.newTicker(p.interval)
	go p.run(ctx, shotID, ticker, done)

	logrus.WithFields(logrus.Fields{
		"shot_id":  shotID,
		"interval": p.interval.String(),
	}).Debug("poller: started")
	return true
}

// Stop cancels the active run, if any. It never blocks on an in-flight tick.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detach()
}

// Polling reports whether a run is active.
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

// Done returns a channel closed when the current run exits, or nil when idle.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return nil
	}
	return p.done
}

func (p *Poller) detach() {
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = nil
	p.done = nil
	p.shotID = ""
}

func (p *Poller) run(ctx context.Context, shotID string, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.detach()
		}
		p.mu.Unlock()
	}()

	failures := 0
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			ticks++

			pending, err := p.tick(ctx, shotID)
			if err != nil {
				failures++
				logrus.WithError(err).WithFields(logrus.Fields{
					"shot_id":  shotID,
					"tick":     ticks,
					"failures": failures,
				}).Warn("poller: tick failed")
				if failures >= MaxConsecutiveFailures {
					logrus.WithField("shot_id", shotID).Warn("poller: giving up after repeated failures")
					return
				}
				continue
			}
			failures = 0

			logrus.WithFields(logrus.Fields{
				"shot_id": shotID,
				"tick":    ticks,
				"pending": pending,
			}).Debug("poller: tick")

			if !pending {
				return
			}
		}
	}
}
