// Package poller runs the recurring incremental-sync loop with an adaptive
// interval: ticks speed up while changes are flowing, slow down when the
// system is quiet, and back off exponentially on persistent server errors.
// An unreachable server is not punished with backoff; the loop keeps
// retrying near the current interval.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/remote"
)

// Defaults for the adaptive interval.
const (
	DefaultInitialInterval   = 30 * time.Second
	DefaultMinInterval       = 10 * time.Second
	DefaultMaxInterval       = 5 * time.Minute
	DefaultBackoffMultiplier = 1.5

	shrinkFactor = 0.8
	growFactor   = 1.2

	// stopWait bounds how long Stop blocks on an in-flight tick.
	stopWait = 1500 * time.Millisecond
)

// TickFunc executes one polling pass (upload pending, download cloud
// changes). It reports whether anything actually moved, so the poller can
// adapt its interval.
type TickFunc func(ctx context.Context) (activity bool, err error)

// Config tunes the adaptive interval. Zero fields take the defaults.
type Config struct {
	InitialInterval   time.Duration
	MinInterval       time.Duration
	MaxInterval       time.Duration
	BackoffMultiplier float64
	Adaptive          bool
}

func (c Config) withDefaults() Config {
	if c.InitialInterval <= 0 {
		c.InitialInterval = DefaultInitialInterval
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultMaxInterval
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = DefaultBackoffMultiplier
	}
	return c
}

// Poller owns the recurring sync timer.
type Poller struct {
	cfg    Config
	tick   TickFunc
	logger *slog.Logger

	mu                sync.Mutex
	running           bool
	interval          time.Duration
	consecutiveErrors int
	stopCh            chan struct{}
	triggerCh         chan struct{}
	doneCh            chan struct{}

	paused atomic.Bool
}

// New creates a poller; Start begins ticking.
func New(cfg Config, tick TickFunc, logger *slog.Logger) *Poller {
	cfg = cfg.withDefaults()
	return &Poller{
		cfg:      cfg,
		tick:     tick,
		logger:   logger,
		interval: cfg.InitialInterval,
	}
}

// Start launches the polling loop. Starting a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.interval = p.cfg.InitialInterval
	p.consecutiveErrors = 0
	p.stopCh = make(chan struct{})
	p.triggerCh = make(chan struct{}, 1)
	p.doneCh = make(chan struct{})

	go p.loop(p.stopCh, p.triggerCh, p.doneCh)
	p.logger.Info("polling started", "interval", p.interval)
}

// Stop halts the loop, waiting up to 1.5s for an in-flight tick before
// returning anyway.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(stopWait):
		p.logger.Warn("polling stop timed out waiting for in-flight tick")
	}
}

// Pause suspends ticking without tearing down the timer. Used while a full
// sync owns the tables.
func (p *Poller) Pause() {
	p.paused.Store(true)
}

// Resume re-enables ticking after Pause.
func (p *Poller) Resume() {
	p.paused.Store(false)
}

// TriggerNow schedules an immediate tick if the loop is running. Coalesces
// with an already-queued trigger.
func (p *Poller) TriggerNow() {
	p.mu.Lock()
	running, triggerCh := p.running, p.triggerCh
	p.mu.Unlock()
	if !running {
		return
	}
	select {
	case triggerCh <- struct{}{}:
	default:
	}
}

// NotifyLocalChange lets the poller serve as the storage layer's change
// notifier: a local write schedules an immediate tick.
func (p *Poller) NotifyLocalChange(table string) {
	p.TriggerNow()
}

// Interval returns the current adaptive interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(stopCh, triggerCh chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopCh
		cancel()
	}()

	timer := time.NewTimer(p.Interval())
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-triggerCh:
		case <-timer.C:
		}

		if !p.paused.Load() {
			p.performTick(ctx)
		}

		select {
		case <-stopCh:
			return
		default:
		}
		timer.Reset(p.Interval())
	}
}

func (p *Poller) performTick(ctx context.Context) {
	activity, err := p.tick(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case err == nil:
		p.consecutiveErrors = 0
		if p.cfg.Adaptive {
			if activity {
				p.interval = clamp(time.Duration(float64(p.interval)*shrinkFactor), p.cfg.MinInterval, p.cfg.MaxInterval)
			} else {
				p.interval = clamp(time.Duration(float64(p.interval)*growFactor), p.cfg.MinInterval, p.cfg.MaxInterval)
			}
		}

	case errors.Is(err, remote.ErrNetworkUnavailable):
		// Offline is not a failure streak; retry near the current interval.
		p.logger.Debug("polling tick skipped, server unreachable", "interval", p.interval)

	case errors.Is(err, context.Canceled):

	default:
		p.consecutiveErrors++
		backoff := float64(p.cfg.InitialInterval) * math.Pow(p.cfg.BackoffMultiplier, float64(p.consecutiveErrors))
		p.interval = clamp(time.Duration(backoff), p.cfg.MinInterval, p.cfg.MaxInterval)
		p.logger.Warn("polling tick failed",
			"error", err, "consecutive", p.consecutiveErrors, "next_interval", p.interval)
	}
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
