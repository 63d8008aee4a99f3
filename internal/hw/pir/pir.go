// Package pir turns a PIR sensor's GPIO output into debounced motion edges.
package pir

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cjeanneret/PirSnap/internal/debug"
	"github.com/cjeanneret/PirSnap/internal/hw/gpio"
)

// Edge is the direction of a signal transition.
type Edge int

const (
	Falling Edge = iota
	Rising
)

func (e Edge) String() string {
	if e == Rising {
		return "rising"
	}
	return "falling"
}

// MotionEvent is one debounced transition of the sensor line.
type MotionEvent struct {
	Edge Edge
	Time time.Time
}

// Config holds the sensor line configuration.
type Config struct {
	Pin          int
	Debounce     time.Duration // transitions shorter than this are ignored
	PollInterval time.Duration // how often the line is sampled
	PullDown     bool          // enable the internal pull-down resistor
}

// Sensor polls a GPIO input and delivers debounced edges to subscribers.
type Sensor struct {
	gpio gpio.Driver
	cfg  Config
	deb  *Debouncer

	mu   sync.Mutex
	subs []func(MotionEvent)
}

// New configures pin as an input and returns a Sensor reading it.
// Debounce defaults to 50ms and PollInterval to 5ms.
func New(g gpio.Driver, cfg Config) (*Sensor, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 50 * time.Millisecond
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}

	mode := gpio.Input
	if cfg.PullDown {
		mode = gpio.InputPullDown
	}
	if err := g.SetupPin(cfg.Pin, mode); err != nil {
		return nil, fmt.Errorf("setup PIR pin %d: %w", cfg.Pin, err)
	}

	initial, err := g.ReadPin(cfg.Pin)
	if err != nil {
		return nil, fmt.Errorf("read PIR pin %d: %w", cfg.Pin, err)
	}

	return &Sensor{
		gpio: g,
		cfg:  cfg,
		deb:  NewDebouncer(initial, cfg.Debounce),
	}, nil
}

// Subscribe registers fn to be called for every debounced edge.
// Callbacks run on the polling goroutine and must not block.
func (s *Sensor) Subscribe(fn func(MotionEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Run samples the line until ctx is done. Read errors are logged and the
// sample is skipped.
func (s *Sensor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	debug.Verbose("PIR: polling pin %d every %v (debounce %v)", s.cfg.Pin, s.cfg.PollInterval, s.cfg.Debounce)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.sample(now)
		}
	}
}

func (s *Sensor) sample(now time.Time) {
	level, err := s.gpio.ReadPin(s.cfg.Pin)
	if err != nil {
		debug.Error(fmt.Errorf("read PIR pin %d: %w", s.cfg.Pin, err))
		return
	}

	edge, ok := s.deb.Sample(level, now)
	if !ok {
		return
	}
	debug.Motion(s.cfg.Pin, edge.String())
	s.emit(MotionEvent{Edge: edge, Time: now})
}

func (s *Sensor) emit(ev MotionEvent) {
	s.mu.Lock()
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
