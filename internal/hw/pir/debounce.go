package pir

import (
	"time"

	"github.com/cjeanneret/PirSnap/internal/hw/gpio"
)

// Debouncer reports a level change only after the new level has been
// observed continuously for the debounce window.
type Debouncer struct {
	window time.Duration

	stable    gpio.Level
	pending   bool
	candidate gpio.Level
	since     time.Time
}

// NewDebouncer starts with the given stable level.
func NewDebouncer(initial gpio.Level, window time.Duration) *Debouncer {
	return &Debouncer{window: window, stable: initial}
}

// Stable returns the last accepted level.
func (d *Debouncer) Stable() gpio.Level {
	return d.stable
}

// Sample feeds one reading taken at now. It returns the edge and true when
// the reading completes a debounced transition.
func (d *Debouncer) Sample(level gpio.Level, now time.Time) (Edge, bool) {
	if level == d.stable {
		// glitch ended before the window elapsed
		d.pending = false
		return 0, false
	}

	if !d.pending || d.candidate != level {
		d.pending = true
		d.candidate = level
		d.since = now
	}

	if now.Sub(d.since) < d.window {
		return 0, false
	}

	d.stable = level
	d.pending = false
	if level == gpio.High {
		return Rising, true
	}
	return Falling, true
}
