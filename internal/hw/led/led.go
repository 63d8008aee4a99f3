// Package led drives the status LED that shows when the device is ready
// for motion.
package led

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/PirSnap/internal/debug"
	"github.com/cjeanneret/PirSnap/internal/hw/gpio"
)

// Indicator drives a status LED on a GPIO output.
// With activeLow the LED is wired between 3V3 and the pin, so LOW lights it.
type Indicator struct {
	gpio      gpio.Driver
	pin       int
	activeLow bool

	mu sync.Mutex
	on bool
}

// New configures pin as an output and returns an Indicator, initially off.
func New(g gpio.Driver, pin int, activeLow bool) (*Indicator, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, fmt.Errorf("setup LED pin %d: %w", pin, err)
	}
	ind := &Indicator{gpio: g, pin: pin, activeLow: activeLow}
	if err := ind.Set(false); err != nil {
		return nil, err
	}
	return ind, nil
}

// Set turns the LED on or off.
func (i *Indicator) Set(on bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	level := gpio.Level(on)
	if i.activeLow {
		level = !level
	}
	debug.Trace("LED pin %d: on=%v (%v)", i.pin, on, level)
	if err := i.gpio.WritePin(i.pin, level); err != nil {
		return fmt.Errorf("write LED pin %d: %w", i.pin, err)
	}
	i.on = on
	return nil
}

// On reports the last value successfully written.
func (i *Indicator) On() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.on
}

// Inert is an indicator for a device whose GPIO failed to initialize.
// It accepts every Set and drives nothing.
type Inert struct{}

func (Inert) Set(bool) error { return nil }
func (Inert) On() bool       { return false }
