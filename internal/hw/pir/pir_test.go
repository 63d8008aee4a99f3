package pir

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/PirSnap/internal/hw/gpio"
)

type eventLog struct {
	mu     sync.Mutex
	events []MotionEvent
}

func (l *eventLog) add(ev MotionEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []MotionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]MotionEvent(nil), l.events...)
}

func TestSensor_DefaultsApplied(t *testing.T) {
	s, err := New(&gpio.MockDriver{}, Config{Pin: 16})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.cfg.Debounce != 50*time.Millisecond {
		t.Errorf("Debounce = %v, want 50ms", s.cfg.Debounce)
	}
	if s.cfg.PollInterval != 5*time.Millisecond {
		t.Errorf("PollInterval = %v, want 5ms", s.cfg.PollInterval)
	}
}

func TestSensor_SampleDeliversDebouncedEdges(t *testing.T) {
	drv := &gpio.MockDriver{}
	s, err := New(drv, Config{Pin: 16, Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log := &eventLog{}
	s.Subscribe(log.add)

	drv.SetInput(16, gpio.High)
	s.sample(at(0))
	s.sample(at(30))
	s.sample(at(60))

	drv.SetInput(16, gpio.Low)
	s.sample(at(100))
	s.sample(at(160))

	events := log.snapshot()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	if events[0].Edge != Rising || !events[0].Time.Equal(at(60)) {
		t.Errorf("event 0 = %+v, want rising at 60ms", events[0])
	}
	if events[1].Edge != Falling || !events[1].Time.Equal(at(160)) {
		t.Errorf("event 1 = %+v, want falling at 160ms", events[1])
	}
}

func TestSensor_MultipleSubscribers(t *testing.T) {
	drv := &gpio.MockDriver{}
	s, _ := New(drv, Config{Pin: 16, Debounce: time.Millisecond})
	a, b := &eventLog{}, &eventLog{}
	s.Subscribe(a.add)
	s.Subscribe(b.add)

	drv.SetInput(16, gpio.High)
	s.sample(at(0))
	s.sample(at(5))

	if len(a.snapshot()) != 1 || len(b.snapshot()) != 1 {
		t.Errorf("subscribers got %d and %d events, want 1 each", len(a.snapshot()), len(b.snapshot()))
	}
}

func TestSensor_RunStopsOnCancel(t *testing.T) {
	drv := &gpio.MockDriver{}
	s, _ := New(drv, Config{Pin: 16, Debounce: time.Millisecond, PollInterval: time.Millisecond})
	log := &eventLog{}
	s.Subscribe(log.add)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	drv.SetInput(16, gpio.High)
	deadline := time.After(2 * time.Second)
	for len(log.snapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for rising edge from Run")
		case <-time.After(2 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type failingDriver struct{ gpio.MockDriver }

func (f *failingDriver) SetupPin(int, gpio.PinMode) error { return errors.New("no gpiomem") }

func TestNew_SetupError(t *testing.T) {
	if _, err := New(&failingDriver{}, Config{Pin: 16}); err == nil {
		t.Error("expected setup error, got nil")
	}
}
