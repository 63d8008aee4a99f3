package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/PirSnap/internal/hw/pir"
)

var errDeviceBusy = errors.New("device busy")

// recordingIndicator records every value written to the LED.
type recordingIndicator struct {
	mu     sync.Mutex
	values []bool
}

func (r *recordingIndicator) Set(on bool) error {
	r.mu.Lock()
	r.values = append(r.values, on)
	r.mu.Unlock()
	return nil
}

func (r *recordingIndicator) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.values...)
}

func (r *recordingIndicator) last() bool {
	v := r.snapshot()
	return len(v) > 0 && v[len(v)-1]
}

// fakeCamera counts captures and tracks how many run at once.
type fakeCamera struct {
	capture   func(ctx context.Context) ([]byte, error)
	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (c *fakeCamera) CaptureStill(ctx context.Context) ([]byte, error) {
	c.calls.Add(1)
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		m := c.maxActive.Load()
		if n <= m || c.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if c.capture == nil {
		return []byte("jpeg"), nil
	}
	return c.capture(ctx)
}

// fakeStore records uploaded names.
type fakeStore struct {
	upload func(ctx context.Context, name string, data []byte) error

	mu    sync.Mutex
	names []string
}

func (s *fakeStore) Upload(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	if s.upload == nil {
		return nil
	}
	return s.upload(ctx, name, data)
}

func (s *fakeStore) uploaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

type status struct {
	level, msg string
}

// recordingReporter records status messages.
type recordingReporter struct {
	mu   sync.Mutex
	msgs []status
}

func (r *recordingReporter) Broadcast(level, msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, status{level, msg})
	r.mu.Unlock()
}

func (r *recordingReporter) byLevel(level string) []status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []status
	for _, s := range r.msgs {
		if s.level == level {
			out = append(out, s)
		}
	}
	return out
}

func (r *recordingReporter) all() []status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]status(nil), r.msgs...)
}

// stateLog records transitions.
type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(_, to State) {
	l.mu.Lock()
	l.states = append(l.states, to)
	l.mu.Unlock()
}

func (l *stateLog) snapshot() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

type harness struct {
	p      *Pipeline
	cam    *fakeCamera
	store  *fakeStore
	led    *recordingIndicator
	rep    *recordingReporter
	states *stateLog
}

func newHarness(cfg Config) *harness {
	h := &harness{
		cam:    &fakeCamera{},
		store:  &fakeStore{},
		led:    &recordingIndicator{},
		rep:    &recordingReporter{},
		states: &stateLog{},
	}
	h.p = New(cfg, h.cam, h.store, h.led, h.rep)
	h.p.OnTransition(h.states.record)
	h.p.Start(context.Background())
	return h
}

func rising(ms int) pir.MotionEvent {
	return pir.MotionEvent{Edge: pir.Rising, Time: time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)}
}

// gate blocks a fake until released, and signals when it has been entered.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) error {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) open() { g.once.Do(func() { close(g.release) }) }
