// Package pipeline runs one capture-then-upload cycle per admitted motion
// event and keeps the status LED in step with the cycle state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tevino/abool"

	"github.com/cjeanneret/PirSnap/internal/debug"
	"github.com/cjeanneret/PirSnap/internal/hw/pir"
)

// Capturer takes one still image.
type Capturer interface {
	CaptureStill(ctx context.Context) ([]byte, error)
}

// Uploader writes an image to the remote store under name.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) error
}

// Indicator is the status LED.
type Indicator interface {
	Set(on bool) error
}

// Reporter receives human-readable status messages ("info", "warn", "error").
type Reporter interface {
	Broadcast(level, msg string)
}

// Image is a captured still and its store name.
type Image struct {
	Name    string
	Data    []byte
	TakenAt time.Time
}

// Config holds the pipeline parameters.
type Config struct {
	NamePrefix     string        // object name prefix, "motion" if empty
	SaveDir        string        // if set, every capture is also written here
	CaptureTimeout time.Duration // 0 = wait for the camera indefinitely
	UploadTimeout  time.Duration // 0 = wait for the store indefinitely
}

// Pipeline owns the single-flight guard and the cycle state.
// At most one cycle is in flight: motion arriving during a cycle is dropped.
type Pipeline struct {
	cfg       Config
	camera    Capturer
	store     Uploader
	indicator Indicator
	reporter  Reporter
	now       func() time.Time

	busy *abool.AtomicBool
	wg   sync.WaitGroup

	mu        sync.Mutex
	ctx       context.Context
	state     State
	preview   *Image
	observers []func(from, to State)
}

// New creates an Idle pipeline. reporter may be nil.
func New(cfg Config, cam Capturer, up Uploader, ind Indicator, reporter Reporter) *Pipeline {
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "motion"
	}
	return &Pipeline{
		cfg:       cfg,
		camera:    cam,
		store:     up,
		indicator: ind,
		reporter:  reporter,
		now:       time.Now,
		busy:      abool.New(),
		ctx:       context.Background(),
		state:     Idle,
	}
}

// Start binds in-flight stages to ctx and shows the device as ready.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	state := p.state
	p.mu.Unlock()

	p.setIndicator(IndicatorFor(state))
	debug.Info("Pipeline ready, waiting for motion")
}

// OnTransition registers fn to be called after every state change.
func (p *Pipeline) OnTransition(fn func(from, to State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// OnMotion handles a PIR edge. It never blocks on capture or upload.
func (p *Pipeline) OnMotion(ev pir.MotionEvent) {
	p.Trigger(ev)
}

// Trigger is OnMotion reporting whether the event started a cycle.
// Only rising edges count; anything arriving while a cycle is in flight
// is dropped.
func (p *Pipeline) Trigger(ev pir.MotionEvent) bool {
	if ev.Edge != pir.Rising {
		return false
	}
	if !p.busy.SetToIf(false, true) {
		debug.Live("Motion at %s ignored: cycle in progress", ev.Time.Format("15:04:05.000"))
		return false
	}

	p.wg.Add(1)
	go p.run(ev)
	return true
}

// Wait blocks until the in-flight cycle, if any, has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// State returns the current cycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Busy reports whether a cycle holds the guard.
func (p *Pipeline) Busy() bool {
	return p.busy.IsSet()
}

// Preview returns the last captured image. It is cleared when a new
// capture begins.
func (p *Pipeline) Preview() (Image, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.preview == nil {
		return Image{}, false
	}
	return *p.preview, true
}

// ReportInitFailure surfaces a capability that failed at startup.
func (p *Pipeline) ReportInitFailure(component string, err error) *Error {
	e := &Error{Kind: InitializationFailure, Err: fmt.Errorf("%s: %w", component, err)}
	p.fail(e)
	return e
}

func (p *Pipeline) run(ev pir.MotionEvent) {
	defer p.wg.Done()
	// Released last, after the state is back to Idle.
	defer p.busy.UnSet()
	defer p.recoverToIdle()
	defer p.recoverFault()

	debug.Live("Motion at %s: starting cycle", ev.Time.Format("15:04:05.000"))
	p.transition(Capturing)

	img, err := p.capture()
	if err != nil {
		p.fail(err)
		return
	}

	p.transition(Uploading)
	if err := p.upload(img); err != nil {
		p.fail(err)
		return
	}

	debug.Info("Uploaded %s (%d bytes)", img.Name, len(img.Data))
	p.report("info", "Uploaded "+img.Name)
}

// recoverFault turns a panic in the cycle body into an UnexpectedFault.
func (p *Pipeline) recoverFault() {
	if r := recover(); r != nil {
		p.safeFail(&Error{Kind: UnexpectedFault, Err: fmt.Errorf("panic: %v", r)})
	}
}

// recoverToIdle ends the cycle. The state reaches Idle even if the LED,
// an observer or a reporter panics on the way.
func (p *Pipeline) recoverToIdle() {
	defer func() {
		if r := recover(); r != nil {
			p.forceIdle()
			p.safeFail(&Error{Kind: UnexpectedFault, Err: fmt.Errorf("panic while recovering: %v", r)})
		}
	}()
	p.transition(Recovering)
	p.transition(Idle)
}

// forceIdle sets the state without notifying observers and makes one
// more attempt at showing the device as ready.
func (p *Pipeline) forceIdle() {
	p.mu.Lock()
	p.state = Idle
	p.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			debug.Error(fmt.Errorf("indicator: panic: %v", r))
		}
	}()
	p.setIndicator(IndicatorFor(Idle))
}

// safeFail is fail for use inside deferred recovery: a panicking reporter
// is logged and swallowed.
func (p *Pipeline) safeFail(err error) {
	defer func() {
		if r := recover(); r != nil {
			debug.Error(fmt.Errorf("status report dropped: panic: %v", r))
		}
	}()
	p.fail(err)
}

func (p *Pipeline) capture() (Image, error) {
	// A stale preview must not sit next to a failed attempt.
	p.setPreview(nil)

	ctx, cancel := p.stageContext(p.cfg.CaptureTimeout)
	defer cancel()

	start := p.now()
	data, err := await(ctx, p.camera.CaptureStill)
	if err != nil {
		return Image{}, classify(CaptureFailure, err)
	}
	if len(data) == 0 {
		return Image{}, &Error{Kind: CaptureFailure, Err: errors.New("camera returned no data")}
	}

	taken := p.now()
	img := Image{
		Name:    NewImageName(p.cfg.NamePrefix, taken),
		Data:    data,
		TakenAt: taken,
	}
	debug.Verbose("Captured %s: %d bytes in %v", img.Name, len(data), taken.Sub(start))

	if p.cfg.SaveDir != "" {
		path := filepath.Join(p.cfg.SaveDir, img.Name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			// the upload can still proceed
			debug.Error(err)
			p.report("warn", "Could not save local copy: "+err.Error())
		}
	}

	p.setPreview(&img)
	p.report("info", "Took Photo: "+img.Name)
	return img, nil
}

func (p *Pipeline) upload(img Image) error {
	ctx, cancel := p.stageContext(p.cfg.UploadTimeout)
	defer cancel()

	_, err := await(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.store.Upload(ctx, img.Name, img.Data)
	})
	if err != nil {
		return classify(UploadFailure, err)
	}
	return nil
}

func (p *Pipeline) stageContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	p.mu.Lock()
	parent := p.ctx
	p.mu.Unlock()
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// await runs fn and stops waiting when ctx is done, even if fn ignores ctx.
// A panic in fn comes back as an UnexpectedFault.
func await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: &Error{Kind: UnexpectedFault, Err: fmt.Errorf("panic: %v", r)}}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("timed out: %w", ctx.Err())
		}
		return zero, ctx.Err()
	}
}

func (p *Pipeline) transition(to State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	observers := slices.Clone(p.observers)
	p.mu.Unlock()

	debug.State(from.String(), to.String())
	for _, fn := range observers {
		fn(from, to)
	}

	// Recovering already switched the LED back to ready.
	if to == Idle && from == Recovering {
		return
	}
	p.setIndicator(IndicatorFor(to))
}

func (p *Pipeline) setIndicator(on bool) {
	if err := p.indicator.Set(on); err != nil {
		debug.Error(err)
	}
}

func (p *Pipeline) setPreview(img *Image) {
	p.mu.Lock()
	p.preview = img
	p.mu.Unlock()
}

func (p *Pipeline) fail(err error) {
	debug.Error(err)
	p.report("error", err.Error())
}

func (p *Pipeline) report(level, msg string) {
	if p.reporter != nil {
		p.reporter.Broadcast(level, msg)
	}
}

// NewImageName returns a collision-resistant object name:
// <prefix>_<UTC timestamp>_<uuid>.jpg
func NewImageName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s.jpg", prefix, t.UTC().Format("20060102T150405.000Z"), uuid.NewString())
}
