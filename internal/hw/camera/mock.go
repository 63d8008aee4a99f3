package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/cjeanneret/PirSnap/internal/debug"
)

// Mock renders a labelled test frame instead of talking to hardware.
// Used for development on PC.
type Mock struct {
	width, height int
	now           func() time.Time

	mu          sync.Mutex
	initialized bool
	frames      int
}

// NewMock creates a mock camera producing width x height frames
// (640x480 if either is zero).
func NewMock(width, height int) *Mock {
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	return &Mock{width: width, height: height, now: time.Now}
}

func (m *Mock) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	debug.Info("Using MOCK camera (%dx%d)", m.width, m.height)
	m.initialized = true
	return nil
}

func (m *Mock) CaptureStill(ctx context.Context) ([]byte, error) {
	if !m.mu.TryLock() {
		return nil, ErrBusy
	}
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.frames++
	img := m.render(fmt.Sprintf("PirSnap mock #%d %s", m.frames, m.now().Format(time.RFC3339)))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode mock frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Frames returns the number of frames captured so far.
func (m *Mock) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *Mock) render(label string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / m.width),
				G: uint8(y * 255 / m.height),
				B: 96,
				A: 255,
			})
		}
	}

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(8, m.height-10),
	}
	d.DrawString(label)
	return img
}
