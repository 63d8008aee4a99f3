package camera

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/PirSnap/internal/debug"
)

// waitDelay bounds how long a killed tool may keep its pipes open.
const waitDelay = time.Second

// Command captures stills by running a CLI tool that writes a JPEG to
// stdout, e.g. rpicam-still / libcamera-still for the CSI camera module,
// or fswebcam for a USB webcam.
type Command struct {
	path      string
	args      []string
	onFailure FailureFunc

	mu          sync.Mutex // held for the duration of a capture
	initialized bool
}

// CommandConfig selects the tool and its arguments.
// If Args is empty, rpicam-still style arguments are built from Width and Height.
type CommandConfig struct {
	Path      string
	Args      []string
	Width     int
	Height    int
	OnFailure FailureFunc
}

// NewCommand creates a command-driven camera. Initialize must be called
// before capturing.
func NewCommand(cfg CommandConfig) *Command {
	args := cfg.Args
	if len(args) == 0 {
		args = DefaultStillArgs(cfg.Width, cfg.Height)
	}
	onFailure := cfg.OnFailure
	if onFailure == nil {
		onFailure = func(string) {}
	}
	return &Command{
		path:      cfg.Path,
		args:      args,
		onFailure: onFailure,
	}
}

// DefaultStillArgs returns rpicam-still arguments for a quick JPEG to stdout.
func DefaultStillArgs(width, height int) []string {
	args := []string{"--nopreview", "--immediate", "--timeout", "1", "--encoding", "jpg"}
	if width > 0 && height > 0 {
		args = append(args, "--width", strconv.Itoa(width), "--height", strconv.Itoa(height))
	}
	return append(args, "--output", "-")
}

// Initialize checks that the capture tool is available.
func (c *Command) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resolved, err := exec.LookPath(c.path)
	if err != nil {
		return fmt.Errorf("camera tool %q: %w", c.path, err)
	}
	debug.Verbose("Camera: using %s %s", resolved, strings.Join(c.args, " "))
	c.path = resolved
	c.initialized = true
	return nil
}

// CaptureStill runs the tool once and returns what it wrote to stdout.
func (c *Command) CaptureStill(ctx context.Context) ([]byte, error) {
	if !c.mu.TryLock() {
		return nil, ErrBusy
	}
	defer c.mu.Unlock()

	if !c.initialized {
		return nil, ErrNotInitialized
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmd.WaitDelay = waitDelay

	debug.Trace("Camera: exec %s", c.path)
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s: %w", c.path, err)
		}
		// Once ctx is done the caller has stopped waiting: what the tool
		// said only reaches the user through onFailure.
		if ctx.Err() != nil {
			c.onFailure(lastLine(msg))
		}
		return nil, fmt.Errorf("%s: %w: %s", c.path, err, lastLine(msg))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s: produced no image data", c.path)
	}

	debug.Verbose("Camera: captured %d bytes", stdout.Len())
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
