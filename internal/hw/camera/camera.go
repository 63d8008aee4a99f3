package camera

import (
	"context"
	"errors"
)

var (
	// ErrNotInitialized is returned by CaptureStill before a successful Initialize.
	ErrNotInitialized = errors.New("camera not initialized")
	// ErrBusy is returned when a capture is already running on the device.
	ErrBusy = errors.New("camera busy")
)

// Camera is the high-level interface used by the rest of the application.
// It represents an abstract still camera, regardless of how it's driven
// (CSI module through a CLI tool, USB webcam, mock, etc.).
type Camera interface {
	// Initialize prepares the device. It is called once at startup.
	Initialize(ctx context.Context) error
	// CaptureStill takes one JPEG still and returns its bytes.
	CaptureStill(ctx context.Context) ([]byte, error)
}

// FailureFunc receives device failure text that no caller is waiting for,
// e.g. what a capture tool printed after its capture was abandoned.
type FailureFunc func(msg string)

// Inert is the camera of a device whose camera failed to initialize.
// Every capture fails with ErrNotInitialized.
type Inert struct{}

func (Inert) Initialize(context.Context) error { return ErrNotInitialized }

func (Inert) CaptureStill(context.Context) ([]byte, error) { return nil, ErrNotInitialized }
