package pipeline

import (
	"errors"
	"fmt"
)

// State is the capture-upload cycle state. The machine starts in Idle and
// loops for the life of the process.
type State int

const (
	Idle State = iota
	Capturing
	Uploading
	Recovering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Capturing:
		return "Capturing"
	case Uploading:
		return "Uploading"
	case Recovering:
		return "Recovering"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IndicatorFor returns the status LED value for s: off while a capture or
// upload is running, on (ready) otherwise.
func IndicatorFor(s State) bool {
	return s != Capturing && s != Uploading
}

// Kind classifies a failure reported by the pipeline.
type Kind int

const (
	InitializationFailure Kind = iota + 1
	CaptureFailure
	UploadFailure
	UnexpectedFault
)

func (k Kind) String() string {
	switch k {
	case InitializationFailure:
		return "initialization failure"
	case CaptureFailure:
		return "capture failure"
	case UploadFailure:
		return "upload failure"
	case UnexpectedFault:
		return "unexpected fault"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a classified failure. Its message is the status text shown
// to the user.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case InitializationFailure:
		return "Initialization error: " + e.Err.Error()
	case CaptureFailure:
		return "Error taking picture: " + e.Err.Error()
	case UploadFailure:
		return "Upload failed: " + e.Err.Error()
	default:
		return "Unexpected error: " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// classify wraps err as kind unless it already carries an UnexpectedFault.
func classify(kind Kind, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) && pe.Kind == UnexpectedFault {
		return pe
	}
	return &Error{Kind: kind, Err: err}
}

// IsKind reports whether err is a pipeline Error of kind k.
func IsKind(err error, k Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == k
}
