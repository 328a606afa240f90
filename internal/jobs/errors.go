package jobs

import (
	"errors"
	"fmt"

	"github.com/ehis6k/transcriber/internal/engine"
	"github.com/ehis6k/transcriber/internal/models"
)

// ErrJobAlreadyRunning is returned when starting a controller twice.
var ErrJobAlreadyRunning = errors.New("job already running")

// FailureKind classifies terminal job failures for callers and the UI.
type FailureKind string

const (
	FailureModelLoad        FailureKind = "model_load"
	FailureInputUnavailable FailureKind = "input_unavailable"
	FailureEngine           FailureKind = "engine"
	FailureStore            FailureKind = "store"
)

// Failure is a classified job failure whose Message is suitable for direct
// display; the wrapped error keeps the technical detail for logs.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

// NewFailure builds a classified failure with a display-ready message.
func NewFailure(kind FailureKind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

// Error returns the display message.
func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return f.Message
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// classify maps runner errors onto the failure taxonomy. Raw error values
// never reach callers without a summarizing message.
func classify(err error) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}

	var loadErr *models.LoadError
	if errors.As(err, &loadErr) {
		return NewFailure(
			FailureModelLoad,
			fmt.Sprintf("The %s model %q could not be loaded.", loadErr.EngineKind, loadErr.Variant),
			err,
		)
	}

	var engErr *engine.EngineError
	if errors.As(err, &engErr) {
		return NewFailure(
			FailureEngine,
			fmt.Sprintf("The inference engine failed: %s.", engErr.Message),
			err,
		)
	}

	return NewFailure(FailureEngine, "The job failed unexpectedly.", err)
}
