package engine

import (
	"context"
	"fmt"

	"github.com/ehis6k/transcriber/internal/domain"
)

// Transcription is the normalized transcription engine output. Engine
// responses are decoded into this shape once, at the adapter boundary.
type Transcription struct {
	Text       string
	Segments   []domain.Segment
	Language   string
	Confidence *float64
	TextPath   string
}

// TranscribeRequest contains input media and execution callbacks for one run.
type TranscribeRequest struct {
	InputPath string
	ModelPath string
	Language  string
	OutputDir string
	OnStage   func(stage string)
	OnLog     func(log CommandLog)
}

// Transcriber runs speech-to-text over one local media file.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (*Transcription, error)
}

// SummarizeOptions bounds one chunk summarization call.
type SummarizeOptions struct {
	Model     string
	MaxLength int
	MinLength int
}

// ChunkSummarizer produces a short summary of one bounded text chunk.
type ChunkSummarizer interface {
	SummarizeChunk(ctx context.Context, text string, opts SummarizeOptions) (string, error)
}

// EngineError reports a failed or malformed external inference call.
type EngineError struct {
	Op      string
	Message string
	Err     error
}

// Error formats engine failures for logs and UI.
func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
