package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ehis6k/transcriber/internal/domain"
	"github.com/ehis6k/transcriber/internal/engine"
	"github.com/ehis6k/transcriber/internal/jobs"
	"github.com/ehis6k/transcriber/internal/models"
)

// defaultModelVariant is the catalog preset used when settings point at a
// directory with no model files in it.
const defaultModelVariant = "base.en"

// transcriptionRunner executes one transcription job: input validation,
// model acquisition, and the speech-to-text pipeline.
type transcriptionRunner struct {
	input       string
	settings    domain.Settings
	transcriber engine.Transcriber
	cache       *models.Cache
	stat        func(string) (os.FileInfo, error)
	readDir     func(string) ([]os.DirEntry, error)
}

// Kind identifies the job type this runner produces.
func (r *transcriptionRunner) Kind() domain.JobKind {
	return domain.JobKindTranscription
}

// Run validates the input, resolves the model through the cache, and maps
// pipeline stages to progress events.
func (r *transcriptionRunner) Run(ctx context.Context, progress *jobs.Reporter) (*domain.JobResult, error) {
	input := strings.TrimSpace(r.input)
	if input == "" {
		return nil, jobs.NewFailure(jobs.FailureInputUnavailable, "No input file was selected.", nil)
	}
	if _, err := r.stat(input); err != nil {
		return nil, jobs.NewFailure(
			jobs.FailureInputUnavailable,
			fmt.Sprintf("The input file is not accessible: %s", input),
			err,
		)
	}

	variant := r.resolveModelVariant()
	modelPath := variant
	if r.cache != nil {
		if !r.cache.Cached(domain.EngineKindTranscription, variant) {
			progress.Stage(domain.JobStateLoadingModel, 5, "Loading transcription model")
		}
		handle, err := r.cache.Acquire(ctx, domain.EngineKindTranscription, variant)
		if err != nil {
			return nil, err
		}
		defer handle.Release()
		modelPath = handle.Model().LocalPath
	}

	progress.Stage(domain.JobStateProcessing, 10, "Preparing media")
	result, err := r.transcriber.Transcribe(ctx, engine.TranscribeRequest{
		InputPath: input,
		ModelPath: modelPath,
		Language:  r.settings.Language,
		OutputDir: r.settings.OutputDir,
		OnStage: func(stage string) {
			switch stage {
			case "preprocessing":
				progress.Progress(20, "Converting audio", 0, 0)
			case "transcribing":
				progress.Progress(40, "Transcribing audio", 0, 0)
			case "exporting":
				progress.Progress(85, "Writing transcript", 0, 0)
			}
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return &domain.JobResult{
		Transcription: &domain.TranscriptionResult{
			Text:       result.Text,
			Segments:   result.Segments,
			Language:   result.Language,
			ModelUsed:  modelDisplayName(variant),
			Duration:   lastSegmentEnd(result.Segments),
			Confidence: result.Confidence,
		},
	}, nil
}

// resolveModelVariant maps the configured model path to a cache variant:
// a model file path is used directly, a directory yields its first model
// file, and anything else falls back to the default catalog preset.
func (r *transcriptionRunner) resolveModelVariant() string {
	modelPath := strings.TrimSpace(r.settings.ModelPath)
	if modelPath == "" {
		return defaultModelVariant
	}

	info, err := r.stat(modelPath)
	if err != nil {
		// Might be a catalog preset id rather than a path.
		if !strings.ContainsRune(modelPath, os.PathSeparator) {
			return modelPath
		}
		return defaultModelVariant
	}

	if !info.IsDir() {
		return modelPath
	}

	entries, err := r.readDir(modelPath)
	if err != nil {
		return defaultModelVariant
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			return filepath.Join(modelPath, entry.Name())
		}
	}
	return defaultModelVariant
}

// modelDisplayName shortens file-path variants to the model file name.
func modelDisplayName(variant string) string {
	ext := strings.ToLower(filepath.Ext(variant))
	if ext == ".bin" || ext == ".gguf" {
		return filepath.Base(variant)
	}
	return variant
}

// lastSegmentEnd derives the media duration from the final speech segment.
func lastSegmentEnd(segments []domain.Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].End
}
