package models

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ehis6k/transcriber/internal/domain"
)

// WhisperLoader resolves whisper model variants to local model files,
// downloading catalog presets on demand. A variant is either a path to a
// .bin/.gguf file or a catalog preset ID.
type WhisperLoader struct {
	modelDirs   func() []string
	downloadDir func() string
	download    func(dest, url string, timeout time.Duration) error
}

// NewWhisperLoader builds a loader over the given model directory sources.
func NewWhisperLoader(modelDirs func() []string, downloadDir func() string) *WhisperLoader {
	return &WhisperLoader{
		modelDirs:   modelDirs,
		downloadDir: downloadDir,
		download:    DownloadURLToFile,
	}
}

// Load resolves variant to a local model file, fetching it when absent.
func (l *WhisperLoader) Load(ctx context.Context, kind domain.EngineKind, variant string) (domain.ModelHandle, error) {
	trimmed := strings.TrimSpace(variant)
	if trimmed == "" {
		return domain.ModelHandle{}, fmt.Errorf("model variant is required")
	}

	if isModelFile(trimmed) {
		info, err := os.Stat(trimmed)
		if err != nil || info.IsDir() {
			return domain.ModelHandle{}, fmt.Errorf("model file not found: %s", trimmed)
		}
		return handleFor(kind, trimmed, trimmed), nil
	}

	option, ok := FindOption(trimmed)
	if !ok {
		return domain.ModelHandle{}, fmt.Errorf("unknown model variant: %s", trimmed)
	}

	if path, found := findModelInDirs(option.FileName, l.modelDirs()); found {
		return handleFor(kind, trimmed, path), nil
	}

	if err := ctx.Err(); err != nil {
		return domain.ModelHandle{}, err
	}

	dest := filepath.Join(l.downloadDir(), option.FileName)
	if err := l.download(dest, option.URL, modelDownloadTimeout); err != nil {
		return domain.ModelHandle{}, fmt.Errorf("download model %s: %w", option.Name, err)
	}

	return handleFor(kind, trimmed, dest), nil
}

// Warmer checks that a remote inference server is ready to serve a model.
type Warmer interface {
	Ping(ctx context.Context) error
}

// SummarizerLoader treats "loading" as warming up the summarization server;
// the server owns the actual model weights.
type SummarizerLoader struct {
	warmer Warmer
}

// NewSummarizerLoader builds a loader over the given server client.
func NewSummarizerLoader(warmer Warmer) *SummarizerLoader {
	return &SummarizerLoader{warmer: warmer}
}

// Load verifies the server is reachable and returns a handle for variant.
func (l *SummarizerLoader) Load(ctx context.Context, kind domain.EngineKind, variant string) (domain.ModelHandle, error) {
	if strings.TrimSpace(variant) == "" {
		return domain.ModelHandle{}, fmt.Errorf("summarizer model variant is required")
	}
	if err := l.warmer.Ping(ctx); err != nil {
		return domain.ModelHandle{}, err
	}
	return handleFor(kind, variant, ""), nil
}

// handleFor builds a model handle stamped with the load time.
func handleFor(kind domain.EngineKind, variant, localPath string) domain.ModelHandle {
	return domain.ModelHandle{
		EngineKind: kind,
		Variant:    variant,
		LocalPath:  localPath,
		LoadedAt:   time.Now().UTC(),
	}
}
