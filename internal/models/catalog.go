package models

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ehis6k/transcriber/internal/domain"
)

var whisperCatalog = []domain.ModelOption{
	{
		ID:          "tiny.en",
		EngineKind:  domain.EngineKindTranscription,
		Name:        "Tiny (English)",
		FileName:    "ggml-tiny.en.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.en.bin",
		SizeLabel:   "~75 MB",
		Description: "Fastest, English-only model.",
	},
	{
		ID:          "tiny",
		EngineKind:  domain.EngineKindTranscription,
		Name:        "Tiny (Multilingual)",
		FileName:    "ggml-tiny.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SizeLabel:   "~75 MB",
		Description: "Fastest multilingual model.",
	},
	{
		ID:          "base.en",
		EngineKind:  domain.EngineKindTranscription,
		Name:        "Base (English)",
		FileName:    "ggml-base.en.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
		SizeLabel:   "~142 MB",
		Description: "Balanced speed/quality, English-only.",
	},
	{
		ID:          "base",
		EngineKind:  domain.EngineKindTranscription,
		Name:        "Base (Multilingual)",
		FileName:    "ggml-base.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SizeLabel:   "~142 MB",
		Description: "Balanced speed/quality, multilingual.",
	},
	{
		ID:          "small.en",
		EngineKind:  domain.EngineKindTranscription,
		Name:        "Small (English)",
		FileName:    "ggml-small.en.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.en.bin",
		SizeLabel:   "~466 MB",
		Description: "Higher quality, English-only.",
	},
	{
		ID:          "small",
		EngineKind:  domain.EngineKindTranscription,
		Name:        "Small (Multilingual)",
		FileName:    "ggml-small.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SizeLabel:   "~466 MB",
		Description: "Higher quality multilingual model.",
	},
	{
		ID:          "medium",
		EngineKind:  domain.EngineKindTranscription,
		Name:        "Medium (Multilingual)",
		FileName:    "ggml-medium.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		SizeLabel:   "~1.5 GB",
		Description: "High quality multilingual model.",
	},
	{
		ID:          "large-v3",
		EngineKind:  domain.EngineKindTranscription,
		Name:        "Large v3",
		FileName:    "ggml-large-v3.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
		SizeLabel:   "~2.9 GB",
		Description: "Latest large multilingual model.",
	},
	{
		ID:          "large-v3-turbo",
		EngineKind:  domain.EngineKindTranscription,
		Name:        "Large v3 Turbo",
		FileName:    "ggml-large-v3-turbo.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
		SizeLabel:   "~1.6 GB",
		Description: "Faster large-v3 variant.",
	},
}

// Catalog returns built-in whisper.cpp model presets for one-click downloads,
// marking entries already present in the given model directories.
func Catalog(modelDirs []string) []domain.ModelOption {
	options := make([]domain.ModelOption, len(whisperCatalog))
	copy(options, whisperCatalog)
	markDownloaded(options, modelDirs)
	return options
}

// FindOption looks up a catalog preset by its ID.
func FindOption(id string) (domain.ModelOption, bool) {
	for _, option := range whisperCatalog {
		if option.ID == id {
			return option, true
		}
	}
	return domain.ModelOption{}, false
}

// markDownloaded fills Downloaded/LocalPath for presets found on disk.
func markDownloaded(options []domain.ModelOption, modelDirs []string) {
	for i := range options {
		for _, dir := range modelDirs {
			candidate := filepath.Join(dir, options[i].FileName)
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			options[i].Downloaded = true
			options[i].LocalPath = candidate
			break
		}
	}
}

// isModelFile reports whether path names a whisper model file by extension.
func isModelFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".bin" || ext == ".gguf"
}

// findModelInDirs returns the first directory containing fileName.
func findModelInDirs(fileName string, dirs []string) (string, bool) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, fileName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			continue
		}
	}
	return "", false
}
