package config

import (
	"os"
	"path/filepath"

	"github.com/ehis6k/transcriber/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	appDir := filepath.Join(homeDir, ".transcriber")
	return domain.Settings{
		ModelPath:       filepath.Join(appDir, "models"),
		OutputDir:       filepath.Join(homeDir, "Documents", "Transcripts"),
		Language:        "auto",
		SummarizerURL:   "http://127.0.0.1:8080",
		SummarizerModel: "default",
		HistoryDBPath:   filepath.Join(appDir, "transcription_history.db"),
		MaxChunkChars:   2000,
		TargetLength:    domain.TargetLengthMedium,
		LogLevel:        "info",
	}
}

// applyDefaults fills unset fields so settings files written by older
// versions keep working after new fields are introduced.
func applyDefaults(cfg domain.Settings) domain.Settings {
	defaults := DefaultSettings()
	if cfg.ModelPath == "" {
		cfg.ModelPath = defaults.ModelPath
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaults.OutputDir
	}
	if cfg.Language == "" {
		cfg.Language = defaults.Language
	}
	if cfg.SummarizerURL == "" {
		cfg.SummarizerURL = defaults.SummarizerURL
	}
	if cfg.SummarizerModel == "" {
		cfg.SummarizerModel = defaults.SummarizerModel
	}
	if cfg.HistoryDBPath == "" {
		cfg.HistoryDBPath = defaults.HistoryDBPath
	}
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = defaults.MaxChunkChars
	}
	if cfg.TargetLength == "" {
		cfg.TargetLength = defaults.TargetLength
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	return cfg
}
