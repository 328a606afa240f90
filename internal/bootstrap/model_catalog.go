package bootstrap

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ehis6k/transcriber/internal/domain"
	"github.com/ehis6k/transcriber/internal/models"
)

const modelDownloadTimeout = 45 * time.Minute

// GetModels returns the whisper model presets with local availability marked.
func (a *App) GetModels() []domain.ModelOption {
	return models.Catalog(a.modelDirs())
}

// DownloadModel fetches a catalog preset and points settings at it.
func (a *App) DownloadModel(modelID string) (domain.ModelOption, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return domain.ModelOption{}, fmt.Errorf("model id is required")
	}

	option, found := models.FindOption(id)
	if !found {
		return domain.ModelOption{}, fmt.Errorf("unknown model id: %s", id)
	}

	dest := filepath.Join(a.downloadDir(), option.FileName)
	if err := models.DownloadURLToFile(dest, option.URL, modelDownloadTimeout); err != nil {
		return domain.ModelOption{}, fmt.Errorf("download model %s: %w", option.Name, err)
	}

	settings, err := a.reloadSettings()
	if err != nil {
		return domain.ModelOption{}, err
	}
	settings.ModelPath = dest
	if _, err := a.SaveSettings(settings); err != nil {
		return domain.ModelOption{}, err
	}

	option.Downloaded = true
	option.LocalPath = dest
	return option, nil
}
