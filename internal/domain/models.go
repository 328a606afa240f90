package domain

import "time"

// EngineKind identifies which inference engine a model belongs to.
type EngineKind string

const (
	EngineKindTranscription EngineKind = "transcription"
	EngineKindSummarization EngineKind = "summarization"
)

// ModelHandle describes one loaded (resolved) inference model.
type ModelHandle struct {
	EngineKind EngineKind `json:"engineKind"`
	Variant    string     `json:"variant"`
	LocalPath  string     `json:"localPath,omitempty"`
	LoadedAt   time.Time  `json:"loadedAt"`
}

// ModelOption describes one downloadable model preset.
type ModelOption struct {
	ID          string     `json:"id"`
	EngineKind  EngineKind `json:"engineKind"`
	Name        string     `json:"name"`
	FileName    string     `json:"fileName"`
	URL         string     `json:"url"`
	SizeLabel   string     `json:"sizeLabel,omitempty"`
	Description string     `json:"description,omitempty"`
	Downloaded  bool       `json:"downloaded"`
	LocalPath   string     `json:"localPath,omitempty"`
}
