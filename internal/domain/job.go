package domain

// JobKind discriminates the two supported processing job types.
type JobKind string

const (
	JobKindTranscription JobKind = "transcription"
	JobKindSummarization JobKind = "summarization"
)

// JobState tracks the lifecycle stage of a single processing job.
type JobState string

const (
	JobStatePending      JobState = "pending"
	JobStateInitializing JobState = "initializing"
	JobStateLoadingModel JobState = "loading_model"
	JobStateProcessing   JobState = "processing"
	JobStateCompleted    JobState = "completed"
	JobStateFailed       JobState = "failed"
	JobStateCancelled    JobState = "cancelled"
)

// IsTerminal reports whether no further transitions can occur from state.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// Job stores the identity and lifecycle status of one processing job.
type Job struct {
	ID    string   `json:"id"`
	Kind  JobKind  `json:"kind"`
	State JobState `json:"state"`
}

// TargetLength selects the requested summary verbosity.
type TargetLength string

const (
	TargetLengthShort  TargetLength = "short"
	TargetLengthMedium TargetLength = "medium"
	TargetLengthLong   TargetLength = "long"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelPath       string       `json:"modelPath"`
	OutputDir       string       `json:"outputDir"`
	Language        string       `json:"language"`
	SummarizerURL   string       `json:"summarizerUrl"`
	SummarizerModel string       `json:"summarizerModel"`
	HistoryDBPath   string       `json:"historyDbPath"`
	MaxChunkChars   int          `json:"maxChunkChars"`
	TargetLength    TargetLength `json:"targetLength"`
	StrictRecombine bool         `json:"strictRecombine"`
	LogLevel        string       `json:"logLevel"`
}
