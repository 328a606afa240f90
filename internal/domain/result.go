package domain

// Segment is one recognized speech span with start/end times in seconds.
// Segments are ordered and non-overlapping.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptionResult is the immutable output of a completed transcription job.
type TranscriptionResult struct {
	Text       string    `json:"text"`
	Segments   []Segment `json:"segments"`
	Language   string    `json:"language"`
	ModelUsed  string    `json:"modelUsed"`
	Duration   float64   `json:"duration"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// SummarizationResult is the immutable output of a completed summarization job.
// SourceText is the input the summary was produced from; history keeps it so
// summarization rows stay searchable by their original text.
type SummarizationResult struct {
	SourceText       string         `json:"sourceText"`
	Summary          string         `json:"summary"`
	ChunkSummaries   []ChunkSummary `json:"chunkSummaries"`
	OriginalLength   int            `json:"originalLength"`
	SummaryLength    int            `json:"summaryLength"`
	CompressionRatio float64        `json:"compressionRatio"`
	ModelUsed        string         `json:"modelUsed"`
	Language         string         `json:"language"`
}

// JobResult carries the kind-discriminated output of a completed job.
// Exactly one of Transcription or Summarization is set, matching Kind.
type JobResult struct {
	JobID         string               `json:"jobId"`
	Kind          JobKind              `json:"kind"`
	Transcription *TranscriptionResult `json:"transcription,omitempty"`
	Summarization *SummarizationResult `json:"summarization,omitempty"`
}
