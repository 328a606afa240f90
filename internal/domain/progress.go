package domain

import "time"

// ProgressEvent is one point-in-time job status update for observers.
// Percent is non-decreasing within a job until a terminal event; a
// transition to failed or cancelled may reset the displayed percent to 0.
type ProgressEvent struct {
	JobID        string    `json:"jobId"`
	Kind         JobKind   `json:"kind"`
	State        JobState  `json:"state"`
	Percent      float64   `json:"percent"`
	Message      string    `json:"message"`
	CurrentChunk int       `json:"currentChunk,omitempty"`
	TotalChunks  int       `json:"totalChunks,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
