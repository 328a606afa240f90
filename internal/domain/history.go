package domain

import "time"

// HistoryRecord is one persisted job result row in the local database.
// Records are replaced whole on update, never mutated field by field.
type HistoryRecord struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	Kind             JobKind   `json:"kind" gorm:"index"`
	Text             string    `json:"text"`
	Summary          string    `json:"summary"`
	ChunkSummaries   string    `json:"chunkSummaries"`
	Language         string    `json:"language" gorm:"index"`
	ModelUsed        string    `json:"modelUsed"`
	Duration         float64   `json:"duration"`
	Confidence       *float64  `json:"confidence,omitempty"`
	OriginalLength   int       `json:"originalLength"`
	SummaryLength    int       `json:"summaryLength"`
	CompressionRatio float64   `json:"compressionRatio"`
	CreatedAt        time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// HistoryFilter combines optional AND-ed predicates with a pagination window.
type HistoryFilter struct {
	Language   string     `json:"language,omitempty"`
	ModelUsed  string     `json:"modelUsed,omitempty"`
	DateFrom   *time.Time `json:"dateFrom,omitempty"`
	DateTo     *time.Time `json:"dateTo,omitempty"`
	SearchText string     `json:"searchText,omitempty"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
}

// HistoryPage is one page of matching records, newest first.
type HistoryPage struct {
	Items         []HistoryRecord `json:"items"`
	TotalMatching int64           `json:"totalMatching"`
	HasMore       bool            `json:"hasMore"`
}

// HistoryStats aggregates over all stored records, unfiltered.
// TopLanguageModel ties are broken by first encounter in storage iteration
// order, which is not guaranteed to be deterministic across runs.
type HistoryStats struct {
	TotalJobs        int64    `json:"totalJobs"`
	SummarizedJobs   int64    `json:"summarizedJobs"`
	TotalDuration    float64  `json:"totalDuration"`
	MeanConfidence   *float64 `json:"meanConfidence,omitempty"`
	TopLanguage      string   `json:"topLanguage"`
	TopModel         string   `json:"topModel"`
	TopPairJobCount  int64    `json:"topPairJobCount"`
}
