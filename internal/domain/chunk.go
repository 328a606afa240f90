package domain

// TextChunk is a bounded, sentence-respecting slice of input text.
// Offsets index into the original text; chunks are ordered, non-overlapping,
// and concatenating their texts in index order reproduces the input up to
// whitespace normalization at chunk joins.
type TextChunk struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
}

// ChunkSummary is the summarization output for one text chunk.
type ChunkSummary struct {
	ChunkIndex  int    `json:"chunkIndex"`
	SummaryText string `json:"summaryText"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
	Placeholder bool   `json:"placeholder"`
}
