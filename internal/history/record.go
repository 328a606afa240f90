package history

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/ehis6k/transcriber/internal/domain"
)

// RecordFromResult converts a completed job result into a storable record.
// The job id carries over as the record id so re-saving a job replaces its
// earlier row.
func RecordFromResult(result *domain.JobResult) (domain.HistoryRecord, error) {
	if result == nil {
		return domain.HistoryRecord{}, errors.New("nil job result")
	}

	record := domain.HistoryRecord{
		ID:   result.JobID,
		Kind: result.Kind,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if t := result.Transcription; t != nil {
		record.Text = t.Text
		record.Language = t.Language
		record.ModelUsed = t.ModelUsed
		record.Duration = t.Duration
		record.Confidence = t.Confidence
	}

	if s := result.Summarization; s != nil {
		if record.Text == "" {
			record.Text = s.SourceText
		}
		record.Summary = s.Summary
		record.OriginalLength = s.OriginalLength
		record.SummaryLength = s.SummaryLength
		record.CompressionRatio = s.CompressionRatio
		if record.Language == "" {
			record.Language = s.Language
		}
		if record.ModelUsed == "" {
			record.ModelUsed = s.ModelUsed
		}
		if len(s.ChunkSummaries) > 0 {
			encoded, err := json.Marshal(s.ChunkSummaries)
			if err != nil {
				return domain.HistoryRecord{}, err
			}
			record.ChunkSummaries = string(encoded)
		}
	}

	return record, nil
}

// ChunkSummariesFromRecord decodes the stored section summaries, if any.
func ChunkSummariesFromRecord(record domain.HistoryRecord) ([]domain.ChunkSummary, error) {
	if record.ChunkSummaries == "" {
		return nil, nil
	}
	var summaries []domain.ChunkSummary
	if err := json.Unmarshal([]byte(record.ChunkSummaries), &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}
