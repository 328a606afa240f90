package history

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ehis6k/transcriber/internal/domain"
	"github.com/ehis6k/transcriber/internal/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "history.db"), logger.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func floatPtr(v float64) *float64 { return &v }

// seedRecord builds a minimal record with a deterministic creation time.
func seedRecord(id string, createdAt time.Time) domain.HistoryRecord {
	return domain.HistoryRecord{
		ID:        id,
		Kind:      domain.JobKindTranscription,
		Text:      "text " + id,
		Language:  "en",
		ModelUsed: "base",
		CreatedAt: createdAt,
	}
}

// TestStoreSaveAndGet checks a record round-trips through the database.
func TestStoreSaveAndGet(t *testing.T) {
	store := openTestStore(t)

	record := domain.HistoryRecord{
		ID:               "job-1",
		Kind:             domain.JobKindSummarization,
		Text:             "the original transcript",
		Summary:          "short version",
		Language:         "nl",
		ModelUsed:        "default",
		Duration:         12.5,
		Confidence:       floatPtr(0.91),
		OriginalLength:   1000,
		SummaryLength:    200,
		CompressionRatio: 0.2,
	}
	if err := store.Save(record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Summary != "short version" || got.Language != "nl" {
		t.Fatalf("record = %+v", got)
	}
	if got.Confidence == nil || *got.Confidence != 0.91 {
		t.Fatalf("confidence = %v", got.Confidence)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("expected stamped timestamps")
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

// TestStoreSaveReplaces checks saving the same id replaces the row.
func TestStoreSaveReplaces(t *testing.T) {
	store := openTestStore(t)

	record := seedRecord("job-1", time.Now().UTC())
	if err := store.Save(record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	record.Summary = "added later"
	if err := store.Save(record); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	page, err := store.Query(domain.HistoryFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if page.TotalMatching != 1 {
		t.Fatalf("total = %d, want 1", page.TotalMatching)
	}
	if page.Items[0].Summary != "added later" {
		t.Fatalf("summary = %q", page.Items[0].Summary)
	}
}

// TestStoreDelete checks removal and the missing-id error.
func TestStoreDelete(t *testing.T) {
	store := openTestStore(t)

	if err := store.Save(seedRecord("job-1", time.Now().UTC())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete("job-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get("job-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete("job-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

// TestStoreQueryFilters checks AND-ed predicates and case-insensitive search.
func TestStoreQueryFilters(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []domain.HistoryRecord{
		{ID: "a", Kind: domain.JobKindTranscription, Text: "Budget meeting notes", Language: "en", ModelUsed: "base", CreatedAt: base},
		{ID: "b", Kind: domain.JobKindTranscription, Text: "vergadering over budget", Language: "nl", ModelUsed: "base", CreatedAt: base.Add(time.Hour)},
		{ID: "c", Kind: domain.JobKindSummarization, Text: "quarterly review", Summary: "BUDGET approved", Language: "en", ModelUsed: "small", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "d", Kind: domain.JobKindTranscription, Text: "unrelated walk recording", Language: "en", ModelUsed: "base", CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, record := range records {
		if err := store.Save(record); err != nil {
			t.Fatalf("Save(%s) error = %v", record.ID, err)
		}
	}

	// Language filter.
	page, err := store.Query(domain.HistoryFilter{Language: "nl"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if page.TotalMatching != 1 || page.Items[0].ID != "b" {
		t.Fatalf("nl page = %+v", page)
	}

	// Search hits transcript text and summary, case-insensitively.
	page, err = store.Query(domain.HistoryFilter{SearchText: "budget"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if page.TotalMatching != 3 {
		t.Fatalf("search total = %d, want 3", page.TotalMatching)
	}

	// Predicates combine with AND.
	page, err = store.Query(domain.HistoryFilter{SearchText: "budget", Language: "en", ModelUsed: "small"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if page.TotalMatching != 1 || page.Items[0].ID != "c" {
		t.Fatalf("combined page = %+v", page)
	}

	// Date window.
	from := base.Add(30 * time.Minute)
	to := base.Add(150 * time.Minute)
	page, err = store.Query(domain.HistoryFilter{DateFrom: &from, DateTo: &to})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if page.TotalMatching != 2 {
		t.Fatalf("window total = %d, want 2", page.TotalMatching)
	}
}

// TestStoreQueryPagination checks newest-first ordering and HasMore.
func TestStoreQueryPagination(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		record := seedRecord(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := store.Save(record); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	page, err := store.Query(domain.HistoryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if page.TotalMatching != 5 || !page.HasMore {
		t.Fatalf("page = total %d hasMore %v", page.TotalMatching, page.HasMore)
	}
	if page.Items[0].ID != "job-4" || page.Items[1].ID != "job-3" {
		t.Fatalf("order = %s, %s", page.Items[0].ID, page.Items[1].ID)
	}

	page, err = store.Query(domain.HistoryFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "job-0" {
		t.Fatalf("last page = %+v", page.Items)
	}
	if page.HasMore {
		t.Fatal("last page should not report more")
	}

	page, err = store.Query(domain.HistoryFilter{Limit: 2, Offset: 10})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(page.Items) != 0 || page.HasMore {
		t.Fatalf("past-the-end page = %+v hasMore %v", page.Items, page.HasMore)
	}
}

// TestStoreStats checks the unfiltered aggregates.
func TestStoreStats(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []domain.HistoryRecord{
		{ID: "a", Kind: domain.JobKindTranscription, Language: "en", ModelUsed: "base", Duration: 10, Confidence: floatPtr(0.8), CreatedAt: base},
		{ID: "b", Kind: domain.JobKindTranscription, Language: "en", ModelUsed: "base", Duration: 20, CreatedAt: base.Add(time.Minute)},
		{ID: "c", Kind: domain.JobKindSummarization, Language: "nl", ModelUsed: "small", Duration: 5, Confidence: floatPtr(0.6), Summary: "done", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, record := range records {
		if err := store.Save(record); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalJobs != 3 || stats.SummarizedJobs != 1 {
		t.Fatalf("jobs = %d summarized = %d", stats.TotalJobs, stats.SummarizedJobs)
	}
	if stats.TotalDuration != 35 {
		t.Fatalf("total duration = %v", stats.TotalDuration)
	}
	if stats.MeanConfidence == nil || *stats.MeanConfidence != 0.7 {
		t.Fatalf("mean confidence = %v, want 0.7 over scored records only", stats.MeanConfidence)
	}
	if stats.TopLanguage != "en" || stats.TopModel != "base" || stats.TopPairJobCount != 2 {
		t.Fatalf("top pair = %s/%s (%d)", stats.TopLanguage, stats.TopModel, stats.TopPairJobCount)
	}
}

// TestStoreStatsEmpty checks the zero-record aggregates.
func TestStoreStatsEmpty(t *testing.T) {
	store := openTestStore(t)

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalJobs != 0 || stats.MeanConfidence != nil || stats.TopLanguage != "" {
		t.Fatalf("stats = %+v", stats)
	}
}

// TestRecordFromResult checks the job result to record conversion.
func TestRecordFromResult(t *testing.T) {
	result := &domain.JobResult{
		JobID: "job-9",
		Kind:  domain.JobKindSummarization,
		Transcription: &domain.TranscriptionResult{
			Text:       "long transcript",
			Language:   "en",
			ModelUsed:  "base",
			Duration:   42,
			Confidence: floatPtr(0.88),
		},
		Summarization: &domain.SummarizationResult{
			Summary: "short",
			ChunkSummaries: []domain.ChunkSummary{
				{ChunkIndex: 0, SummaryText: "part one"},
				{ChunkIndex: 1, SummaryText: "[Summary unavailable for this section]", Placeholder: true},
			},
			OriginalLength:   1000,
			SummaryLength:    200,
			CompressionRatio: 0.2,
		},
	}

	record, err := RecordFromResult(result)
	if err != nil {
		t.Fatalf("RecordFromResult() error = %v", err)
	}
	if record.ID != "job-9" || record.Kind != domain.JobKindSummarization {
		t.Fatalf("identity = %s/%s", record.ID, record.Kind)
	}
	if record.Text != "long transcript" || record.Summary != "short" {
		t.Fatalf("content = %q / %q", record.Text, record.Summary)
	}
	if record.Language != "en" || record.ModelUsed != "base" {
		t.Fatalf("metadata = %s/%s", record.Language, record.ModelUsed)
	}
	if record.CompressionRatio != 0.2 {
		t.Fatalf("compression = %v", record.CompressionRatio)
	}

	summaries, err := ChunkSummariesFromRecord(record)
	if err != nil {
		t.Fatalf("ChunkSummariesFromRecord() error = %v", err)
	}
	if len(summaries) != 2 || !summaries[1].Placeholder {
		t.Fatalf("summaries = %+v", summaries)
	}

	if _, err := RecordFromResult(nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}

// TestRecordFromSummarizationResult checks a summary-only job keeps its input
// text so the row stays searchable by what was summarized.
func TestRecordFromSummarizationResult(t *testing.T) {
	result := &domain.JobResult{
		JobID: "job-10",
		Kind:  domain.JobKindSummarization,
		Summarization: &domain.SummarizationResult{
			SourceText: "quarterly revenue call transcript",
			Summary:    "revenue grew",
			Language:   "en",
			ModelUsed:  "default",
		},
	}

	record, err := RecordFromResult(result)
	if err != nil {
		t.Fatalf("RecordFromResult() error = %v", err)
	}
	if record.Text != "quarterly revenue call transcript" {
		t.Fatalf("text = %q, want the summarized input", record.Text)
	}
	if record.Summary != "revenue grew" {
		t.Fatalf("summary = %q", record.Summary)
	}
}

// TestStoreQuerySearchesSummarizationSource checks summarization rows match
// search terms from their input text, not only their summary.
func TestStoreQuerySearchesSummarizationSource(t *testing.T) {
	store := openTestStore(t)

	record, err := RecordFromResult(&domain.JobResult{
		JobID: "job-11",
		Kind:  domain.JobKindSummarization,
		Summarization: &domain.SummarizationResult{
			SourceText: "Planning the Antwerp office move.",
			Summary:    "move approved",
		},
	})
	if err != nil {
		t.Fatalf("RecordFromResult() error = %v", err)
	}
	if err := store.Save(record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	page, err := store.Query(domain.HistoryFilter{SearchText: "antwerp"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if page.TotalMatching != 1 || page.Items[0].ID != "job-11" {
		t.Fatalf("search page = %+v", page)
	}
}
