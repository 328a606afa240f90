package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ehis6k/transcriber/internal/config"
	"github.com/ehis6k/transcriber/internal/diagnostics"
	"github.com/ehis6k/transcriber/internal/domain"
	"github.com/ehis6k/transcriber/internal/engine"
	"github.com/ehis6k/transcriber/internal/history"
	"github.com/ehis6k/transcriber/internal/jobs"
	"github.com/ehis6k/transcriber/internal/logger"
)

// memStore is an in-memory settings store for tests.
type memStore struct {
	mu       sync.Mutex
	settings domain.Settings
}

func (m *memStore) Load() (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *memStore) Save(settings domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
	return nil
}

// fakeTranscriber returns a canned transcription and reports stages.
type fakeTranscriber struct {
	result *engine.Transcription
	err    error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req engine.TranscribeRequest) (*engine.Transcription, error) {
	if req.OnStage != nil {
		req.OnStage("preprocessing")
		req.OnStage("transcribing")
		req.OnStage("exporting")
	}
	return f.result, f.err
}

// fakeSummaryEngine answers every chunk with a fixed summary.
type fakeSummaryEngine struct {
	summary string
}

func (f *fakeSummaryEngine) SummarizeChunk(ctx context.Context, text string, opts engine.SummarizeOptions) (string, error) {
	return f.summary, nil
}

func (f *fakeSummaryEngine) Ping(ctx context.Context) error { return nil }

func quietLog() *logrus.Logger {
	return logger.Nop()
}

// newTestApp wires an App with fakes and a temp-dir history database.
func newTestApp(t *testing.T) *App {
	t.Helper()

	appDir := t.TempDir()
	settings := config.DefaultSettings()
	settings.ModelPath = ""
	settings.OutputDir = filepath.Join(appDir, "out")
	settings.HistoryDBPath = filepath.Join(appDir, "history.db")
	settings.MaxChunkChars = 2000

	hist, err := history.Open(settings.HistoryDBPath, quietLog())
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	summarizer := &fakeSummaryEngine{summary: "condensed"}
	app := &App{
		Store:       &memStore{settings: settings},
		History:     hist,
		checker:     diagnostics.NewChecker(summarizer),
		log:         quietLog(),
		appDir:      appDir,
		settings:    settings,
		summarizer:  summarizer,
		controllers: make(map[string]*jobs.Controller),
		events:      jobs.NewEventBus(100),
		transcriber: &fakeTranscriber{result: &engine.Transcription{Text: "hello"}},
		newSummarizer: func(url string) summaryEngine {
			return summarizer
		},
	}
	return app
}

// waitTerminal polls until the job reaches a terminal state.
func waitTerminal(t *testing.T, app *App, id string) domain.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := app.GetJob(id)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if job.State.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for terminal job state")
	return domain.Job{}
}

// waitHistoryCount polls until the history table holds want records.
func waitHistoryCount(t *testing.T, app *App, want int64) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		page, err := app.QueryHistory(domain.HistoryFilter{})
		if err != nil {
			t.Fatalf("QueryHistory() error = %v", err)
		}
		if page.TotalMatching == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d history records", want)
}

// TestStartSummarizationPersistsHistory runs a summarization job end to end
// and verifies the result lands in the history database.
func TestStartSummarizationPersistsHistory(t *testing.T) {
	app := newTestApp(t)

	job, err := app.StartSummarization("A first sentence. A second sentence.")
	if err != nil {
		t.Fatalf("StartSummarization() error = %v", err)
	}
	if job.Kind != domain.JobKindSummarization {
		t.Fatalf("kind = %q", job.Kind)
	}

	final := waitTerminal(t, app, job.ID)
	if final.State != domain.JobStateCompleted {
		t.Fatalf("state = %q, want completed", final.State)
	}

	result, err := app.JobResult(job.ID)
	if err != nil {
		t.Fatalf("JobResult() error = %v", err)
	}
	if result.Summarization == nil || result.Summarization.Summary != "condensed" {
		t.Fatalf("result = %+v", result)
	}

	waitHistoryCount(t, app, 1)
	record, err := app.GetHistoryEntry(job.ID)
	if err != nil {
		t.Fatalf("GetHistoryEntry() error = %v", err)
	}
	if record.Summary != "condensed" {
		t.Fatalf("record summary = %q", record.Summary)
	}
	if record.Text != "A first sentence. A second sentence." {
		t.Fatalf("record text = %q, want the summarized input", record.Text)
	}

	if events := app.JobEvents(0); len(events) == 0 {
		t.Fatal("expected job events on the bus")
	}
}

// TestStartTranscriptionMissingInput fails fast with an input failure.
func TestStartTranscriptionMissingInput(t *testing.T) {
	app := newTestApp(t)

	job, err := app.StartTranscription(filepath.Join(t.TempDir(), "nope.mp3"))
	if err != nil {
		t.Fatalf("StartTranscription() error = %v", err)
	}

	final := waitTerminal(t, app, job.ID)
	if final.State != domain.JobStateFailed {
		t.Fatalf("state = %q, want failed", final.State)
	}
	if _, err := app.JobResult(job.ID); err == nil {
		t.Fatal("expected JobResult error for failed job")
	}
}

// TestStartTranscriptionHappyPath checks result mapping and persistence.
func TestStartTranscriptionHappyPath(t *testing.T) {
	app := newTestApp(t)
	app.transcriber = &fakeTranscriber{result: &engine.Transcription{
		Text:     "hello world",
		Language: "en",
		Segments: []domain.Segment{
			{Text: "hello", Start: 0, End: 1.5},
			{Text: "world", Start: 1.5, End: 3},
		},
	}}

	input := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(input, []byte("wav"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	job, err := app.StartTranscription(input)
	if err != nil {
		t.Fatalf("StartTranscription() error = %v", err)
	}
	final := waitTerminal(t, app, job.ID)
	if final.State != domain.JobStateCompleted {
		t.Fatalf("state = %q, want completed", final.State)
	}

	result, err := app.JobResult(job.ID)
	if err != nil {
		t.Fatalf("JobResult() error = %v", err)
	}
	tr := result.Transcription
	if tr == nil || tr.Text != "hello world" || tr.Language != "en" {
		t.Fatalf("transcription = %+v", tr)
	}
	if tr.Duration != 3 {
		t.Fatalf("duration = %v, want 3", tr.Duration)
	}

	waitHistoryCount(t, app, 1)
}

// TestSummarizeHistoryEntry chains a stored transcript into a new job.
func TestSummarizeHistoryEntry(t *testing.T) {
	app := newTestApp(t)

	seed := domain.HistoryRecord{
		ID:   "seed",
		Kind: domain.JobKindTranscription,
		Text: "Stored transcript text. With two sentences.",
	}
	if err := app.History.Save(seed); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	job, err := app.SummarizeHistoryEntry("seed")
	if err != nil {
		t.Fatalf("SummarizeHistoryEntry() error = %v", err)
	}
	final := waitTerminal(t, app, job.ID)
	if final.State != domain.JobStateCompleted {
		t.Fatalf("state = %q, want completed", final.State)
	}

	if _, err := app.SummarizeHistoryEntry("missing"); err == nil {
		t.Fatal("expected error for unknown history id")
	}
}

// TestUnknownJobLookups checks error paths for bad job ids.
func TestUnknownJobLookups(t *testing.T) {
	app := newTestApp(t)

	if err := app.CancelJob("nope"); err == nil {
		t.Fatal("expected error cancelling unknown job")
	}
	if _, err := app.GetJob("nope"); err == nil {
		t.Fatal("expected error getting unknown job")
	}
	if _, err := app.JobResult("nope"); err == nil {
		t.Fatal("expected error for unknown job result")
	}
}

// TestNormalizeSettingsDefaults checks trimming and default filling.
func TestNormalizeSettingsDefaults(t *testing.T) {
	got := normalizeSettings(domain.Settings{
		ModelPath: "  /models/ggml-base.bin  ",
		Language:  " ",
	})

	if got.ModelPath != "/models/ggml-base.bin" {
		t.Fatalf("model path = %q", got.ModelPath)
	}
	if got.Language != "auto" {
		t.Fatalf("language = %q", got.Language)
	}
	if got.MaxChunkChars <= 0 {
		t.Fatalf("max chunk chars = %d", got.MaxChunkChars)
	}
	if got.TargetLength == "" {
		t.Fatal("target length not defaulted")
	}
	if got.SummarizerModel == "" {
		t.Fatal("summarizer model not defaulted")
	}
}

// TestResolveModelVariant covers the path / directory / preset mapping.
func TestResolveModelVariant(t *testing.T) {
	dir := t.TempDir()
	modelFile := filepath.Join(dir, "ggml-small.bin")
	if err := os.WriteFile(modelFile, []byte("m"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	emptyDir := t.TempDir()

	tests := []struct {
		name      string
		modelPath string
		want      string
	}{
		{name: "empty falls back to preset", modelPath: "", want: defaultModelVariant},
		{name: "model file used directly", modelPath: modelFile, want: modelFile},
		{name: "directory picks first model", modelPath: dir, want: modelFile},
		{name: "empty directory falls back", modelPath: emptyDir, want: defaultModelVariant},
		{name: "preset id passes through", modelPath: "tiny", want: "tiny"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &transcriptionRunner{
				settings: domain.Settings{ModelPath: tt.modelPath},
				stat:     os.Stat,
				readDir:  os.ReadDir,
			}
			if got := r.resolveModelVariant(); got != tt.want {
				t.Fatalf("variant = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestModelDisplayName shortens file variants for stored metadata.
func TestModelDisplayName(t *testing.T) {
	if got := modelDisplayName("/models/ggml-base.en.bin"); got != "ggml-base.en.bin" {
		t.Fatalf("display name = %q", got)
	}
	if got := modelDisplayName("large-v3"); got != "large-v3" {
		t.Fatalf("display name = %q", got)
	}
}

// TestGetModelsListsCatalog checks the preset surface with local marking.
func TestGetModelsListsCatalog(t *testing.T) {
	app := newTestApp(t)
	if err := os.MkdirAll(app.downloadDir(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(app.downloadDir(), "ggml-tiny.bin"), []byte("m"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	options := app.GetModels()
	if len(options) == 0 {
		t.Fatal("expected catalog presets")
	}
	foundTiny := false
	for _, option := range options {
		if option.ID == "tiny" {
			foundTiny = true
			if !option.Downloaded {
				t.Fatal("tiny should be marked downloaded")
			}
		}
	}
	if !foundTiny {
		t.Fatal("tiny preset missing")
	}
}
