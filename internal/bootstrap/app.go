package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"github.com/ehis6k/transcriber/internal/config"
	"github.com/ehis6k/transcriber/internal/diagnostics"
	"github.com/ehis6k/transcriber/internal/domain"
	"github.com/ehis6k/transcriber/internal/engine"
	"github.com/ehis6k/transcriber/internal/history"
	"github.com/ehis6k/transcriber/internal/jobs"
	"github.com/ehis6k/transcriber/internal/logger"
	"github.com/ehis6k/transcriber/internal/models"
	"github.com/ehis6k/transcriber/internal/summarize"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// appDirName is the per-user directory holding settings, models, and the
// history database.
const appDirName = ".transcriber"

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var modelDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Whisper models",
		Pattern:     "*.bin;*.gguf",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// summaryEngine is the summarization server client surface the app needs:
// per-chunk inference plus a health probe.
type summaryEngine interface {
	engine.ChunkSummarizer
	Ping(ctx context.Context) error
}

// App wires configuration, the model cache, job controllers, persistence,
// and UI runtime callbacks.
type App struct {
	Store       config.Store
	History     *history.Store
	Cache       *models.Cache
	Diagnostics domain.DiagnosticReport

	log           *logrus.Logger
	assets        fs.FS
	checker       *diagnostics.Checker
	transcriber   engine.Transcriber
	newSummarizer func(url string) summaryEngine
	appDir        string

	mu          sync.Mutex
	settings    domain.Settings
	summarizer  summaryEngine
	controllers map[string]*jobs.Controller
	events      *jobs.EventBus
	runtimeCtx  context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	appDir := filepath.Join(homeDir, appDirName)

	store := config.NewJSONStore(filepath.Join(appDir, "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	log := logger.New(logger.Options{Level: settings.LogLevel})

	app := &App{
		Store:       store,
		log:         log,
		assets:      assets,
		appDir:      appDir,
		settings:    settings,
		controllers: make(map[string]*jobs.Controller),
		events:      jobs.NewEventBus(1000),
		transcriber: engine.NewWhisperTranscriber(),
		newSummarizer: func(url string) summaryEngine {
			return engine.NewLlamaSummarizer(url, log.WithField("component", "llama"))
		},
	}
	app.summarizer = app.newSummarizer(settings.SummarizerURL)

	app.Cache = models.NewCache(map[domain.EngineKind]models.Loader{
		domain.EngineKindTranscription: models.NewWhisperLoader(app.modelDirs, app.downloadDir),
		domain.EngineKindSummarization: models.NewSummarizerLoader(app),
	}, log.WithField("component", "models"))

	app.checker = diagnostics.NewChecker(app)
	app.Diagnostics = app.checker.Run(context.Background(), settings)

	hist, err := history.Open(settings.HistoryDBPath, log)
	if err != nil {
		// Jobs still run without history; queries will surface the error.
		log.WithError(err).Error("history database unavailable")
	} else {
		app.History = hist
	}

	return app, nil
}

// Ping probes the currently configured summarization server. It adapts the
// app to the diagnostics and model cache probe interfaces so URL changes in
// settings take effect without rewiring.
func (a *App) Ping(ctx context.Context) error {
	a.mu.Lock()
	summarizer := a.summarizer
	a.mu.Unlock()
	if summarizer == nil {
		return fmt.Errorf("summarization server is not configured")
	}
	return summarizer.Ping(ctx)
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Transcriber",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			a.runtimeCtx = nil
			a.mu.Unlock()
			if a.History != nil {
				_ = a.History.Close()
			}
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.reloadSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}

	report := a.checker.Run(context.Background(), settings)
	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()
	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	return a.reloadSettings()
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics
// and the summarization client.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	report := a.checker.Run(context.Background(), normalized)

	a.mu.Lock()
	if normalized.SummarizerURL != a.settings.SummarizerURL {
		a.summarizer = a.newSummarizer(normalized.SummarizerURL)
	}
	a.settings = normalized
	a.Diagnostics = report
	a.mu.Unlock()

	return normalized, nil
}

// StartTranscription creates a transcription job for the given media file
// and runs it asynchronously.
func (a *App) StartTranscription(inputPath string) (domain.Job, error) {
	settings, err := a.reloadSettings()
	if err != nil {
		return domain.Job{}, err
	}

	runner := &transcriptionRunner{
		input:       inputPath,
		settings:    settings,
		transcriber: a.transcriber,
		cache:       a.Cache,
		stat:        os.Stat,
		readDir:     os.ReadDir,
	}
	return a.startJob(runner)
}

// StartSummarization creates a summarization job for the given text and runs
// it asynchronously.
func (a *App) StartSummarization(text string) (domain.Job, error) {
	settings, err := a.reloadSettings()
	if err != nil {
		return domain.Job{}, err
	}

	a.mu.Lock()
	summarizer := a.summarizer
	a.mu.Unlock()

	runner := summarize.NewSummarizer(summarizer, a.Cache, summarize.Options{
		Text:            text,
		Language:        settings.Language,
		Model:           settings.SummarizerModel,
		MaxChunkChars:   settings.MaxChunkChars,
		TargetLength:    settings.TargetLength,
		StrictRecombine: settings.StrictRecombine,
	}, a.log)
	return a.startJob(runner)
}

// SummarizeHistoryEntry starts a summarization job over the transcript text
// of a stored record.
func (a *App) SummarizeHistoryEntry(id string) (domain.Job, error) {
	if a.History == nil {
		return domain.Job{}, fmt.Errorf("history database is not available")
	}
	record, err := a.History.Get(id)
	if err != nil {
		return domain.Job{}, err
	}
	return a.StartSummarization(record.Text)
}

// CancelJob requests cancellation of a running job.
func (a *App) CancelJob(id string) error {
	c, err := a.controller(id)
	if err != nil {
		return err
	}
	c.Cancel()
	return nil
}

// GetJob returns the identity and current state of one job.
func (a *App) GetJob(id string) (domain.Job, error) {
	c, err := a.controller(id)
	if err != nil {
		return domain.Job{}, err
	}
	return c.Job(), nil
}

// ListJobs returns all jobs started this session.
func (a *App) ListJobs() []domain.Job {
	a.mu.Lock()
	defer a.mu.Unlock()

	list := make([]domain.Job, 0, len(a.controllers))
	for _, c := range a.controllers {
		list = append(list, c.Job())
	}
	return list
}

// JobResult returns the output of a completed job.
func (a *App) JobResult(id string) (*domain.JobResult, error) {
	c, err := a.controller(id)
	if err != nil {
		return nil, err
	}
	if !c.Job().State.IsTerminal() {
		return nil, fmt.Errorf("job is still running: %s", id)
	}
	result, failure := c.Result()
	if failure != nil {
		return nil, failure
	}
	if result == nil {
		return nil, fmt.Errorf("job produced no result: %s", id)
	}
	return result, nil
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// QueryHistory returns one page of stored results matching the filter.
func (a *App) QueryHistory(filter domain.HistoryFilter) (*domain.HistoryPage, error) {
	if a.History == nil {
		return nil, fmt.Errorf("history database is not available")
	}
	return a.History.Query(filter)
}

// GetHistoryEntry returns one stored record by id.
func (a *App) GetHistoryEntry(id string) (*domain.HistoryRecord, error) {
	if a.History == nil {
		return nil, fmt.Errorf("history database is not available")
	}
	return a.History.Get(id)
}

// DeleteHistoryEntry removes one stored record by id.
func (a *App) DeleteHistoryEntry(id string) error {
	if a.History == nil {
		return fmt.Errorf("history database is not available")
	}
	return a.History.Delete(id)
}

// HistoryStats returns aggregates over all stored records.
func (a *App) HistoryStats() (*domain.HistoryStats, error) {
	if a.History == nil {
		return nil, fmt.Errorf("history database is not available")
	}
	return a.History.Stats()
}

// startJob launches the runner under a new controller and forwards its
// progress events to the UI.
func (a *App) startJob(runner jobs.Runner) (domain.Job, error) {
	c := jobs.NewController(runner.Kind(), a.log)
	events, err := c.Start(context.Background(), runner)
	if err != nil {
		return domain.Job{}, err
	}

	job := c.Job()
	a.mu.Lock()
	a.controllers[job.ID] = c
	a.mu.Unlock()

	a.log.WithFields(logrus.Fields{"job": job.ID, "kind": job.Kind}).Info("job started")
	go a.watchJob(c, events)
	return job, nil
}

// watchJob forwards progress events and persists the terminal result.
func (a *App) watchJob(c *jobs.Controller, events <-chan domain.ProgressEvent) {
	for ev := range events {
		a.publishEvent(ev)
	}
	a.persistResult(c)
}

// persistResult saves a completed job's output to the history database.
func (a *App) persistResult(c *jobs.Controller) {
	result, _ := c.Result()
	if result == nil || a.History == nil {
		return
	}

	record, err := history.RecordFromResult(result)
	if err != nil {
		a.log.WithError(err).WithField("job", result.JobID).Error("encode history record")
		return
	}
	if err := a.History.Save(record); err != nil {
		a.log.WithError(err).WithField("job", result.JobID).Error("save history record")
	}
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(ev domain.ProgressEvent) {
	published := a.events.Publish(ev)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// controller looks up a job controller by id.
func (a *App) controller(id string) (*jobs.Controller, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.controllers[id]
	if !ok {
		return nil, fmt.Errorf("unknown job: %s", id)
	}
	return c, nil
}

// reloadSettings reads settings from disk and caches them.
func (a *App) reloadSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	if settings.SummarizerURL != a.settings.SummarizerURL {
		a.summarizer = a.newSummarizer(settings.SummarizerURL)
	}
	a.settings = settings
	a.mu.Unlock()
	return settings, nil
}

// modelDirs lists the directories searched for local whisper model files.
func (a *App) modelDirs() []string {
	a.mu.Lock()
	modelPath := strings.TrimSpace(a.settings.ModelPath)
	a.mu.Unlock()

	dirs := []string{a.downloadDir()}
	if modelPath == "" {
		return dirs
	}

	if info, err := os.Stat(modelPath); err == nil {
		if info.IsDir() {
			dirs = append(dirs, modelPath)
		} else {
			dirs = append(dirs, filepath.Dir(modelPath))
		}
	}
	return dirs
}

// downloadDir is where catalog models are placed.
func (a *App) downloadDir() string {
	return filepath.Join(a.appDir, "models")
}

// PickInputFile opens a native file dialog for media selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickModelFile opens a native file dialog for whisper model selection.
func (a *App) PickModelFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select whisper model",
		Filters: modelDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select model directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for transcript exports.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in the
// platform file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and fills required defaults.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.ModelPath = strings.TrimSpace(settings.ModelPath)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.Language = strings.TrimSpace(settings.Language)
	settings.SummarizerURL = strings.TrimSpace(settings.SummarizerURL)
	settings.SummarizerModel = strings.TrimSpace(settings.SummarizerModel)
	settings.HistoryDBPath = strings.TrimSpace(settings.HistoryDBPath)

	if settings.Language == "" {
		settings.Language = defaults.Language
	}
	if settings.SummarizerModel == "" {
		settings.SummarizerModel = defaults.SummarizerModel
	}
	if settings.HistoryDBPath == "" {
		settings.HistoryDBPath = defaults.HistoryDBPath
	}
	if settings.MaxChunkChars <= 0 {
		settings.MaxChunkChars = defaults.MaxChunkChars
	}
	if settings.TargetLength == "" {
		settings.TargetLength = defaults.TargetLength
	}
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
