package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ehis6k/transcriber/internal/domain"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// WhisperTranscriber runs ffmpeg preprocessing and whisper.cpp recognition.
type WhisperTranscriber struct {
	ffmpegPath  string
	whisperPath string
	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	stat        func(name string) (os.FileInfo, error)
	mkdirAll    func(path string, perm os.FileMode) error
	readFile    func(name string) ([]byte, error)
}

// NewWhisperTranscriber constructs the production transcriber with OS dependencies.
func NewWhisperTranscriber() *WhisperTranscriber {
	return &WhisperTranscriber{
		ffmpegPath:  "ffmpeg",
		whisperPath: "whisper.cpp",
		runner:      &execRunner{},
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        os.Stat,
		mkdirAll:    os.MkdirAll,
		readFile:    os.ReadFile,
	}
}

// Transcribe converts input media to 16k mono WAV, runs whisper.cpp, and
// normalizes the engine JSON output. The plain-text transcript is also
// exported next to the configured output directory.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, req TranscribeRequest) (*Transcription, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return nil, &EngineError{Op: "preprocess", Message: "input media path is required"}
	}
	if _, err := w.stat(req.InputPath); err != nil {
		return nil, &EngineError{
			Op:      "preprocess",
			Message: fmt.Sprintf("cannot access input media: %s", req.InputPath),
			Err:     err,
		}
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return nil, &EngineError{Op: "transcribe", Message: "model path is required"}
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return nil, &EngineError{Op: "export", Message: "output directory is required"}
	}
	if err := w.mkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, &EngineError{
			Op:      "export",
			Message: fmt.Sprintf("cannot create output directory: %s", req.OutputDir),
			Err:     err,
		}
	}

	tempDir, err := w.mkdirTemp("", "transcriber-*")
	if err != nil {
		return nil, &EngineError{Op: "preprocess", Message: "failed to create temporary workspace", Err: err}
	}
	defer func() { _ = w.removeAll(tempDir) }()

	wavPath := filepath.Join(tempDir, "preprocessed-16k-mono.wav")
	emitStage(req.OnStage, "preprocessing")
	ffmpegArgs := buildFFmpegArgs(req.InputPath, wavPath)

	ffmpegResult, runErr := w.runner.Run(ctx, w.ffmpegPath, ffmpegArgs...)
	emitLog(req.OnLog, CommandLog{
		Command:  w.ffmpegPath,
		Args:     ffmpegArgs,
		ExitCode: ffmpegResult.ExitCode,
		Stdout:   ffmpegResult.Stdout,
		Stderr:   ffmpegResult.Stderr,
	})
	if runErr != nil {
		return nil, &EngineError{Op: "preprocess", Message: "ffmpeg audio conversion failed", Err: runErr}
	}
	if _, err := w.stat(wavPath); err != nil {
		return nil, &EngineError{Op: "preprocess", Message: "ffmpeg completed but output file is missing", Err: err}
	}

	textPath := filepath.Join(req.OutputDir, transcriptFileName(req.InputPath))
	textBase := strings.TrimSuffix(textPath, filepath.Ext(textPath))
	emitStage(req.OnStage, "transcribing")
	whisperArgs := buildWhisperArgs(req.ModelPath, wavPath, textBase, req.Language)

	whisperResult, runErr := w.runner.Run(ctx, w.whisperPath, whisperArgs...)
	emitLog(req.OnLog, CommandLog{
		Command:  w.whisperPath,
		Args:     whisperArgs,
		ExitCode: whisperResult.ExitCode,
		Stdout:   whisperResult.Stdout,
		Stderr:   whisperResult.Stderr,
	})
	if runErr != nil {
		return nil, &EngineError{Op: "transcribe", Message: "whisper.cpp transcription failed", Err: runErr}
	}

	jsonPath := textBase + ".json"
	jsonData, err := w.readFile(jsonPath)
	if err != nil {
		return nil, &EngineError{
			Op:      "transcribe",
			Message: "whisper.cpp completed but JSON output is missing",
			Err:     err,
		}
	}

	transcription, err := normalizeWhisperOutput(jsonData)
	if err != nil {
		return nil, &EngineError{Op: "transcribe", Message: "unparseable whisper.cpp output", Err: err}
	}

	emitStage(req.OnStage, "exporting")
	if content, err := w.readFile(textPath); err == nil {
		transcription.Text = strings.TrimSpace(string(content))
		transcription.TextPath = textPath
	}
	if transcription.Text == "" {
		transcription.Text = joinSegmentTexts(transcription.Segments)
	}
	if strings.TrimSpace(transcription.Text) == "" {
		return nil, &EngineError{Op: "transcribe", Message: "whisper.cpp returned an empty transcript"}
	}

	return transcription, nil
}

// whisperOutput mirrors the subset of whisper.cpp -oj output we consume.
// Older builds put language at the top level, newer ones under result.
type whisperOutput struct {
	Language string `json:"language"`
	Result   struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text    string `json:"text"`
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Confidence *float64 `json:"confidence"`
	} `json:"transcription"`
}

// normalizeWhisperOutput decodes engine JSON into the internal shape.
// All tolerance for output variations lives here, nowhere else.
func normalizeWhisperOutput(data []byte) (*Transcription, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	t := &Transcription{Language: out.Result.Language}
	if t.Language == "" {
		t.Language = out.Language
	}

	var confSum float64
	var confCount int
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		t.Segments = append(t.Segments, segmentFromOffsets(text, seg.Offsets.From, seg.Offsets.To))
		if seg.Confidence != nil {
			confSum += *seg.Confidence
			confCount++
		}
	}
	if confCount > 0 {
		mean := confSum / float64(confCount)
		t.Confidence = &mean
	}

	t.Text = joinSegmentTexts(t.Segments)
	return t, nil
}

// segmentFromOffsets converts millisecond offsets to a normalized segment.
func segmentFromOffsets(text string, fromMS, toMS int64) domain.Segment {
	return domain.Segment{
		Text:  text,
		Start: float64(fromMS) / 1000.0,
		End:   float64(toMS) / 1000.0,
	}
}

// joinSegmentTexts concatenates segment texts with single spaces.
func joinSegmentTexts(segments []domain.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage string), stage string) {
	if cb != nil {
		cb(stage)
	}
}

// emitLog forwards command logs when callback is configured.
func emitLog(cb func(log CommandLog), log CommandLog) {
	if cb != nil {
		cb(log)
	}
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for txt and JSON export.
func buildWhisperArgs(modelPath, audioPath, textBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", textBase,
		"-otxt",
		"-oj",
	}

	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}

	return args
}

// transcriptFileName builds output text filename from input media name.
func transcriptFileName(inputPath string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "transcript"
	}
	return name + ".txt"
}

// NewWhisperTranscriberForTests constructs a transcriber with injectable dependencies.
func NewWhisperTranscriberForTests(
	ffmpegPath string,
	whisperPath string,
	runner commandRunner,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	stat func(name string) (os.FileInfo, error),
) *WhisperTranscriber {
	return &WhisperTranscriber{
		ffmpegPath:  ffmpegPath,
		whisperPath: whisperPath,
		runner:      runner,
		mkdirTemp:   mkdirTemp,
		removeAll:   removeAll,
		stat:        stat,
		mkdirAll:    os.MkdirAll,
		readFile:    os.ReadFile,
	}
}
