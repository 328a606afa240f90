package summarize

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ehis6k/transcriber/internal/domain"
	"github.com/ehis6k/transcriber/internal/engine"
	"github.com/ehis6k/transcriber/internal/jobs"
	"github.com/ehis6k/transcriber/internal/models"
)

// placeholderSummary marks a section whose summarization call failed.
const placeholderSummary = "[Summary unavailable for this section]"

// Options configures one summarization run.
type Options struct {
	Text          string
	Language      string
	Model         string
	MaxChunkChars int
	TargetLength  domain.TargetLength
	MaxLength     int // explicit override, 0 means derive from TargetLength
	MinLength     int // explicit override, 0 means MaxLength / 2
	// StrictRecombine fails the job when the final recombination call
	// errors instead of falling back to the joined section summaries.
	StrictRecombine bool
}

// Summarizer condenses long text by summarizing bounded sections and then
// recombining the section summaries into one final summary.
type Summarizer struct {
	engine engine.ChunkSummarizer
	cache  *models.Cache
	opts   Options
	log    *logrus.Entry
}

// NewSummarizer builds a summarization job runner. cache may be nil when the
// engine needs no warmup.
func NewSummarizer(eng engine.ChunkSummarizer, cache *models.Cache, opts Options, log *logrus.Logger) *Summarizer {
	if log == nil {
		log = logrus.New()
	}
	return &Summarizer{
		engine: eng,
		cache:  cache,
		opts:   opts,
		log:    log.WithField("runner", "summarize"),
	}
}

// Kind identifies the job type this runner produces.
func (s *Summarizer) Kind() domain.JobKind {
	return domain.JobKindSummarization
}

// Run executes the chunk / summarize / recombine pipeline.
func (s *Summarizer) Run(ctx context.Context, progress *jobs.Reporter) (*domain.JobResult, error) {
	text := strings.TrimSpace(s.opts.Text)
	if text == "" {
		return nil, jobs.NewFailure(jobs.FailureInputUnavailable, "There is no text to summarize.", nil)
	}

	if err := s.warmEngine(ctx, progress); err != nil {
		return nil, err
	}

	progress.Stage(domain.JobStateProcessing, 10, "Splitting text into sections")
	chunks := Chunk(text, s.opts.MaxChunkChars)

	summaries, failures, err := s.summarizeChunks(ctx, progress, chunks)
	if err != nil {
		return nil, err
	}
	if failures == len(chunks) {
		return nil, &engine.EngineError{Op: "summarize", Message: "every section failed to summarize"}
	}

	final, err := s.recombine(ctx, progress, text, chunks, summaries)
	if err != nil {
		return nil, err
	}

	ratio := 0.0
	if len(text) > 0 {
		ratio = float64(len(final)) / float64(len(text))
	}
	result := &domain.SummarizationResult{
		SourceText:       text,
		Summary:          final,
		ChunkSummaries:   summaries,
		OriginalLength:   len(text),
		SummaryLength:    len(final),
		CompressionRatio: ratio,
		ModelUsed:        s.modelName(),
		Language:         s.opts.Language,
	}

	return &domain.JobResult{Summarization: result}, nil
}

// warmEngine acquires the summarization model, surfacing the loading stage
// only when the model is not already cached.
func (s *Summarizer) warmEngine(ctx context.Context, progress *jobs.Reporter) error {
	if s.cache == nil {
		return nil
	}
	variant := s.modelName()
	if !s.cache.Cached(domain.EngineKindSummarization, variant) {
		progress.Stage(domain.JobStateLoadingModel, 5, "Preparing summarization engine")
	}
	handle, err := s.cache.Acquire(ctx, domain.EngineKindSummarization, variant)
	if err != nil {
		return err
	}
	handle.Release()
	return nil
}

// summarizeChunks summarizes each section, isolating per-section failures as
// placeholders so one bad section cannot sink the whole job.
func (s *Summarizer) summarizeChunks(ctx context.Context, progress *jobs.Reporter, chunks []domain.TextChunk) ([]domain.ChunkSummary, int, error) {
	summaries := make([]domain.ChunkSummary, 0, len(chunks))
	failures := 0
	total := len(chunks)

	for i, chunk := range chunks {
		if progress.Cancelled() || ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		progress.Progress(
			10+75*float64(i)/float64(total),
			"Summarizing section",
			i+1,
			total,
		)

		maxLen, minLen := lengthTargets(len(chunk.Text), s.opts.TargetLength, s.opts.MaxLength, s.opts.MinLength)
		summary, err := s.engine.SummarizeChunk(ctx, chunk.Text, engine.SummarizeOptions{
			Model:     s.opts.Model,
			MaxLength: maxLen,
			MinLength: minLen,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			s.log.WithError(err).WithField("section", chunk.Index).Warn("section summarization failed")
			summaries = append(summaries, domain.ChunkSummary{
				ChunkIndex:  chunk.Index,
				SummaryText: placeholderSummary,
				StartOffset: chunk.StartOffset,
				EndOffset:   chunk.EndOffset,
				Placeholder: true,
			})
			failures++
			continue
		}

		summaries = append(summaries, domain.ChunkSummary{
			ChunkIndex:  chunk.Index,
			SummaryText: strings.TrimSpace(summary),
			StartOffset: chunk.StartOffset,
			EndOffset:   chunk.EndOffset,
		})
	}

	return summaries, failures, nil
}

// recombine produces the final summary. A single section's summary is final
// as-is; multiple sections get one more summarization pass over the joined
// section summaries, falling back to the joined text when that pass fails
// and StrictRecombine is off.
func (s *Summarizer) recombine(ctx context.Context, progress *jobs.Reporter, text string, chunks []domain.TextChunk, summaries []domain.ChunkSummary) (string, error) {
	combined := joinSummaries(summaries)

	if len(chunks) <= 1 || combined == "" {
		return combined, nil
	}

	progress.Progress(90, "Combining section summaries", 0, 0)

	maxLen, minLen := lengthTargets(len(text), s.opts.TargetLength, s.opts.MaxLength, s.opts.MinLength)
	final, err := s.engine.SummarizeChunk(ctx, combined, engine.SummarizeOptions{
		Model:     s.opts.Model,
		MaxLength: maxLen,
		MinLength: minLen,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if s.opts.StrictRecombine {
			return "", err
		}
		s.log.WithError(err).Warn("recombination failed, keeping joined section summaries")
		return combined, nil
	}

	final = strings.TrimSpace(final)
	if final == "" {
		if s.opts.StrictRecombine {
			return "", &engine.EngineError{Op: "recombine", Message: "engine returned an empty final summary"}
		}
		return combined, nil
	}
	return final, nil
}

// modelName returns the configured model name, defaulting for display.
func (s *Summarizer) modelName() string {
	if s.opts.Model != "" {
		return s.opts.Model
	}
	return "default"
}

// joinSummaries concatenates usable section summaries in section order.
// Placeholder sections are excluded so the marker text never reaches the
// recombination pass or the final summary.
func joinSummaries(summaries []domain.ChunkSummary) string {
	parts := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		if summary.Placeholder || summary.SummaryText == "" {
			continue
		}
		parts = append(parts, summary.SummaryText)
	}
	return strings.Join(parts, " ")
}

// lengthTargets derives summary length bounds from the input length and the
// requested verbosity. Explicit overrides replace the derived values.
func lengthTargets(textLen int, target domain.TargetLength, maxOverride, minOverride int) (maxLen, minLen int) {
	switch target {
	case domain.TargetLengthShort:
		maxLen = clamp(textLen*10/100, 50, 100)
	case domain.TargetLengthLong:
		maxLen = clamp(textLen*30/100, 150, 300)
	default:
		maxLen = clamp(textLen*20/100, 100, 200)
	}
	minLen = maxLen / 2

	if maxOverride > 0 {
		maxLen = maxOverride
		minLen = maxLen / 2
	}
	if minOverride > 0 {
		minLen = minOverride
	}
	return maxLen, minLen
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
