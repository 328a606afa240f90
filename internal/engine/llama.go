package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const defaultSummarizeTimeout = 5 * time.Minute

// LlamaSummarizer calls a llama.cpp-server-compatible HTTP endpoint for
// per-chunk summaries.
type LlamaSummarizer struct {
	client *resty.Client
	log    *logrus.Entry
}

// NewLlamaSummarizer builds a summarizer client for the given base URL.
func NewLlamaSummarizer(baseURL string, log *logrus.Entry) *LlamaSummarizer {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultSummarizeTimeout).
		SetHeader("Content-Type", "application/json")

	return &LlamaSummarizer{client: client, log: log}
}

// completionRequest is the llama.cpp server /completion payload.
type completionRequest struct {
	Prompt      string  `json:"prompt"`
	NPredict    int     `json:"n_predict"`
	Temperature float64 `json:"temperature"`
	Model       string  `json:"model,omitempty"`
}

// SummarizeChunk asks the inference server for a bounded summary of text.
func (s *LlamaSummarizer) SummarizeChunk(ctx context.Context, text string, opts SummarizeOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &EngineError{Op: "summarize", Message: "chunk text is empty"}
	}

	body := completionRequest{
		Prompt:      buildSummaryPrompt(text, opts),
		NPredict:    predictBudget(opts.MaxLength),
		Temperature: 0.3,
		Model:       opts.Model,
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/completion")
	if err != nil {
		return "", &EngineError{Op: "summarize", Message: "summarization server request failed", Err: err}
	}
	if resp.IsError() {
		return "", &EngineError{
			Op:      "summarize",
			Message: fmt.Sprintf("summarization server returned status %d", resp.StatusCode()),
		}
	}

	summary, err := normalizeSummaryResponse(resp.Body())
	if err != nil {
		return "", &EngineError{Op: "summarize", Message: "unparseable summarization response", Err: err}
	}
	if summary == "" {
		return "", &EngineError{Op: "summarize", Message: "summarization server returned an empty summary"}
	}

	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"inputChars":  len(text),
			"outputChars": len(summary),
		}).Debug("chunk summarized")
	}
	return summary, nil
}

// Ping checks whether the inference server is reachable.
func (s *LlamaSummarizer) Ping(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return &EngineError{Op: "ping", Message: "summarization server is unreachable", Err: err}
	}
	if resp.IsError() {
		return &EngineError{
			Op:      "ping",
			Message: fmt.Sprintf("summarization server health check returned status %d", resp.StatusCode()),
		}
	}
	return nil
}

// normalizeSummaryResponse extracts summary text from the known response
// shapes: llama.cpp {"content"}, OpenAI-style {"choices"}, transformers-style
// [{"summary_text"}], or a bare JSON string. Decided once here, never
// re-interpreted downstream.
func normalizeSummaryResponse(data []byte) (string, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", fmt.Errorf("empty response body")
	}

	var asObject struct {
		Content string `json:"content"`
		Choices []struct {
			Text    string `json:"text"`
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		SummaryText string `json:"summary_text"`
	}
	if err := json.Unmarshal(data, &asObject); err == nil {
		if out := strings.TrimSpace(asObject.Content); out != "" {
			return out, nil
		}
		if out := strings.TrimSpace(asObject.SummaryText); out != "" {
			return out, nil
		}
		for _, choice := range asObject.Choices {
			if out := strings.TrimSpace(choice.Text); out != "" {
				return out, nil
			}
			if out := strings.TrimSpace(choice.Message.Content); out != "" {
				return out, nil
			}
		}
		return "", nil
	}

	var asArray []struct {
		SummaryText string `json:"summary_text"`
		Content     string `json:"content"`
	}
	if err := json.Unmarshal(data, &asArray); err == nil {
		for _, item := range asArray {
			if out := strings.TrimSpace(item.SummaryText); out != "" {
				return out, nil
			}
			if out := strings.TrimSpace(item.Content); out != "" {
				return out, nil
			}
		}
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		return strings.TrimSpace(asString), nil
	}

	return "", fmt.Errorf("unrecognized response shape")
}

// buildSummaryPrompt frames the chunk with explicit length bounds.
func buildSummaryPrompt(text string, opts SummarizeOptions) string {
	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = 200
	}
	minLen := opts.MinLength
	if minLen <= 0 || minLen > maxLen {
		minLen = maxLen / 2
	}

	return fmt.Sprintf(
		"Summarize the following text in %d to %d characters. "+
			"Respond with the summary only, no preamble.\n\n%s\n\nSummary:",
		minLen, maxLen, text,
	)
}

// predictBudget converts a character budget to a generation token budget.
func predictBudget(maxChars int) int {
	if maxChars <= 0 {
		return 128
	}
	// roughly four characters per token, with headroom
	tokens := maxChars/3 + 16
	if tokens < 32 {
		tokens = 32
	}
	return tokens
}
