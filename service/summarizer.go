package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smartbook/backend/logging"
	"github.com/smartbook/backend/models"
	"github.com/sony/gobreaker/v2"
)

// maxSummaryInput caps the characters of book text sent for summarization.
const maxSummaryInput = 12000

// Summarizer produces a short description of a book's text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type SummarizerConfig struct {
	URL    string // OpenAI-compatible chat completions endpoint
	APIKey string
	Model  string
}

// HTTPSummarizer calls a chat completions API behind a circuit breaker so a failing
// provider stops costing upload latency.
type HTTPSummarizer struct {
	cfg  SummarizerConfig
	http *http.Client
	cb   *gobreaker.CircuitBreaker[string]
}

func NewHTTPSummarizer(cfg SummarizerConfig) *HTTPSummarizer {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "summarizer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return &HTTPSummarizer{cfg: cfg, http: &http.Client{Timeout: 60 * time.Second}, cb: cb}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *HTTPSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: no text to summarize", models.ErrInvalidInput)
	}
	if r := []rune(text); len(r) > maxSummaryInput {
		text = string(r[:maxSummaryInput])
	}
	summary, err := s.cb.Execute(func() (string, error) {
		return s.complete(ctx, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: summarizer unavailable", models.ErrUpstream)
	}
	return summary, err
}

func (s *HTTPSummarizer) complete(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You summarize books for a library catalog in one short paragraph."},
			{Role: "user", Content: text},
		},
		MaxTokens: 300,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: summarizer returned %d", models.ErrUpstream, resp.StatusCode)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode summary: %v", models.ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty summary", models.ErrUpstream)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
