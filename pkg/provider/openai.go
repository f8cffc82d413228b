// Package provider implements a streaming client for OpenAI-compatible
// chat-completion endpoints.
package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tanchat/pkg/config"
	"tanchat/pkg/logger"
)

// Turn is one role-tagged entry in a chat request.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// APIError is any failure produced by the provider: a non-200 response, an
// in-stream error object, a transport failure or a truncated stream. It is
// the only error kind the orchestrator converts into a Failed reply.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

type chatRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to one configured chat-completion endpoint.
type Client struct {
	baseURL      string
	model        string
	apiKey       string
	systemPrompt string
	maxTokens    int
	temperature  float64
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// New builds a Client from the resolved configuration. The API key follows
// the documented precedence (config override, then environment).
func New(cfg *config.Config) *Client {
	rps := cfg.Provider.RPS
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Provider.Burst
	if burst <= 0 {
		burst = 4
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.Provider.BaseURL, "/"),
		model:        cfg.Provider.Model,
		apiKey:       cfg.ResolveAPIKey(),
		systemPrompt: cfg.Provider.SystemPrompt,
		maxTokens:    cfg.Provider.MaxTokens,
		temperature:  cfg.Provider.Temperature,
		httpClient:   &http.Client{Timeout: 10 * time.Minute},
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Stream sends the turns (with the fixed system preamble prepended) and
// returns a channel of text increments plus an error channel. The content
// channel is closed at end-of-stream; the error channel carries at most one
// error and is closed afterwards.
func (c *Client) Stream(ctx context.Context, turns []Turn) (<-chan string, <-chan error) {
	contentCh := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(contentCh)
		defer close(errCh)

		if c.apiKey == "" {
			errCh <- &APIError{Message: "API key not configured"}
			return
		}
		if err := c.limiter.Wait(ctx); err != nil {
			errCh <- &APIError{Message: err.Error()}
			return
		}

		req := chatRequest{
			Model:       c.model,
			Messages:    append([]Turn{{Role: "system", Content: c.systemPrompt}}, turns...),
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Stream:      true,
		}
		body, err := json.Marshal(req)
		if err != nil {
			errCh <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			errCh <- fmt.Errorf("failed to create request: %w", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Accept", "text/event-stream")

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			errCh <- &APIError{Message: err.Error()}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			errCh <- &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				logger.Debug("stream_done", "model", c.model, "elapsed", time.Since(start).String())
				return
			}
			var chunk chatChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				errCh <- &APIError{Message: chunk.Error.Message}
				return
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				select {
				case contentCh <- chunk.Choices[0].Delta.Content:
				case <-ctx.Done():
					errCh <- &APIError{Message: ctx.Err().Error()}
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- &APIError{Message: "stream interrupted: " + err.Error()}
		}
	}()

	return contentCh, errCh
}
