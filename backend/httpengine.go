package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/tailored-agentic-units/converse/core/protocol"
)

// Client is a BatchEngine and TaskEngine over an OpenAI-compatible
// chat-completions endpoint with SSE streaming.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// NewClient creates a Client for the given endpoint and model. baseURL is
// the API root, e.g. "https://openrouter.ai/api/v1".
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: http.DefaultClient,
	}
}

// Generate streams a completion for the full message list. The request is
// issued when the sequence is first pulled.
func (c *Client) Generate(ctx context.Context, messages []protocol.Message, temperature float64) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		resp, err := c.post(ctx, messages, temperature)
		if err != nil {
			yield(Delta{}, err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				break
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason string `json:"finish_reason"`
				} `json:"choices"`
				Usage *struct {
					PromptTokens     int `json:"prompt_tokens"`
					CompletionTokens int `json:"completion_tokens"`
				} `json:"usage"`
			}
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}

			var d Delta
			for _, choice := range chunk.Choices {
				d.Text += choice.Delta.Content
				if choice.FinishReason != "" {
					d.FinishReason = choice.FinishReason
				}
			}
			if chunk.Usage != nil {
				d.Usage = &TokenCount{
					Input:  chunk.Usage.PromptTokens,
					Output: chunk.Usage.CompletionTokens,
				}
			}
			if d == (Delta{}) {
				continue
			}
			if !yield(d, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Delta{}, fmt.Errorf("read stream: %w", err))
		}
	}
}

// Complete produces one completion for a one-shot task with static context.
func (c *Client) Complete(ctx context.Context, task, contextText string) iter.Seq2[Delta, error] {
	messages := []protocol.Message{
		protocol.NewMessage(protocol.RoleSystem, contextText),
		protocol.NewMessage(protocol.RoleUser, task),
	}
	return c.Generate(ctx, messages, 0)
}

func (c *Client) post(ctx context.Context, messages []protocol.Message, temperature float64) (*http.Response, error) {
	body := map[string]any{
		"model":          c.Model,
		"messages":       messages,
		"stream":         true,
		"stream_options": map[string]any{"include_usage": true},
	}
	if temperature > 0 {
		body["temperature"] = temperature
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("completion request: status %d: %s", resp.StatusCode, msg)
	}
	return resp, nil
}
