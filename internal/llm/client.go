// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm wraps the completion service used by the planner, reviewer, and
// writer stages. The service is an opaque text-in/text-out black box; callers
// own structural parsing and the one-retry-then-fallback policy.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/meshintel/deepresearch/pkg/types"
)

// ErrUnavailable marks a completion-service transport or API failure. Stages
// match it with errors.Is to trigger their safe defaults.
var ErrUnavailable = errors.New("completion service unavailable")

// Request is one completion call.
type Request struct {
	// System is the system prompt establishing the stage's role.
	System string

	// User is the user-turn prompt carrying the question and context.
	User string

	// FormatHint, when non-empty, is appended to the user prompt to pin
	// the expected output structure (e.g. a JSON schema sketch).
	FormatHint string
}

// Client is the completion service. Implementations must be safe for
// concurrent use.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// anthropicAPIURL is the Messages API endpoint. Package-level var for test
// substitution.
var anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	Config types.AIConfig
	Client *http.Client
}

// anthropicRequest is the request body for the Messages API.
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

// anthropicMessage is a single message in the conversation.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the response body from the Messages API.
type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

// anthropicContent is a content block in the API response.
type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends one completion request and returns the concatenated text
// blocks of the response. All transport and API failures are reported as
// ErrUnavailable so stages can apply their fallbacks uniformly.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	user := req.User
	if req.FormatHint != "" {
		user = user + "\n\n" + req.FormatHint
	}

	body := anthropicRequest{
		Model:     c.Config.Model,
		MaxTokens: c.Config.MaxTokens,
		System:    req.System,
		Messages: []anthropicMessage{
			{Role: "user", Content: user},
		},
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.Config.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, resp.StatusCode, string(msg))
	}

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	var text string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("%w: response has no text content", ErrUnavailable)
	}
	return text, nil
}
