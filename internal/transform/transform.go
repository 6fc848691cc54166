// Package transform sends extracted content to an LLM provider for
// task-requested reshaping (summarize, restructure, answer a custom
// instruction) and reports the token usage the caller bills against.
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ishaanrender/scrapegoat-render/internal/apierr"
)

// Provider identifies which LLM backend a task asked to use.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderCustom Provider = "custom"
)

// maxInputChars bounds what is sent to the provider; content beyond
// this is truncated rather than rejected, since a transform request on
// an oversized page should degrade, not fail outright.
const maxInputChars = 12000

// Request describes one transform call.
type Request struct {
	Provider     Provider
	Endpoint     string
	Model        string
	APIKey       string
	MaxTokens    int
	Temperature  float64
	Content      string
	Instructions string
}

// Result is the transform output plus the token count to bill.
type Result struct {
	Output     string
	TokensUsed int
}

// Client calls out to an LLM provider over HTTP.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// New creates a transform client with the given request timeout.
func New(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger.With("component", "transform_client"),
	}
}

// Run truncates req.Content to maxInputChars, builds the provider's
// prompt, and dispatches to the matching backend.
func (c *Client) Run(ctx context.Context, req Request) (Result, error) {
	content := req.Content
	if len(content) > maxInputChars {
		content = content[:maxInputChars]
	}
	prompt := buildPrompt(req.Instructions, content)

	var (
		out string
		err error
	)
	switch req.Provider {
	case ProviderOllama:
		out, err = c.callOllama(ctx, req, prompt)
	case ProviderOpenAI:
		out, err = c.callOpenAI(ctx, req, prompt)
	case ProviderCustom:
		out, err = c.callCustom(ctx, req, prompt)
	default:
		return Result{}, apierr.NewTransformError("transform.Run", fmt.Sprintf("unsupported provider %q", req.Provider), nil)
	}
	if err != nil {
		return Result{}, apierr.NewTransformError("transform.Run", "provider call failed", err)
	}

	return Result{Output: out, TokensUsed: estimateTokens(prompt) + estimateTokens(out)}, nil
}

func buildPrompt(instructions, content string) string {
	if instructions == "" {
		instructions = "Summarize the following content."
	}
	return fmt.Sprintf("%s\n\n---\n\n%s", instructions, content)
}

// estimateTokens approximates usage at ~4 characters per token, the
// convention used when a provider's response omits a usage block.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

func (c *Client) callOllama(ctx context.Context, req Request, prompt string) (string, error) {
	payload := map[string]any{
		"model":  req.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	var result struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, req.Endpoint+"/api/generate", req.APIKey, payload, &result); err != nil {
		return "", err
	}
	return result.Response, nil
}

func (c *Client) callOpenAI(ctx context.Context, req Request, prompt string) (string, error) {
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	payload := map[string]any{
		"model": req.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, endpoint+"/chat/completions", req.APIKey, payload, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *Client) callCustom(ctx context.Context, req Request, prompt string) (string, error) {
	payload := map[string]any{"prompt": prompt, "model": req.Model}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (c *Client) postJSON(ctx context.Context, url, apiKey string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}
