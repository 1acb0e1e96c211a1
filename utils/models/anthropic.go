package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/forgen-run/forgen/utils/config"
	"github.com/forgen-run/forgen/utils/retry"
)

// AnthropicProvider talks to the Anthropic Messages API directly over
// HTTP, hand-rolling the request rather than pulling in a dedicated SDK.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	verbose bool
	mu      sync.Mutex
}

// NewAnthropicProvider creates a new Anthropic provider instance.
func NewAnthropicProvider() *AnthropicProvider {
	return &AnthropicProvider{baseURL: "https://api.anthropic.com/v1/messages"}
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

// SupportsModel checks if the given model name belongs to Anthropic.
func (a *AnthropicProvider) SupportsModel(modelName string) bool {
	return strings.HasPrefix(strings.ToLower(modelName), "claude-")
}

// Configure sets up the provider with necessary credentials.
func (a *AnthropicProvider) Configure(cfg config.ProviderConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required for Anthropic provider")
	}
	a.apiKey = cfg.APIKey
	if cfg.BaseURL != "" {
		a.baseURL = cfg.BaseURL
	}
	return nil
}

func (a *AnthropicProvider) SetVerbose(verbose bool) { a.verbose = verbose }

func (a *AnthropicProvider) debugf(format string, args ...interface{}) {
	if a.verbose {
		a.mu.Lock()
		defer a.mu.Unlock()
		log.Printf("[DEBUG][anthropic] "+format+"\n", args...)
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	System      string              `json:"system,omitempty"`
	Messages    []anthropicMessage  `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends req to the Anthropic Messages API and returns the
// assistant's text, retrying transient (429/5xx) failures.
func (a *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if a.apiKey == "" {
		return "", errNotConfigured("anthropic")
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	body := anthropicRequest{
		Model:       req.Model,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	result, _, err := retry.WithRetryCount(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(jsonData))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.apiKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")

		client := &http.Client{Timeout: 120 * time.Second}
		resp, err := client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("error calling anthropic API: %w", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
		}

		var parsed anthropicResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse anthropic response: %w", err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("anthropic API error: %s", parsed.Error.Message)
		}
		if len(parsed.Content) == 0 {
			return "", nil
		}
		return parsed.Content[0].Text, nil
	}, retry.IsTransient, retry.DefaultRetryConfig)

	if err != nil {
		return "", err
	}
	a.debugf("completion succeeded, %d bytes", len(result.(string)))
	return result.(string), nil
}
