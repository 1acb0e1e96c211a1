package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forgen-run/forgen/utils/config"
	"github.com/forgen-run/forgen/utils/retry"
)

// OllamaProvider talks to a local Ollama daemon, used for models with
// no recognized hosted-provider prefix.
type OllamaProvider struct {
	baseURL string
	verbose bool
}

// NewOllamaProvider creates a new Ollama provider instance.
func NewOllamaProvider() *OllamaProvider {
	return &OllamaProvider{baseURL: "http://localhost:11434"}
}

func (o *OllamaProvider) Name() string { return "ollama" }

// SupportsModel accepts any model name; Ollama's catch-all role means
// the real availability check happens at completion time.
func (o *OllamaProvider) SupportsModel(modelName string) bool { return true }

// Configure accepts an optional base URL override via cfg.BaseURL;
// Ollama needs no API key since it is a local service.
func (o *OllamaProvider) Configure(cfg config.ProviderConfig) error {
	if cfg.BaseURL != "" {
		o.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return nil
}

func (o *OllamaProvider) SetVerbose(verbose bool) { o.verbose = verbose }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete streams a non-streaming generate request to Ollama,
// accumulating the full response, and retries rate-limit errors.
func (o *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body := ollamaGenerateRequest{Model: req.Model, System: req.System, Prompt: req.Prompt, Stream: false}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	result, err := retry.WithRetry(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(jsonData))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		client := &http.Client{Timeout: 120 * time.Second}
		resp, err := client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("error calling ollama API: %w (is ollama running?)", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, fmt.Errorf("API request failed with status 429: %s", string(bodyBytes))
			}
			return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(bodyBytes))
		}

		var full strings.Builder
		decoder := json.NewDecoder(resp.Body)
		for {
			var chunk ollamaGenerateResponse
			if err := decoder.Decode(&chunk); err != nil {
				if err == io.EOF {
					break
				}
				return nil, fmt.Errorf("error decoding response: %w", err)
			}
			full.WriteString(chunk.Response)
			if chunk.Done {
				break
			}
		}
		return full.String(), nil
	}, retry.Is429Error, retry.DefaultRetryConfig)

	if err != nil {
		return "", err
	}
	return result.(string), nil
}
