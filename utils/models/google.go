package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/forgen-run/forgen/utils/config"
	"github.com/forgen-run/forgen/utils/retry"
)

// GoogleProvider handles the Google AI (Gemini) family of models
// through the official genai SDK.
type GoogleProvider struct {
	apiKey  string
	verbose bool
}

// NewGoogleProvider creates a new Google provider instance.
func NewGoogleProvider() *GoogleProvider { return &GoogleProvider{} }

func (g *GoogleProvider) Name() string { return "google" }

// SupportsModel checks if the given model name belongs to Google.
func (g *GoogleProvider) SupportsModel(modelName string) bool {
	return strings.HasPrefix(strings.ToLower(modelName), "gemini-")
}

// Configure sets up the provider with necessary credentials.
func (g *GoogleProvider) Configure(cfg config.ProviderConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required for Google provider")
	}
	g.apiKey = cfg.APIKey
	return nil
}

func (g *GoogleProvider) SetVerbose(verbose bool) { g.verbose = verbose }

func (g *GoogleProvider) debugf(format string, args ...interface{}) {
	if g.verbose {
		config.DebugLog("[google] "+format, args...)
	}
}

// Complete sends req to the Gemini API and returns the first
// candidate's text, retrying rate-limit errors.
func (g *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if g.apiKey == "" {
		return "", errNotConfigured("google")
	}

	result, err := retry.WithRetry(func() (interface{}, error) {
		client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
		if err != nil {
			return "", fmt.Errorf("failed to create Google AI client: %w", err)
		}
		defer client.Close()

		model := client.GenerativeModel(req.Model)
		if req.Temperature > 0 {
			model.SetTemperature(float32(req.Temperature))
		}
		if req.MaxTokens > 0 {
			model.SetMaxOutputTokens(int32(req.MaxTokens))
		}
		if req.System != "" {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
		}

		resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
		if err != nil {
			return "", fmt.Errorf("Google AI API error: %w", err)
		}
		if len(resp.Candidates) == 0 {
			return "", fmt.Errorf("no response candidates returned from Google AI")
		}

		var response string
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				response += string(text)
			}
		}
		return response, nil
	}, retry.Is429Error, retry.DefaultRetryConfig)

	if err != nil {
		return "", err
	}
	g.debugf("completion succeeded, %d bytes", len(result.(string)))
	return result.(string), nil
}
