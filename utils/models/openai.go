package models

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/forgen-run/forgen/utils/config"
	"github.com/forgen-run/forgen/utils/retry"
)

// OpenAIProvider wraps the go-openai SDK, the same client already
// used by two other repos in the retrieval pack (Jint8888-Pocket-Omega,
// ilkoid-poncho-ai) for chat completions.
type OpenAIProvider struct {
	client  *openai.Client
	verbose bool
}

// NewOpenAIProvider creates a new OpenAI provider instance.
func NewOpenAIProvider() *OpenAIProvider { return &OpenAIProvider{} }

func (p *OpenAIProvider) Name() string { return "openai" }

// SupportsModel checks if the given model name belongs to OpenAI.
func (p *OpenAIProvider) SupportsModel(modelName string) bool {
	lower := strings.ToLower(modelName)
	return strings.HasPrefix(lower, "gpt-") || strings.HasPrefix(lower, "o1") ||
		strings.HasPrefix(lower, "o3") || strings.HasPrefix(lower, "chatgpt-")
}

// Configure sets up the provider with necessary credentials.
func (p *OpenAIProvider) Configure(cfg config.ProviderConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required for OpenAI provider")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	p.client = openai.NewClientWithConfig(clientCfg)
	return nil
}

func (p *OpenAIProvider) SetVerbose(verbose bool) { p.verbose = verbose }

// Complete sends a chat completion request and returns the first
// choice's message content, retrying transient failures.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if p.client == nil {
		return "", errNotConfigured("openai")
	}

	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	result, err := retry.WithRetry(func() (interface{}, error) {
		resp, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return nil, fmt.Errorf("openai completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	}, retry.IsTransient, retry.DefaultRetryConfig)

	if err != nil {
		return "", err
	}
	return result.(string), nil
}
