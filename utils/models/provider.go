// Package models implements the pluggable LLM SDK consulted by the
// "api" AI transport and the AI tool: a small Provider interface plus a
// detection registry, adapted from a multi-provider model registry
// down to the providers forgen actually wires (OpenAI, Anthropic,
// Google, Ollama).
package models

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/forgen-run/forgen/utils/config"
)

// CompletionRequest is the normalized request every Provider accepts.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Provider represents one LLM backend.
type Provider interface {
	Name() string
	SupportsModel(modelName string) bool
	Configure(cfg config.ProviderConfig) error
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	SetVerbose(verbose bool)
}

// DetectProviderFunc allows tests to stub provider detection.
type DetectProviderFunc func(modelName string) Provider

// DetectProvider determines the appropriate provider for a model name.
var DetectProvider DetectProviderFunc = defaultDetectProvider

func defaultDetectProvider(modelName string) Provider {
	config.DebugLog("[provider] detecting provider for model %s", modelName)

	providers := []Provider{
		NewAnthropicProvider(),
		NewOpenAIProvider(),
		NewGoogleProvider(),
	}
	for _, p := range providers {
		if p.SupportsModel(modelName) {
			return p
		}
	}
	// Anything unrecognized is assumed to be a locally pulled Ollama
	// model name; Ollama itself returns a clear error if it is missing.
	return NewOllamaProvider()
}

// ModelRegistry tracks which model names/prefixes belong to which
// provider; ValidateModel reports whether a name matches. No
// completion path consults it.
type ModelRegistry struct {
	mu       sync.RWMutex
	families map[string][]string
}

var globalRegistry = newRegistry()

func newRegistry() *ModelRegistry {
	r := &ModelRegistry{families: make(map[string][]string)}
	r.RegisterFamilies("anthropic", []string{"claude-"})
	r.RegisterFamilies("openai", []string{"gpt-", "o1", "o3", "chatgpt-"})
	r.RegisterFamilies("google", []string{"gemini-"})
	return r
}

// GetRegistry returns the process-wide model registry.
func GetRegistry() *ModelRegistry { return globalRegistry }

// RegisterFamilies records the model-name prefixes a provider owns.
func (r *ModelRegistry) RegisterFamilies(provider string, prefixes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[provider] = append(r.families[provider], prefixes...)
}

// ValidateModel reports whether modelName's prefix is known for provider.
func (r *ModelRegistry) ValidateModel(provider, modelName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lower := strings.ToLower(modelName)
	for _, prefix := range r.families[provider] {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// errNotConfigured builds the error Complete returns when no API key is set.
func errNotConfigured(provider string) error {
	return fmt.Errorf("%s provider not configured: missing API key", provider)
}
