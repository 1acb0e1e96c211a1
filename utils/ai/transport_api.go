package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgen-run/forgen/utils/models"
)

// ApiTransport resolves an assembled prompt with a single call to a
// configured LLM provider, reusing the same Provider abstraction the
// AI tool uses for its provider calls.
type ApiTransport struct {
	Provider    models.Provider
	Model       string
	Temperature float64
	MaxTokens   int
}

func (t *ApiTransport) Name() string { return "api" }

func (t *ApiTransport) Resolve(ctx context.Context, prompt AssembledPrompt) (Result, error) {
	if t.Provider == nil {
		return Result{}, fmt.Errorf("api transport: no provider configured")
	}

	req := models.CompletionRequest{
		Model:       t.Model,
		System:      "You are answering a code generation recipe's AI prompts. Respond with only the requested JSON object, no commentary.",
		Prompt:      prompt.Markdown,
		Temperature: t.Temperature,
		MaxTokens:   t.MaxTokens,
	}

	raw, err := t.Provider.Complete(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("api transport (%s): %w", t.Provider.Name(), err)
	}

	answers, err := parseAnswers(raw)
	if err != nil {
		return Result{}, fmt.Errorf("api transport (%s): %w", t.Provider.Name(), err)
	}
	if missing := ValidateAnswers(prompt, answers); len(missing) > 0 {
		return Result{}, fmt.Errorf("api transport (%s): response missing keys %s", t.Provider.Name(), strings.Join(missing, ", "))
	}
	return Result{Status: StatusResolved, Answers: answers}, nil
}
