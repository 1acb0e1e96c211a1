package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ResultStatus distinguishes a transport that produced answers
// synchronously from one that deferred to an external actor, such as
// the stdout transport.
type ResultStatus string

const (
	// StatusResolved means Result.Answers is ready to use.
	StatusResolved ResultStatus = "resolved"
	// StatusDeferred means the prompt was handed off (e.g. printed to
	// stdout) and the recipe run must stop until re-invoked with
	// `--answers`.
	StatusDeferred ResultStatus = "deferred"
)

// Result is what a Transport.Resolve call returns.
type Result struct {
	Status   ResultStatus
	Answers  map[string]string
	ExitCode int
}

// Transport is the pluggable AI transport. Each implementation takes
// an assembled prompt and either resolves it to answers directly
// (command, api) or defers resolution to an external process (stdout).
type Transport interface {
	Name() string
	Resolve(ctx context.Context, prompt AssembledPrompt) (Result, error)
}

// extractJSONObject pulls the outermost {...} object out of s,
// tolerating a surrounding ```json fenced block or other prose an LLM
// might wrap its answer in.
func extractJSONObject(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < 0 || end < start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}

// parseAnswers decodes a JSON object response into a flat string map,
// stringifying any non-string values so the caller doesn't have to
// care whether the model answered a field with a string or a number.
func parseAnswers(raw string) (map[string]string, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, fmt.Errorf("parsing AI response JSON: %w", err)
	}
	answers := make(map[string]string, len(parsed))
	for k, v := range parsed {
		if s, ok := v.(string); ok {
			answers[k] = s
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		answers[k] = string(b)
	}
	return answers, nil
}
