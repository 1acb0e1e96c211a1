package ai

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandTransport shells out to an external AI CLI (e.g. a local
// `llm` wrapper), using the same `sh -c` subprocess pattern as the
// Shell tool. Command receives the assembled prompt on stdin and is
// expected to print a JSON object on stdout.
//
// Mode selects how many subprocess calls are made:
//   - "batched" (default): one call with the full assembled prompt —
//     on stdin, or substituted inline where the command contains a
//     {prompt} token — and one JSON object response covering every key.
//   - "per-block": one call per collected key, each expected to
//     return a single raw text answer (not JSON) on stdout.
type CommandTransport struct {
	Command string
	Mode    string
}

func (t *CommandTransport) Name() string { return "command" }

func (t *CommandTransport) Resolve(ctx context.Context, prompt AssembledPrompt) (Result, error) {
	if t.Command == "" {
		return Result{}, fmt.Errorf("command transport: no command configured")
	}
	if t.Mode == "per-block" {
		return t.resolvePerBlock(ctx, prompt)
	}
	return t.resolveBatched(ctx, prompt)
}

func (t *CommandTransport) resolveBatched(ctx context.Context, prompt AssembledPrompt) (Result, error) {
	out, err := t.run(ctx, prompt.Markdown)
	if err != nil {
		return Result{}, err
	}
	answers, err := parseAnswers(out)
	if err != nil {
		return Result{}, fmt.Errorf("command transport: %w", err)
	}
	if missing := ValidateAnswers(prompt, answers); len(missing) > 0 {
		return Result{}, fmt.Errorf("command transport: response missing keys %s", strings.Join(missing, ", "))
	}
	return Result{Status: StatusResolved, Answers: answers}, nil
}

func (t *CommandTransport) resolvePerBlock(ctx context.Context, prompt AssembledPrompt) (Result, error) {
	answers := make(map[string]string, len(prompt.Keys))
	for _, key := range prompt.Keys {
		section := extractSection(prompt.Markdown, key)
		out, err := t.run(ctx, section)
		if err != nil {
			return Result{}, fmt.Errorf("command transport (%s): %w", key, err)
		}
		answers[key] = strings.TrimSpace(out)
	}
	return Result{Status: StatusResolved, Answers: answers}, nil
}

// extractSection pulls the "### `key`" subsection out of the assembled
// Markdown so per-block mode sends only the relevant prompt text.
func extractSection(markdown, key string) string {
	marker := fmt.Sprintf("### `%s`", key)
	start := strings.Index(markdown, marker)
	if start < 0 {
		return markdown
	}
	rest := markdown[start+len(marker):]
	if end := strings.Index(rest, "\n### "); end >= 0 {
		rest = rest[:end]
	} else if end := strings.Index(rest, "\n## "); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func (t *CommandTransport) run(ctx context.Context, prompt string) (string, error) {
	command := t.Command
	stdin := prompt
	// A command containing the literal token {prompt} receives the
	// prompt inline instead of on stdin.
	if strings.Contains(command, "{prompt}") {
		command = strings.ReplaceAll(command, "{prompt}", shellQuote(prompt))
		stdin = ""
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = stripAIEnv(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running %q: %w: %s", t.Command, err, stderr.String())
	}
	return stdout.String(), nil
}

// shellQuote single-quotes s for safe interpolation into an sh -c
// command line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// stripAIEnv removes ambient agent-session variables from subprocess
// environments, so a command transport invoked from inside an AI
// coding session doesn't mistake itself for the outer session.
func stripAIEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "CLAUDECODE=") || strings.HasPrefix(kv, "CLAUDE_CODE_") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
