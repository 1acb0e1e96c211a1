package ai

import (
	"strings"
	"testing"
)

func TestAssembleIncludesPromptsAndContexts(t *testing.T) {
	c := NewCollector()
	c.AddGlobalContext("Monorepo using Go workspaces.")
	c.AddEntry(BlockEntry{
		Key:               "summary",
		Contexts:          []string{"Package lives under cmd/api."},
		Prompt:            "Summarize the handler in one sentence.",
		OutputDescription: "A single sentence.",
		TypeHint:          "text",
		Examples:          []string{"Serves the health check endpoint."},
	})

	prompt := Assemble(c)

	for _, want := range []string{
		"# Hypergen AI Generation Request",
		"Monorepo using Go workspaces.",
		"### `summary`",
		"Package lives under cmd/api.",
		"Summarize the handler in one sentence.",
		"Expected output: A single sentence. (type: text)",
		"Serves the health check endpoint.",
		"## Response Format",
		"--answers",
	} {
		if !strings.Contains(prompt.Markdown, want) {
			t.Errorf("assembled prompt missing %q\n---\n%s", want, prompt.Markdown)
		}
	}
	if len(prompt.Keys) != 1 || prompt.Keys[0] != "summary" {
		t.Errorf("Keys = %v, want [summary]", prompt.Keys)
	}
}

func TestValidateAnswersReportsMissing(t *testing.T) {
	prompt := AssembledPrompt{Keys: []string{"a", "b"}}
	missing := ValidateAnswers(prompt, map[string]string{"a": "x"})
	if len(missing) != 1 || missing[0] != "b" {
		t.Errorf("missing = %v, want [b]", missing)
	}
}

func TestExtractJSONObjectStripsFence(t *testing.T) {
	raw := "```json\n{\"a\": \"1\"}\n```"
	obj, err := extractJSONObject(raw)
	if err != nil {
		t.Fatalf("extractJSONObject() error = %v", err)
	}
	if obj != `{"a": "1"}` {
		t.Errorf("extractJSONObject() = %q", obj)
	}
}

func TestParseAnswersStringifiesNonStrings(t *testing.T) {
	answers, err := parseAnswers(`{"count": 3, "name": "svc"}`)
	if err != nil {
		t.Fatalf("parseAnswers() error = %v", err)
	}
	if answers["name"] != "svc" {
		t.Errorf("name = %q", answers["name"])
	}
	if answers["count"] != "3" {
		t.Errorf("count = %q, want %q", answers["count"], "3")
	}
}
