package ai

import (
	"strings"
	"testing"

	"github.com/forgen-run/forgen/utils/tmpl"
)

const sampleTemplate = `@context() project uses Go 1.24 @end
Before.
@ai('summary') @context() this is a library @end @prompt() Summarize the package in one sentence. @end @output({typeHint: 'text'}) A one-sentence summary. @example() A tiny HTTP router. @end @end @end
After.
`

func TestAITagsCollectPass(t *testing.T) {
	collector := NewCollector()
	eng := tmpl.New()
	RegisterTags(eng, collector)

	state := &tmpl.State{ProjectRoot: ".", CollectMode: true}
	out, err := eng.Render(sampleTemplate, "pkg.go.jig", state)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(out, "Summarize") {
		t.Errorf("Pass 1 output leaked prompt text: %q", out)
	}
	if !strings.Contains(out, "Before.") || !strings.Contains(out, "After.") {
		t.Errorf("Pass 1 output should preserve surrounding text, got %q", out)
	}

	entry, ok := collector.Entry("summary")
	if !ok {
		t.Fatal("expected a collected entry for key 'summary'")
	}
	if entry.Prompt != "Summarize the package in one sentence." {
		t.Errorf("Prompt = %q", entry.Prompt)
	}
	if entry.TypeHint != "text" {
		t.Errorf("TypeHint = %q, want %q", entry.TypeHint, "text")
	}
	if len(entry.Examples) != 1 || entry.Examples[0] != "A tiny HTTP router." {
		t.Errorf("Examples = %v", entry.Examples)
	}
	if len(entry.Contexts) != 1 || entry.Contexts[0] != "this is a library" {
		t.Errorf("Contexts = %v", entry.Contexts)
	}

	ctxs := collector.GlobalContexts()
	if len(ctxs) != 1 || ctxs[0] != "project uses Go 1.24" {
		t.Errorf("GlobalContexts = %v", ctxs)
	}
}

func TestAITagsResolvePassSkipsChildren(t *testing.T) {
	collector := NewCollector()
	eng := tmpl.New()
	RegisterTags(eng, collector)

	state := &tmpl.State{
		ProjectRoot: ".",
		CollectMode: false,
		Answers:     map[string]string{"summary": "A router for Go HTTP services."},
	}
	out, err := eng.Render(sampleTemplate, "pkg.go.jig", state)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "A router for Go HTTP services.") {
		t.Errorf("Pass 2 output missing answer, got %q", out)
	}
	if strings.Contains(out, "Summarize") {
		t.Errorf("Pass 2 must not render @ai children, got %q", out)
	}
}

func TestAITagsResolvePassBindsKeyForLaterReferences(t *testing.T) {
	collector := NewCollector()
	eng := tmpl.New()
	RegisterTags(eng, collector)

	src := "@ai('summary') @prompt() Summarize. @end @output() One sentence. @example() placeholder @end @end @end\nAgain: {{ summary }}"
	state := &tmpl.State{
		ProjectRoot: ".",
		CollectMode: false,
		Answers:     map[string]string{"summary": "resolved text"},
	}
	out, err := eng.Render(src, "pkg.go.jig", state)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "Again: resolved text") {
		t.Errorf("a {{ key }} reference after the block must see the answer, got %q", out)
	}
	if strings.Contains(out, "placeholder") {
		t.Errorf("Pass 2 must not leak the Pass-1 example placeholder, got %q", out)
	}
}

func TestAITagMissingKeyErrors(t *testing.T) {
	collector := NewCollector()
	eng := tmpl.New()
	RegisterTags(eng, collector)

	state := &tmpl.State{ProjectRoot: ".", CollectMode: true}
	_, err := eng.Render("@ai({}) @prompt() hi @end @end", "t.jig", state)
	if err == nil {
		t.Error("expected an error for an @ai block without a key")
	}
}
