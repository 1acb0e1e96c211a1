package ai

import (
	"fmt"
	"sort"
	"strings"
)

// AssembledPrompt is the deterministic artifact the Prompt Assembler
// produces from a Collector's Pass-1 state. Keys is kept alongside
// Markdown so transports can validate a returned answer map without
// re-parsing the prompt.
type AssembledPrompt struct {
	Markdown string
	Keys     []string
}

// Assemble renders collector's entries into the Markdown request
// format: a global context section, one `### \`key\`` subsection per
// block, and a Response Format section telling the operator (or an
// api transport) the exact JSON shape expected back.
func Assemble(collector *Collector) AssembledPrompt {
	entries := collector.Entries()
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}

	var b strings.Builder
	b.WriteString("# Hypergen AI Generation Request\n\n")

	if ctxs := collector.GlobalContexts(); len(ctxs) > 0 {
		b.WriteString("## Context\n\n")
		for _, c := range ctxs {
			if c == "" {
				continue
			}
			b.WriteString(c)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("## Prompts\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "### `%s`\n\n", e.Key)
		for _, c := range e.Contexts {
			if c == "" {
				continue
			}
			b.WriteString(c)
			b.WriteString("\n\n")
		}
		if e.Prompt != "" {
			b.WriteString(e.Prompt)
			b.WriteString("\n\n")
		}
		if e.OutputDescription != "" {
			b.WriteString("Expected output: ")
			b.WriteString(e.OutputDescription)
			if e.TypeHint != "" {
				fmt.Fprintf(&b, " (type: %s)", e.TypeHint)
			}
			b.WriteString("\n\n")
		}
		for i, ex := range e.Examples {
			fmt.Fprintf(&b, "Example %d:\n\n```\n%s\n```\n\n", i+1, ex)
		}
	}

	b.WriteString("## Response Format\n\n")
	b.WriteString("Respond with a single JSON object with exactly these keys:\n\n")
	b.WriteString("```json\n")
	b.WriteString(schemaSketch(keys))
	b.WriteString("\n```\n\n")
	b.WriteString("Save the JSON to a file and re-run this recipe with `--answers <path>`.\n")

	return AssembledPrompt{Markdown: b.String(), Keys: keys}
}

// schemaSketch renders a fenced JSON skeleton rather than a formal
// JSON Schema document — a worked example communicates shape at
// least as clearly as a $schema document, for a human or an LLM
// reading the prompt.
func schemaSketch(keys []string) string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString("{\n")
	for i, k := range sorted {
		comma := ","
		if i == len(sorted)-1 {
			comma = ""
		}
		fmt.Fprintf(&b, "  %q: \"...\"%s\n", k, comma)
	}
	b.WriteString("}")
	return b.String()
}

// ValidateAnswers checks that answers covers every key the prompt
// declared, returning the missing keys; the caller raises an
// AiTransportError when this is non-empty.
func ValidateAnswers(prompt AssembledPrompt, answers map[string]string) []string {
	var missing []string
	for _, k := range prompt.Keys {
		if _, ok := answers[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}
