package filescan

import (
	"fmt"
	"sort"
	"strings"
)

// Manifest renders a summary of a directory's prompt-token cost,
// suitable for dropping straight into an AI step's assembled prompt in
// place of the directory's literal contents (see
// engine/tool/ai.go:resolveContexts).
func (r *ScanResult) Manifest() string {
	var sb strings.Builder

	sb.WriteString("Context manifest (token budget)\n\n")
	sb.WriteString(fmt.Sprintf("%d files, ~%dk tokens estimated\n\n", r.TotalFiles, r.TotalTokens/1000))

	oversized := r.FilterByCategory("oversized")
	large := r.FilterByCategory("large")

	sort.Slice(oversized, func(i, j int) bool {
		return oversized[i].EstimatedTokens > oversized[j].EstimatedTokens
	})
	sort.Slice(large, func(i, j int) bool {
		return large[i].EstimatedTokens > large[j].EstimatedTokens
	})

	if len(oversized) > 0 {
		sb.WriteString(fmt.Sprintf("Oversized (>%dk tokens) — summarized, not inlined:\n", TokenBudgetLarge/1000))
		for _, f := range oversized {
			sb.WriteString(fmt.Sprintf("- %s (~%dk tokens, %d bytes)\n", f.RelPath, f.EstimatedTokens/1000, f.Size))
		}
		sb.WriteString("\n")
	}

	if len(large) > 0 {
		sb.WriteString(fmt.Sprintf("Large (%dk-%dk tokens) — inlined but costly:\n", TokenBudgetSafe/1000, TokenBudgetLarge/1000))
		for _, f := range large {
			sb.WriteString(fmt.Sprintf("- %s (~%dk tokens)\n", f.RelPath, f.EstimatedTokens/1000))
		}
		sb.WriteString("\n")
	}

	if len(oversized) > 0 || len(large) > 0 {
		sb.WriteString(fmt.Sprintf("%d remaining files are under the safe token budget.\n\n", r.SafeCount))
	}

	return sb.String()
}

// MarkdownSection renders a short warning block for embedding
// alongside other prompt context, or an empty string if nothing in
// the scan exceeds the safe token budget.
func (r *ScanResult) MarkdownSection() string {
	oversized := r.FilterByCategory("oversized")
	large := r.FilterByCategory("large")

	if len(oversized) == 0 && len(large) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.WriteString("## Token budget\n\n")
	sb.WriteString("Some files in this context exceed the recommended prompt token budget.\n\n")

	if len(oversized) > 0 {
		sb.WriteString(fmt.Sprintf("### Oversized (>%dk tokens)\n\n", TokenBudgetLarge/1000))
		for _, f := range oversized {
			sb.WriteString(fmt.Sprintf("- `%s` (~%dk tokens)\n", f.RelPath, f.EstimatedTokens/1000))
		}
		sb.WriteString("\n")
	}

	if len(large) > 0 {
		sb.WriteString(fmt.Sprintf("### Large (%dk-%dk tokens)\n\n", TokenBudgetSafe/1000, TokenBudgetLarge/1000))
		for _, f := range large {
			sb.WriteString(fmt.Sprintf("- `%s` (~%dk tokens)\n", f.RelPath, f.EstimatedTokens/1000))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Narrow the `context:` entry to a subdirectory, or add a `Query` step to extract just the needed fields, instead of inlining these files whole.\n\n")

	return sb.String()
}
