package ai

import (
	"fmt"
	"strings"

	"github.com/forgen-run/forgen/utils/tmpl"
)

// RegisterTags wires the `@ai` and `@context` tag extensions into eng,
// both backed by collector. Registering them this way keeps tmpl free
// of any AI-specific knowledge.
func RegisterTags(eng *tmpl.Engine, collector *Collector) {
	eng.RegisterTag("ai", &aiTag{collector: collector})
	eng.RegisterTag("context", &contextTag{collector: collector})
}

type aiTag struct{ collector *Collector }

// Eval implements the two-pass protocol:
//   - Pass 1 (CollectMode): walk the block's `@context`/`@prompt`/
//     `@output` children without rendering the surrounding template,
//     record a BlockEntry, and emit nothing.
//   - Pass 2: emit state.Answers[key] and do not touch the children
//     at all — a Pass-1-only variable referenced inside them must
//     never cause Pass 2 to fail.
func (a *aiTag) Eval(tag tmpl.TagNode, state *tmpl.State, eng *tmpl.Engine) (string, error) {
	args, err := tmpl.ParseArgs(tag.RawArgs)
	if err != nil {
		return "", fmt.Errorf("@ai in %s: %w", tag.Source, err)
	}
	key := args.String
	if !args.IsBare {
		key, _ = args.Get("key")
	}
	if key == "" {
		return "", fmt.Errorf("@ai in %s: requires a key, e.g. @ai('summary') or @ai({key: 'summary'})", tag.Source)
	}

	if !state.CollectMode {
		answer := state.Answers[key]
		// Later {{ key }} references outside the block must see the
		// resolved answer, not the Pass-1 placeholder.
		state.Set(key, answer)
		return answer, nil
	}

	entry := BlockEntry{Key: key, SourceFile: tag.Source}
	for _, child := range tag.Children {
		tn, ok := child.(tmpl.TagNode)
		if !ok {
			continue
		}
		switch tn.Name {
		case "context":
			text, err := eng.RenderNodes(tn.Children, state)
			if err != nil {
				return "", fmt.Errorf("@ai(%q) context: %w", key, err)
			}
			entry.Contexts = append(entry.Contexts, strings.TrimSpace(text))
		case "prompt":
			text, err := eng.RenderNodes(tn.Children, state)
			if err != nil {
				return "", fmt.Errorf("@ai(%q) prompt: %w", key, err)
			}
			entry.Prompt = strings.TrimSpace(text)
		case "output":
			if err := evalOutput(&entry, tn, state, eng); err != nil {
				return "", fmt.Errorf("@ai(%q) output: %w", key, err)
			}
		}
	}

	a.collector.AddEntry(entry)

	placeholder := ""
	if len(entry.Examples) > 0 {
		placeholder = entry.Examples[0]
	} else {
		placeholder = strings.TrimSpace(entry.OutputDescription)
	}
	state.Set(key, placeholder)
	return "", nil
}

// evalOutput splits an `@output` block's children into free-form
// description text and nested `@example(...)` blocks, since the two
// are interleaved in source but collected separately.
func evalOutput(entry *BlockEntry, tag tmpl.TagNode, state *tmpl.State, eng *tmpl.Engine) error {
	outArgs, err := tmpl.ParseArgs(tag.RawArgs)
	if err == nil {
		if hint, ok := outArgs.Get("typeHint"); ok {
			entry.TypeHint = hint
		} else if outArgs.IsBare {
			entry.TypeHint = outArgs.String
		}
	}

	var descNodes []tmpl.Node
	for _, child := range tag.Children {
		if tn, ok := child.(tmpl.TagNode); ok && tn.Name == "example" {
			text, err := eng.RenderNodes(tn.Children, state)
			if err != nil {
				return err
			}
			entry.Examples = append(entry.Examples, strings.TrimSpace(text))
			continue
		}
		descNodes = append(descNodes, child)
	}

	desc, err := eng.RenderNodes(descNodes, state)
	if err != nil {
		return err
	}
	entry.OutputDescription = strings.TrimSpace(desc)
	return nil
}

type contextTag struct{ collector *Collector }

// Eval renders a free-standing @context block's text into the global
// context list during Pass 1. It always emits no output — the block
// is a side-effect, not template text.
func (c *contextTag) Eval(tag tmpl.TagNode, state *tmpl.State, eng *tmpl.Engine) (string, error) {
	if !state.CollectMode {
		return "", nil
	}
	text, err := eng.RenderNodes(tag.Children, state)
	if err != nil {
		return "", fmt.Errorf("@context in %s: %w", tag.Source, err)
	}
	c.collector.AddGlobalContext(strings.TrimSpace(text))
	return "", nil
}
