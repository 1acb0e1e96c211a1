package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/filescan"
	"github.com/forgen-run/forgen/utils/fileutil"
	"github.com/forgen-run/forgen/utils/models"
	"github.com/forgen-run/forgen/utils/tmpl"
)

func init() {
	engine.RegisterFactory(engine.ToolAI, func() engine.Tool { return &AITool{} })
}

// Guardrails is the AI step's optional safety-check payload.
type Guardrails struct {
	ValidateSyntax      bool     `yaml:"validateSyntax"`
	RequireKnownImports bool     `yaml:"requireKnownImports"`
	AllowedImports      []string `yaml:"allowedImports"`
	MaxTokens           int      `yaml:"maxTokens"`
}

// AIParams is the AI step's tool-specific payload. Unlike the
// template-embedded `@ai` tags (collected and resolved through the
// two-pass protocol), an AI step makes one direct call to a
// configured provider — useful for recipe-level decisions ("should
// this project use TypeScript?") rather than in-template fragments.
type AIParams struct {
	Prompt      string      `yaml:"prompt"`
	System      string      `yaml:"system"`
	Model       string      `yaml:"model"`
	Provider    string      `yaml:"provider"`
	Output      string      `yaml:"output"`
	Context     []string    `yaml:"context"`
	Examples    []string    `yaml:"examples"`
	Guardrails  *Guardrails `yaml:"guardrails"`
	Budget      int         `yaml:"budget"`
	Temperature float64     `yaml:"temperature"`
	MaxTokens   int         `yaml:"maxTokens"`
}

// AITool calls a single prompt against a configured LLM provider and
// binds the answer to ctx.Variables[Output].
type AITool struct{ Base }

func (t *AITool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p AIParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return invalid("ai step requires a prompt"), nil
	}
	if p.Output == "" {
		return invalid("ai step requires an output variable name"), nil
	}
	return validOK(), nil
}

func (t *AITool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p AIParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding ai params", err)
	}

	provider := resolveProvider(p.Provider, p.Model)
	if ctx.EnvConfig != nil {
		if err := provider.Configure(ctx.EnvConfig.Provider(provider.Name())); err != nil {
			return nil, engine.NewError(engine.KindAiTransport, "configuring "+provider.Name()+" provider", err)
		}
	}

	prompt, err := ctx.RenderEngine.Render(p.Prompt, step.Name+"#ai.prompt", &tmpl.State{
		ProjectRoot: ctx.ProjectRoot, Vars: ctx.Variables,
	})
	if err != nil {
		return nil, engine.ToolError("AI", "rendering ai prompt", err)
	}

	fullPrompt := assembleAIPrompt(prompt, resolveContexts(ctx.ProjectRoot, p.Context), p.Examples)

	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.Budget
	}
	if p.Guardrails != nil && p.Guardrails.MaxTokens > 0 && (maxTokens == 0 || p.Guardrails.MaxTokens < maxTokens) {
		maxTokens = p.Guardrails.MaxTokens
	}

	callCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	answer, err := provider.Complete(callCtx, models.CompletionRequest{
		Model:       p.Model,
		System:      p.System,
		Prompt:      fullPrompt,
		Temperature: p.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, engine.NewError(engine.KindAiTransport, "ai step call to "+provider.Name()+" failed", err)
	}

	if p.Guardrails != nil {
		if err := checkGuardrails(answer, ctx.ProjectRoot, *p.Guardrails); err != nil {
			return nil, engine.ToolError("AI", "guardrail check failed", err)
		}
	}

	ctx.Variables[p.Output] = answer
	return &engine.StepResult{
		Status: engine.StatusCompleted,
		Output: answer,
		ToolResult: map[string]interface{}{
			"provider": provider.Name(),
			"model":    p.Model,
			p.Output:   answer,
		},
	}, nil
}

func resolveProvider(name, model string) models.Provider {
	switch name {
	case "openai":
		return models.NewOpenAIProvider()
	case "anthropic":
		return models.NewAnthropicProvider()
	case "google":
		return models.NewGoogleProvider()
	case "ollama":
		return models.NewOllamaProvider()
	default:
		return models.DetectProvider(model)
	}
}

// resolveContexts turns each Context entry into a literal prompt
// fragment. An entry that names an existing directory under the
// project root is expanded into a token-budget file manifest instead
// of being inlined verbatim, so an AI step can point at "./src" rather
// than pasting file contents by hand. Everything else passes through
// unchanged.
func resolveContexts(projectRoot string, contexts []string) []string {
	out := make([]string, 0, len(contexts))
	for _, c := range contexts {
		dir := fileutil.ResolveUnder(projectRoot, c)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			out = append(out, c)
			continue
		}
		result, err := filescan.Scan(dir, filescan.DefaultOptions())
		if err != nil {
			out = append(out, c)
			continue
		}
		out = append(out, fmt.Sprintf("Directory %s:\n%s", c, result.Manifest()))
	}
	return out
}

func assembleAIPrompt(prompt string, contexts, examples []string) string {
	var b strings.Builder
	for _, c := range contexts {
		b.WriteString("Context: ")
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	b.WriteString(prompt)
	for i, ex := range examples {
		fmt.Fprintf(&b, "\n\nExample %d:\n%s", i+1, ex)
	}
	return b.String()
}

// checkGuardrails applies the AI step's optional safety checks: a
// lightweight balanced-delimiter syntax sanity check (no AST parser
// is available for an arbitrary target language, so this mirrors the
// CodeMod tool's text-based approach), and an import allowlist check
// against allowedImports or the project's package.json dependencies.
func checkGuardrails(output, projectRoot string, g Guardrails) error {
	if g.ValidateSyntax {
		if strings.Count(output, "{") != strings.Count(output, "}") ||
			strings.Count(output, "(") != strings.Count(output, ")") {
			return fmt.Errorf("output has unbalanced braces/parens")
		}
	}
	if g.RequireKnownImports || len(g.AllowedImports) > 0 {
		known := map[string]bool{}
		for _, imp := range g.AllowedImports {
			known[imp] = true
		}
		if g.RequireKnownImports {
			for _, dep := range knownPackageJSONDeps(projectRoot) {
				known[dep] = true
			}
		}
		for _, imp := range extractImports(output) {
			if !known[imp] {
				return fmt.Errorf("import %q is not in the allowed/known set", imp)
			}
		}
	}
	return nil
}

func extractImports(source string) []string {
	var out []string
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "import ") {
			continue
		}
		start := strings.IndexAny(line, `"'`)
		if start < 0 {
			continue
		}
		end := strings.IndexAny(line[start+1:], `"'`)
		if end < 0 {
			continue
		}
		out = append(out, line[start+1:start+1+end])
	}
	return out
}

func knownPackageJSONDeps(projectRoot string) []string {
	raw, err := os.ReadFile(filepath.Join(projectRoot, "package.json"))
	if err != nil {
		return nil
	}
	data, err := parseStructured(raw, "json")
	if err != nil {
		return nil
	}
	m, ok := data.(map[string]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, field := range []string{"dependencies", "devDependencies"} {
		deps, ok := m[field].(map[string]interface{})
		if !ok {
			continue
		}
		for name := range deps {
			out = append(out, name)
		}
	}
	return out
}
