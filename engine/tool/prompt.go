package tool

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/exprenv"
)

func init() {
	engine.RegisterFactory(engine.ToolPrompt, func() engine.Tool { return &PromptTool{} })
}

// PromptParams is the Prompt step's tool-specific payload.
type PromptParams struct {
	Message    string      `yaml:"message"`
	Variable   string      `yaml:"variable"`
	PromptType string      `yaml:"promptType"` // text|confirm|select|number
	Default    interface{} `yaml:"default"`
	Options    []string    `yaml:"options"`
	Validate   string      `yaml:"validate"`
}

// PromptTool asks an interactive question and binds the answer into
// ctx.Variables[Variable]. When the run opted out of prompts
// (ctx.SkipPrompts, set from Options.SkipPrompts) or stdin isn't a
// terminal, it never blocks: an already-set variable wins, otherwise
// Default is used.
type PromptTool struct{ Base }

func (t *PromptTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p PromptParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if p.Variable == "" {
		return invalid("prompt requires a variable name"), nil
	}
	if p.PromptType == "select" && len(p.Options) == 0 {
		return invalid("prompt of type select requires options"), nil
	}
	return validOK(), nil
}

func (t *PromptTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p PromptParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding prompt params", err)
	}

	// If the variable was already supplied (CLI --var, or a parent
	// recipe's inherited variables), skip-prompts mode honors it and
	// never blocks on stdin.
	if existing, ok := ctx.Variables[p.Variable]; ok && (ctx.SkipPrompts || !isInteractive()) {
		return promptResult(p.Variable, existing), nil
	}

	if ctx.SkipPrompts || !isInteractive() {
		value := p.Default
		if value == nil {
			value = ""
		}
		ctx.Variables[p.Variable] = value
		return promptResult(p.Variable, value), nil
	}

	answer, err := readAnswer(p)
	if err != nil {
		return nil, engine.ToolError("Prompt", "reading interactive answer", err)
	}
	if p.Validate != "" {
		env := map[string]interface{}{p.Variable: answer, "value": answer}
		if !exprenv.EvalBool(p.Validate, ctx.ProjectRoot, env) {
			return nil, engine.ToolError("Prompt", "answer failed validation: "+p.Validate, nil)
		}
	}
	ctx.Variables[p.Variable] = answer
	return promptResult(p.Variable, answer), nil
}

func promptResult(variable string, value interface{}) *engine.StepResult {
	return &engine.StepResult{
		Status:     engine.StatusCompleted,
		ToolResult: map[string]interface{}{"variable": variable, "value": value},
	}
}

// isInteractive reports whether stdin looks like a real terminal
// rather than a pipe or redirected file, checked before blocking on
// input.
func isInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func readAnswer(p PromptParams) (interface{}, error) {
	if p.Message != "" {
		fmt.Print(p.Message)
		if p.PromptType == "select" {
			fmt.Print(" [" + strings.Join(p.Options, "/") + "]")
		}
		fmt.Print(": ")
	}
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" && p.Default != nil {
		return p.Default, nil
	}

	switch p.PromptType {
	case "confirm":
		return line == "y" || line == "yes" || line == "true", nil
	case "number":
		n, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", line)
		}
		return n, nil
	case "select":
		for _, opt := range p.Options {
			if opt == line {
				return line, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %v", line, p.Options)
	default:
		return line, nil
	}
}
