package tool

import (
	"testing"

	"github.com/forgen-run/forgen/engine"
)

func TestPromptSkipPromptsUsesDefault(t *testing.T) {
	step := decodeStep(t, `
name: ask-name
tool: prompt
message: "Project name?"
variable: projectName
default: widget
`)
	ctx := &engine.StepContext{Variables: map[string]interface{}{}, SkipPrompts: true}

	tool := &PromptTool{}
	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if ctx.Variables["projectName"] != "widget" {
		t.Errorf("Variables[projectName] = %v, want widget", ctx.Variables["projectName"])
	}
	tr := result.ToolResult.(map[string]interface{})
	if tr["value"] != "widget" {
		t.Errorf("ToolResult[value] = %v", tr["value"])
	}
}

func TestPromptSkipPromptsHonorsAlreadySetVariable(t *testing.T) {
	step := decodeStep(t, `
name: ask-name
tool: prompt
message: "Project name?"
variable: projectName
default: widget
`)
	ctx := &engine.StepContext{
		Variables:   map[string]interface{}{"projectName": "from-cli"},
		SkipPrompts: true,
	}

	tool := &PromptTool{}
	if _, err := tool.Execute(step, ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if ctx.Variables["projectName"] != "from-cli" {
		t.Errorf("Variables[projectName] = %v, want from-cli (an already-bound value should win)", ctx.Variables["projectName"])
	}
}

func TestPromptValidateRequiresVariable(t *testing.T) {
	step := decodeStep(t, `
name: ask-name
tool: prompt
message: "Project name?"
`)
	tool := &PromptTool{}
	v, err := tool.Validate(step, &engine.StepContext{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid: prompt requires a variable")
	}
}

func TestPromptValidateRequiresOptionsForSelect(t *testing.T) {
	step := decodeStep(t, `
name: ask-kind
tool: prompt
variable: kind
promptType: select
`)
	tool := &PromptTool{}
	v, err := tool.Validate(step, &engine.StepContext{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid: select prompt requires options")
	}
}
