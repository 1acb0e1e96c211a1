package tool

import (
	"testing"

	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/tmpl"
)

func TestShellRunsCommandAndCapturesOutput(t *testing.T) {
	root := t.TempDir()
	step := decodeStep(t, `
name: say-hello
tool: shell
command: "echo hello-{{ target }}"
`)
	ctx := &engine.StepContext{
		ProjectRoot:  root,
		Variables:    map[string]interface{}{"target": "world"},
		RenderEngine: tmpl.New(),
	}
	tool := &ShellTool{}

	if v, err := tool.Validate(step, ctx); err != nil || !v.IsValid {
		t.Fatalf("Validate() = %+v, %v", v, err)
	}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != engine.StatusCompleted {
		t.Fatalf("Status = %v", result.Status)
	}
	tr := result.ToolResult.(map[string]interface{})
	if tr["exitCode"] != 0 {
		t.Errorf("exitCode = %v", tr["exitCode"])
	}
	if result.Output != "hello-world\n" {
		t.Errorf("Output = %q", result.Output)
	}
}

func TestShellNonZeroExitIsStepFailure(t *testing.T) {
	root := t.TempDir()
	step := decodeStep(t, `
name: fail-on-purpose
tool: shell
command: "exit 3"
`)
	ctx := &engine.StepContext{ProjectRoot: root, RenderEngine: tmpl.New()}
	tool := &ShellTool{}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != engine.StatusFailed {
		t.Errorf("Status = %v, want failed", result.Status)
	}
	tr := result.ToolResult.(map[string]interface{})
	if tr["exitCode"] != 3 {
		t.Errorf("exitCode = %v", tr["exitCode"])
	}
}

func TestShellValidateRequiresCommand(t *testing.T) {
	step := decodeStep(t, `
name: noop
tool: shell
command: "   "
`)
	tool := &ShellTool{}
	v, err := tool.Validate(step, &engine.StepContext{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid for blank command")
	}
}
