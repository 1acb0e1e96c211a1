package tool

import (
	"testing"

	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/tmpl"
)

func newRunnerCtx(root string) *engine.StepContext {
	return &engine.StepContext{
		ProjectRoot:  root,
		Variables:    map[string]interface{}{},
		Results:      map[string]*engine.StepResult{},
		RenderEngine: tmpl.New(),
	}
}

func TestParallelRunsChildrenAndTalliesLeaves(t *testing.T) {
	root := t.TempDir()
	step := decodeStep(t, `
name: fan-out
tool: parallel
steps:
  - name: a
    tool: ensure_dirs
    paths: [a]
  - name: b
    tool: ensure_dirs
    paths: [b]
  - name: c
    tool: ensure_dirs
    paths: [c]
`)
	ctx := newRunnerCtx(root)
	tool := &ParallelTool{}

	if v, err := tool.Validate(step, ctx); err != nil || !v.IsValid {
		t.Fatalf("Validate() = %+v, %v", v, err)
	}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != engine.StatusCompleted {
		t.Errorf("Status = %v", result.Status)
	}
	leaves := result.Metadata["leafCounts"].(engine.ExecutionMetadata)
	if leaves.CompletedSteps != 3 {
		t.Errorf("CompletedSteps = %d, want 3", leaves.CompletedSteps)
	}
}

func TestParallelContinueOnErrorKeepsOverallStatusCompleted(t *testing.T) {
	root := t.TempDir()
	step := decodeStep(t, `
name: fan-out
tool: parallel
steps:
  - name: good-one
    tool: ensure_dirs
    paths: [good]
  - name: bad-one
    tool: query
    file: does-not-exist.json
    continueOnError: true
`)
	ctx := newRunnerCtx(root)
	tool := &ParallelTool{}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != engine.StatusCompleted {
		t.Errorf("Status = %v, want completed since the failing child had continueOnError", result.Status)
	}
	leaves := result.Metadata["leafCounts"].(engine.ExecutionMetadata)
	if leaves.CompletedSteps != 1 || leaves.FailedSteps != 1 {
		t.Errorf("leaves = %+v", leaves)
	}
}

func TestParallelValidateRequiresAtLeastOneChild(t *testing.T) {
	step := decodeStep(t, `
name: fan-out
tool: parallel
`)
	tool := &ParallelTool{}
	v, err := tool.Validate(step, &engine.StepContext{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid with no child steps")
	}
}
