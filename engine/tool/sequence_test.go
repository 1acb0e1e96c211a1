package tool

import (
	"testing"

	"github.com/forgen-run/forgen/engine"
)

func TestSequenceRunsChildrenInOrderAndPropagatesExports(t *testing.T) {
	root := t.TempDir()
	step := decodeStep(t, `
name: pipeline
tool: sequence
steps:
  - name: make-dirs
    tool: ensure_dirs
    paths: [one, two]
    exports:
      dirCount: "len(result.created)"
  - name: depends-on-export
    tool: ensure_dirs
    paths: [three]
`)
	ctx := newRunnerCtx(root)
	tool := &SequenceTool{}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != engine.StatusCompleted {
		t.Fatalf("Status = %v", result.Status)
	}
	if ctx.Variables["dirCount"] == nil {
		t.Error("expected first child's export to be visible on the shared context")
	}
	leaves := result.Metadata["leafCounts"].(engine.ExecutionMetadata)
	if leaves.CompletedSteps != 2 {
		t.Errorf("CompletedSteps = %d, want 2", leaves.CompletedSteps)
	}
}

func TestSequenceStopsAtFirstFatalFailure(t *testing.T) {
	root := t.TempDir()
	step := decodeStep(t, `
name: pipeline
tool: sequence
steps:
  - name: will-fail
    tool: query
    file: missing.json
  - name: never-runs
    tool: ensure_dirs
    paths: [unreached]
`)
	ctx := newRunnerCtx(root)
	tool := &SequenceTool{}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != engine.StatusFailed {
		t.Errorf("Status = %v, want failed", result.Status)
	}
	leaves := result.Metadata["leafCounts"].(engine.ExecutionMetadata)
	if leaves.TotalSteps != 1 {
		t.Errorf("expected sequence to stop after the first failure, leaves = %+v", leaves)
	}
}

func TestSequenceValidateRequiresAtLeastOneChild(t *testing.T) {
	step := decodeStep(t, `
name: pipeline
tool: sequence
`)
	tool := &SequenceTool{}
	v, err := tool.Validate(step, &engine.StepContext{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid with no child steps")
	}
}
