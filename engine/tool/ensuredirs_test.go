package tool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forgen-run/forgen/engine"
	"gopkg.in/yaml.v3"
)

func decodeStep(t *testing.T, src string) *engine.Step {
	t.Helper()
	var s engine.Step
	if err := yaml.Unmarshal([]byte(src), &s); err != nil {
		t.Fatalf("decoding step: %v", err)
	}
	return &s
}

func TestEnsureDirsCreatesMissingAndReportsExisting(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "already"), 0o755); err != nil {
		t.Fatal(err)
	}

	step := decodeStep(t, `
name: scaffold-dirs
tool: ensure_dirs
paths: [already, fresh/nested]
`)
	ctx := &engine.StepContext{ProjectRoot: root}

	tool := &EnsureDirsTool{}
	if v, err := tool.Validate(step, ctx); err != nil || !v.IsValid {
		t.Fatalf("Validate() = %+v, %v", v, err)
	}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "fresh", "nested")); err != nil {
		t.Errorf("expected nested dir to be created: %v", err)
	}

	tr := result.ToolResult.(map[string]interface{})
	created := tr["created"].([]string)
	existed := tr["alreadyExisted"].([]string)
	if len(created) != 1 || len(existed) != 1 {
		t.Errorf("created=%v alreadyExisted=%v", created, existed)
	}
}

func TestEnsureDirsDryRunDoesNotWrite(t *testing.T) {
	root := t.TempDir()
	step := decodeStep(t, `
name: scaffold-dirs
tool: ensure_dirs
paths: [untouched]
`)
	ctx := &engine.StepContext{ProjectRoot: root, DryRun: true}

	tool := &EnsureDirsTool{}
	if _, err := tool.Execute(step, ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "untouched")); err == nil {
		t.Error("dry run should not create the directory")
	}
}

func TestEnsureDirsValidateRejectsEmptyPaths(t *testing.T) {
	step := decodeStep(t, `
name: scaffold-dirs
tool: ensure_dirs
`)
	tool := &EnsureDirsTool{}
	v, err := tool.Validate(step, &engine.StepContext{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid for ensure_dirs with no paths")
	}
}
