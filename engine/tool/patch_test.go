package tool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgen-run/forgen/engine"
)

func TestPatchDeepMergesExistingJSON(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "package.json")
	if err := os.WriteFile(target, []byte(`{"name":"widget","scripts":{"build":"tsc"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	step := decodeStep(t, `
name: patch-package
tool: patch
file: package.json
merge:
  scripts:
    test: "jest"
`)
	ctx := &engine.StepContext{ProjectRoot: root}
	tool := &PatchTool{}

	if v, err := tool.Validate(step, ctx); err != nil || !v.IsValid {
		t.Fatalf("Validate() = %+v, %v", v, err)
	}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.FilesModified) != 1 {
		t.Fatalf("FilesModified = %v", result.FilesModified)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{`"build"`, `"tsc"`, `"test"`, `"jest"`, `"name"`, `"widget"`} {
		if !strings.Contains(content, want) {
			t.Errorf("expected merged output to contain %q, got %s", want, content)
		}
	}
}

func TestPatchCreatesFileWhenMissingByDefault(t *testing.T) {
	root := t.TempDir()
	step := decodeStep(t, `
name: patch-config
tool: patch
file: new-config.json
merge:
  enabled: true
`)
	ctx := &engine.StepContext{ProjectRoot: root}
	tool := &PatchTool{}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.FilesCreated) != 1 {
		t.Fatalf("FilesCreated = %v", result.FilesCreated)
	}
}

func TestPatchRejectsMissingFileWhenCreateIfMissingFalse(t *testing.T) {
	root := t.TempDir()
	step := decodeStep(t, `
name: patch-config
tool: patch
file: absent.json
createIfMissing: false
merge:
  enabled: true
`)
	ctx := &engine.StepContext{ProjectRoot: root}
	tool := &PatchTool{}

	if _, err := tool.Execute(step, ctx); err == nil {
		t.Error("expected error when target is missing and createIfMissing is false")
	}
}

func TestPatchValidateRequiresNonEmptyMerge(t *testing.T) {
	step := decodeStep(t, `
name: patch-config
tool: patch
file: x.json
`)
	tool := &PatchTool{}
	v, err := tool.Validate(step, &engine.StepContext{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid when merge is empty")
	}
}
