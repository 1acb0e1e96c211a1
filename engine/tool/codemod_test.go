package tool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forgen-run/forgen/engine"
)

func TestCodeModAddImportIsIdempotent(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "main.go")
	if err := os.WriteFile(target, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	step := decodeStep(t, `
name: add-import
tool: codemod
codemod: add-import
files: ["main.go"]
parameters:
  import: "import \"fmt\""
`)
	ctx := &engine.StepContext{ProjectRoot: root}
	tool := &CodeModTool{}

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

	// Second run over already-patched content should be a no-op.
	result2, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	if len(result2.FilesModified) != 0 {
		t.Errorf("expected idempotent re-run to modify nothing, got %v", result2.FilesModified)
	}
}

func TestCodeModReplaceTextAppliesRegexp(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "config.txt")
	if err := os.WriteFile(target, []byte("version=1.0.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	step := decodeStep(t, `
name: bump-version
tool: codemod
codemod: replace-text
files: ["config.txt"]
parameters:
  pattern: "version=.*"
  replacement: "version=2.0.0"
`)
	ctx := &engine.StepContext{ProjectRoot: root}
	tool := &CodeModTool{}

	if _, err := tool.Execute(step, ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "version=2.0.0\n" {
		t.Errorf("content = %q", data)
	}
}

func TestCodeModValidateRejectsUnknownTransform(t *testing.T) {
	step := decodeStep(t, `
name: bad
tool: codemod
codemod: not-a-real-transform
files: ["x.go"]
`)
	tool := &CodeModTool{}
	v, err := tool.Validate(step, &engine.StepContext{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid for unknown codemod name")
	}
}

func TestCodeModBackupWritesBakFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "file.txt")
	if err := os.WriteFile(target, []byte("original\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	step := decodeStep(t, `
name: add-export
tool: codemod
codemod: add-export
files: ["file.txt"]
backup: true
parameters:
  export: "export default {}"
`)
	ctx := &engine.StepContext{ProjectRoot: root}
	tool := &CodeModTool{}

	if _, err := tool.Execute(step, ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := os.Stat(target + ".bak"); err != nil {
		t.Errorf("expected backup file: %v", err)
	}
}
