package tool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgen-run/forgen/engine"
)

func TestAIValidateRequiresPromptAndOutput(t *testing.T) {
	tool := &AITool{}

	missingPrompt := decodeStep(t, `
name: decide
tool: ai
output: useTS
`)
	if v, _ := tool.Validate(missingPrompt, &engine.StepContext{}); v.IsValid {
		t.Error("expected invalid: ai step requires a prompt")
	}

	missingOutput := decodeStep(t, `
name: decide
tool: ai
prompt: "Should this use TypeScript?"
`)
	if v, _ := tool.Validate(missingOutput, &engine.StepContext{}); v.IsValid {
		t.Error("expected invalid: ai step requires an output variable")
	}

	ok := decodeStep(t, `
name: decide
tool: ai
prompt: "Should this use TypeScript?"
output: useTS
`)
	if v, _ := tool.Validate(ok, &engine.StepContext{}); !v.IsValid {
		t.Error("expected a fully-specified ai step to validate")
	}
}

func TestResolveContextsExpandsDirectoryToManifest(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := resolveContexts(root, []string{".", "a literal note"})
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if !strings.Contains(out[0], "Context manifest") {
		t.Errorf("out[0] = %q, expected an expanded manifest", out[0])
	}
	if out[1] != "a literal note" {
		t.Errorf("out[1] = %q, expected passthrough", out[1])
	}
}

func TestCheckGuardrailsRejectsUnbalancedSyntax(t *testing.T) {
	err := checkGuardrails("func f() {", t.TempDir(), Guardrails{ValidateSyntax: true})
	if err == nil {
		t.Error("expected an error for unbalanced braces")
	}

	if err := checkGuardrails("func f() {}", t.TempDir(), Guardrails{ValidateSyntax: true}); err != nil {
		t.Errorf("balanced source should pass: %v", err)
	}
}

func TestCheckGuardrailsRejectsUnknownImports(t *testing.T) {
	source := "import React from 'react'\nimport left from 'left-pad'\n"
	err := checkGuardrails(source, t.TempDir(), Guardrails{AllowedImports: []string{"react"}})
	if err == nil || !strings.Contains(err.Error(), "left-pad") {
		t.Errorf("checkGuardrails() error = %v, want a left-pad import rejection", err)
	}

	if err := checkGuardrails(source, t.TempDir(), Guardrails{AllowedImports: []string{"react", "left-pad"}}); err != nil {
		t.Errorf("both imports allowed should pass: %v", err)
	}
}

func TestExtractImportsFindsQuotedModuleNames(t *testing.T) {
	source := "import foo from \"bar\"\nimport baz from 'qux'\nnot an import line\n"
	got := extractImports(source)
	want := []string{"bar", "qux"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("extractImports() = %v, want %v", got, want)
	}
}
