package tool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forgen-run/forgen/engine"
)

func TestQueryEvaluatesChecksAndExpressionAgainstJSON(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "package.json")
	if err := os.WriteFile(target, []byte(`{"name":"widget","version":"1.2.0","private":true}`), 0o644); err != nil {
		t.Fatal(err)
	}

	step := decodeStep(t, `
name: check-package
tool: query
file: package.json
checks:
  - "name == 'widget'"
  - "version == '9.9.9'"
expression: "version"
`)
	ctx := &engine.StepContext{ProjectRoot: root}
	tool := &QueryTool{}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	tr := result.ToolResult.(map[string]interface{})
	if tr["allPassed"].(bool) {
		t.Error("expected allPassed=false since one check fails")
	}
	if tr["expression"] != "1.2.0" {
		t.Errorf("expression result = %v", tr["expression"])
	}
}

func TestQueryParsesYAML(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "config.yaml")
	if err := os.WriteFile(target, []byte("env: production\nreplicas: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	step := decodeStep(t, `
name: check-config
tool: query
file: config.yaml
checks:
  - "env == 'production'"
`)
	ctx := &engine.StepContext{ProjectRoot: root}
	tool := &QueryTool{}

	result, err := tool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	tr := result.ToolResult.(map[string]interface{})
	if !tr["allPassed"].(bool) {
		t.Error("expected allPassed=true")
	}
}

func TestQueryValidateRequiresFile(t *testing.T) {
	step := decodeStep(t, `
name: check
tool: query
`)
	tool := &QueryTool{}
	v, err := tool.Validate(step, &engine.StepContext{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid when file is empty")
	}
}
