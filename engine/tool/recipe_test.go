package tool

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/ai"
	"github.com/forgen-run/forgen/utils/tmpl"
)

func newTestEngine() *engine.Engine {
	return engine.New(tmpl.New(), ai.NewCollector(), &ai.StdoutTransport{Writer: &bytes.Buffer{}})
}

func TestRecipeToolInvokesChildAndExposesProvides(t *testing.T) {
	root := t.TempDir()
	childPath := filepath.Join(root, "child.yaml")
	childYAML := `
name: child
steps:
  - name: make-child-dir
    tool: ensure_dirs
    paths: [from-child]
    exports:
      createdDirs: "len(result.created)"
provides:
  createdCount: createdDirs
`
	if err := os.WriteFile(childPath, []byte(childYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	eng := newTestEngine()
	step := decodeStep(t, `
name: invoke-child
tool: recipe
recipe: child.yaml
`)
	ctx := &engine.StepContext{
		ProjectRoot:  root,
		Variables:    map[string]interface{}{},
		Results:      map[string]*engine.StepResult{},
		RenderEngine: eng.RenderEngine,
		Collector:    eng.Collector,
		Engine:       eng,
	}

	rtool := &RecipeTool{}
	if v, err := rtool.Validate(step, ctx); err != nil || !v.IsValid {
		t.Fatalf("Validate() = %+v, %v", v, err)
	}

	result, err := rtool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != engine.StatusCompleted {
		t.Fatalf("Status = %v", result.Status)
	}
	if _, statErr := os.Stat(filepath.Join(root, "from-child")); statErr != nil {
		t.Errorf("expected nested recipe to create its directory: %v", statErr)
	}
	if got, ok := ctx.Variables["createdCount"]; !ok || got != 1 {
		t.Errorf("createdCount = %v (%v), want the child's provides merged into parent variables", got, ok)
	}
}

func TestRecipeToolValidateRequiresOwningEngine(t *testing.T) {
	step := decodeStep(t, `
name: invoke-child
tool: recipe
recipe: child.yaml
`)
	rtool := &RecipeTool{}
	v, err := rtool.Validate(step, &engine.StepContext{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid without an owning Engine")
	}
}

func TestRecipeToolGuardsAgainstInfiniteRecursion(t *testing.T) {
	root := t.TempDir()
	selfPath := filepath.Join(root, "self.yaml")
	selfYAML := `
name: self
steps:
  - name: recurse
    tool: recipe
    recipe: self.yaml
`
	if err := os.WriteFile(selfPath, []byte(selfYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	eng := newTestEngine()

	// self.yaml recurses into itself with identical (empty) variables;
	// the second entry onto the call stack must be rejected rather
	// than recursing forever.
	step := decodeStep(t, `
name: invoke-self
tool: recipe
recipe: self.yaml
`)
	ctx := &engine.StepContext{
		ProjectRoot:  root,
		Variables:    map[string]interface{}{},
		Results:      map[string]*engine.StepResult{},
		RenderEngine: eng.RenderEngine,
		Collector:    eng.Collector,
		Engine:       eng,
	}
	rtool := &RecipeTool{}
	result, err := rtool.Execute(step, ctx)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	// self.yaml's own recursive step should fail with a cycle error,
	// surfacing as an overall failed nested execution rather than a
	// stack overflow.
	if result.Status != engine.StatusFailed {
		t.Errorf("Status = %v, want failed due to recursion guard", result.Status)
	}
}
