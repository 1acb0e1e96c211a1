package tool

import (
	"os"

	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/fileutil"
)

func init() {
	engine.RegisterFactory(engine.ToolEnsureDirs, func() engine.Tool { return &EnsureDirsTool{} })
}

// EnsureDirsParams is the EnsureDirs step's tool-specific payload.
type EnsureDirsParams struct {
	Paths []string `yaml:"paths"`
}

// EnsureDirsTool creates directories (recursively), reporting which
// ones it actually created versus which already existed.
type EnsureDirsTool struct{ Base }

func (t *EnsureDirsTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p EnsureDirsParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if len(p.Paths) == 0 {
		return invalid("ensure_dirs requires at least one path"), nil
	}
	return validOK(), nil
}

func (t *EnsureDirsTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p EnsureDirsParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding ensure_dirs params", err)
	}

	var created, alreadyExisted []string
	for _, path := range p.Paths {
		resolved := fileutil.ResolveUnder(ctx.ProjectRoot, path)
		if _, err := os.Stat(resolved); err == nil {
			alreadyExisted = append(alreadyExisted, resolved)
			continue
		}
		if ctx.DryRun {
			created = append(created, resolved)
			continue
		}
		if err := os.MkdirAll(resolved, 0o755); err != nil {
			return nil, engine.ToolError("EnsureDirs", "creating "+resolved, err)
		}
		created = append(created, resolved)
	}

	return &engine.StepResult{
		Status: engine.StatusCompleted,
		ToolResult: map[string]interface{}{
			"paths":          p.Paths,
			"created":        created,
			"alreadyExisted": alreadyExisted,
		},
	}, nil
}
