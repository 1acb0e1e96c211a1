package tool

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/fileutil"
)

func init() {
	engine.RegisterFactory(engine.ToolRecipe, func() engine.Tool { return &RecipeTool{} })
}

// RecipeParams is the Recipe (nested) step's tool-specific payload.
type RecipeParams struct {
	Recipe            string                 `yaml:"recipe"`
	InheritVariables  bool                   `yaml:"inheritVariables"`
	VariableOverrides map[string]interface{} `yaml:"variableOverrides"`
}

// RecipeTool recursively invokes the engine on another recipe file,
// guarding against infinite recursion via a (recipe-id, variable
// fingerprint) call-stack check on the owning Engine.
type RecipeTool struct{ Base }

func (t *RecipeTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p RecipeParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if p.Recipe == "" {
		return invalid("recipe step requires a recipe path"), nil
	}
	if ctx.Engine == nil {
		return invalid("recipe step requires an owning Engine for nested execution"), nil
	}
	return validOK(), nil
}

func (t *RecipeTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p RecipeParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding recipe params", err)
	}

	childPath := fileutil.ResolveUnder(ctx.ProjectRoot, p.Recipe)

	vars := map[string]interface{}{}
	if p.InheritVariables {
		for k, v := range ctx.Variables {
			vars[k] = v
		}
	}
	for k, v := range p.VariableOverrides {
		vars[k] = v
	}

	frame := callFrame(childPath, vars)
	if !ctx.Engine.EnterCall(frame) {
		return nil, engine.ToolError("Recipe", "circular recipe invocation detected for "+childPath, nil)
	}
	defer ctx.Engine.ExitCall(frame)

	exec := ctx.Engine.ExecuteRecipe(engine.RecipeSource{FilePath: childPath}, engine.Options{
		Variables:     vars,
		WorkingDir:    ctx.ProjectRoot,
		DryRun:        ctx.DryRun,
		Force:         ctx.Force,
		SkipPrompts:   ctx.SkipPrompts,
		OnMessage:     ctx.OnMessage,
		CollectMode:   ctx.CollectMode,
		Answers:       ctx.Answers,
		EnvConfig:     ctx.EnvConfig,
		Communication: ctx.Communication,
	})

	status := engine.StatusCompleted
	var stepErr error
	if !exec.Success {
		status = engine.StatusFailed
		if exec.FatalError != nil {
			stepErr = exec.FatalError
		} else {
			stepErr = engine.ToolError("Recipe", "nested recipe "+childPath+" failed", nil)
		}
	}

	// The child's evaluated `provides` become named outputs on this
	// step's result and are merged into the parent's variables for
	// subsequent steps.
	provides := exec.Provides
	if provides == nil {
		provides = map[string]interface{}{}
	}
	for name, val := range provides {
		ctx.Variables[name] = val
	}

	var filesCreated, filesModified, filesDeleted []string
	for _, r := range exec.StepResults {
		filesCreated = append(filesCreated, r.FilesCreated...)
		filesModified = append(filesModified, r.FilesModified...)
		filesDeleted = append(filesDeleted, r.FilesDeleted...)
	}

	return &engine.StepResult{
		Status:        status,
		Error:         stepErr,
		FilesCreated:  filesCreated,
		FilesModified: filesModified,
		FilesDeleted:  filesDeleted,
		ToolResult: map[string]interface{}{
			"recipe":   childPath,
			"provides": provides,
			"metadata": exec.Metadata,
		},
	}, nil
}

// callFrame builds a stable fingerprint for the infinite-recursion
// guard: the recipe path plus a hash of its sorted variable bag, so
// two invocations of the same recipe with different variables are
// allowed to coexist on the stack while an identical re-entry is not.
func callFrame(path string, vars map[string]interface{}) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := xxhash.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, vars[k])
	}
	return fmt.Sprintf("%s#%x", path, h.Sum64())
}
