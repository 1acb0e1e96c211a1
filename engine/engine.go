package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forgen-run/forgen/utils/ai"
	"github.com/forgen-run/forgen/utils/config"
	"github.com/forgen-run/forgen/utils/exprenv"
	"github.com/forgen-run/forgen/utils/tmpl"
	"gopkg.in/yaml.v3"
)

// RecipeSource names where to load a recipe from. Content takes
// precedence when both are set (a caller that already read and
// preprocessed the file passes the path too, so the recipe keeps its
// on-disk identity for sibling ./templates/ resolution).
type RecipeSource struct {
	FilePath string
	Content  string
	Name     string
}

// Options configures one ExecuteRecipe call.
type Options struct {
	Variables     map[string]interface{}
	WorkingDir    string
	SkipPrompts   bool
	DryRun        bool
	Force         bool
	Answers       map[string]string
	CollectMode   bool
	OnMessage     func(level, text string)
	OnStepResult  func(*StepResult)
	EnvConfig     *config.EnvConfig
	Communication *Communication
}

// Engine drives recipe loading, validation, planning, and execution.
// It owns the Recipe structure and the final RecipeExecution; it
// never mutates a Recipe after load.
type Engine struct {
	RenderEngine *tmpl.Engine
	Collector    *ai.Collector
	Transport    ai.Transport

	callStack map[string]bool
}

// New builds an Engine. renderEngine should already have the AI tags
// registered against collector (see ai.RegisterTags).
func New(renderEngine *tmpl.Engine, collector *ai.Collector, transport ai.Transport) *Engine {
	return &Engine{
		RenderEngine: renderEngine,
		Collector:    collector,
		Transport:    transport,
		callStack:    map[string]bool{},
	}
}

// EnterCall registers a (recipe-id, variable-fingerprint) frame on the
// nested-invocation call stack, used by the Recipe tool's infinite-
// recursion guard. It reports false (and registers nothing) if an
// equivalent frame is already on the stack.
func (e *Engine) EnterCall(frame string) bool {
	if e.callStack == nil {
		e.callStack = map[string]bool{}
	}
	if e.callStack[frame] {
		return false
	}
	e.callStack[frame] = true
	return true
}

// ExitCall removes a frame previously registered by EnterCall.
func (e *Engine) ExitCall(frame string) {
	delete(e.callStack, frame)
}

// LoadRecipe parses a RecipeSource into a Recipe.
func LoadRecipe(source RecipeSource) (*Recipe, error) {
	var raw []byte
	var sourcePath string

	switch {
	case source.Content != "":
		raw = []byte(source.Content)
		sourcePath = source.FilePath
	case source.FilePath != "":
		data, err := os.ReadFile(source.FilePath)
		if err != nil {
			return nil, NewError(KindConfig, "reading recipe file", err)
		}
		raw = data
		sourcePath = source.FilePath
	default:
		return nil, NewError(KindConfig, "recipe source must set FilePath or Content", nil)
	}

	var recipe Recipe
	if err := yaml.Unmarshal(raw, &recipe); err != nil {
		return nil, NewError(KindConfig, "parsing recipe YAML", err)
	}
	if recipe.Name == "" {
		recipe.Name = source.Name
	}
	recipe.SourcePath = sourcePath
	return &recipe, nil
}

// ValidateRecipe checks step-name uniqueness, dependsOn edges, and
// that every step's tool discriminant is registered, without running
// anything. StepsPre and StepsPost are each their own independent
// dependsOn graph and are validated the same way.
func ValidateRecipe(r *Recipe) error {
	for _, steps := range [][]Step{r.StepsPre, r.Steps, r.StepsPost} {
		if _, err := BuildPlan(steps); err != nil {
			return err
		}
		for i := range steps {
			if !KnownTool(steps[i].Tool) {
				return NewError(KindConfig, fmt.Sprintf("step %q uses unknown tool %q", steps[i].Name, steps[i].Tool), nil)
			}
		}
	}
	return nil
}

// ExecuteRecipe is the engine's public entry point.
func (e *Engine) ExecuteRecipe(source RecipeSource, opts Options) *RecipeExecution {
	recipe, err := LoadRecipe(source)
	if err != nil {
		return failedExecution(recipe, err)
	}
	if err := ValidateRecipe(recipe); err != nil {
		return failedExecution(recipe, err)
	}

	prePlan, err := BuildPlan(recipe.StepsPre)
	if err != nil {
		return failedExecution(recipe, err)
	}
	mainPlan, err := BuildPlan(recipe.Steps)
	if err != nil {
		return failedExecution(recipe, err)
	}
	postPlan, err := BuildPlan(recipe.StepsPost)
	if err != nil {
		return failedExecution(recipe, err)
	}

	vars := mergeVariables(recipe.Variables, opts.Variables)

	e.Collector.Reset()
	collectPass := opts.CollectMode || opts.Answers == nil
	e.Collector.SetCollectMode(collectPass)

	comm := opts.Communication
	if comm == nil {
		comm = NewCommunication()
	}

	ctx := &StepContext{
		Variables:     vars,
		ProjectRoot:   opts.WorkingDir,
		Results:       map[string]*StepResult{},
		RecipeName:    recipe.Name,
		Answers:       opts.Answers,
		CollectMode:   collectPass,
		DryRun:        opts.DryRun,
		Force:         opts.Force,
		SkipPrompts:   opts.SkipPrompts,
		OnMessage:     opts.OnMessage,
		RenderEngine:  e.RenderEngine,
		Collector:     e.Collector,
		Engine:        e,
		EnvConfig:     opts.EnvConfig,
		Communication: comm,
	}

	if err := e.runHook(recipe.Hooks.beforeRecipe(), ctx); err != nil {
		return failedExecution(recipe, err)
	}

	exec := &RecipeExecution{Recipe: recipe, Success: true}
	executor := NewExecutor(e.RenderEngine)

	e.runStage(recipe, recipe.StepsPre, prePlan, ctx, opts, exec, executor)
	if exec.Success {
		e.runAutomaticTemplates(recipe, ctx, exec)
	}
	if exec.Success {
		e.runStage(recipe, recipe.Steps, mainPlan, ctx, opts, exec, executor)
	}
	if exec.Success {
		e.runStage(recipe, recipe.StepsPost, postPlan, ctx, opts, exec, executor)
	}
	exec.Metadata.WorkingDir = ctx.ProjectRoot

	if exec.FatalError != nil {
		return exec
	}

	if exec.Success && collectPass && len(e.Collector.Entries()) > 0 {
		prompt := ai.Assemble(e.Collector)
		result, transportErr := e.Transport.Resolve(context.Background(), prompt)
		if transportErr != nil {
			return failedExecution(recipe, NewError(KindAiTransport, "resolving AI prompt", transportErr))
		}
		if result.Status == ai.StatusDeferred {
			exec.Deferred = true
			exec.Success = true
			exec.Message = "awaiting AI answers; re-run with --answers <path>"
			return exec
		}

		// Resolve pass: only re-run steps that deferred their file
		// writes during collection (Template steps whose render
		// produced new Collector entries).
		ctx.Answers = result.Answers
		ctx.CollectMode = false
		e.Collector.SetCollectMode(false)
		return e.rerunDeferred(recipe, ctx, exec, opts)
	}

	if err := e.runHook(recipe.Hooks.afterRecipe(), ctx); err != nil {
		exec.Success = false
		exec.FatalError = asEngineError(err)
		return exec
	}
	exec.Provides = e.evalProvides(recipe, ctx)
	if exec.Success {
		e.emitMessageTemplate(recipe.OnSuccess, ctx, "info")
	} else {
		e.emitMessageTemplate(recipe.OnError, ctx, "error")
	}
	return exec
}

// runHook renders one lifecycle hook template. Unlike onSuccess/onError
// messages, a hook that fails to render aborts the recipe.
func (e *Engine) runHook(template string, ctx *StepContext) error {
	if template == "" {
		return nil
	}
	rendered, err := e.RenderEngine.Render(template, "<hook>", &tmpl.State{
		ProjectRoot: ctx.ProjectRoot,
		Vars:        ctx.Variables,
	})
	if err != nil {
		return NewError(KindConfig, "rendering hook template", err)
	}
	if rendered != "" && ctx.OnMessage != nil {
		ctx.OnMessage("info", rendered)
	}
	return nil
}

// evalProvides computes the recipe's `provides` map against the final
// variable bag, so a parent Recipe step (or the serve endpoint) can
// read the child's named outputs without digging through step results.
func (e *Engine) evalProvides(recipe *Recipe, ctx *StepContext) map[string]interface{} {
	if len(recipe.Provides) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(recipe.Provides))
	for name, expression := range recipe.Provides {
		if exprenv.IsTemplateExpression(expression) {
			rendered, err := e.RenderEngine.Render(expression, "<provides>."+name, &tmpl.State{
				ProjectRoot: ctx.ProjectRoot,
				Vars:        ctx.Variables,
			})
			if err != nil {
				continue
			}
			out[name] = strings.TrimSpace(rendered)
			continue
		}
		if value := exprenv.EvalOrUndefined(expression, ctx.ProjectRoot, ctx.Variables); value != nil {
			out[name] = value
		}
	}
	return out
}

func asEngineError(err error) *Error {
	if engErr, ok := err.(*Error); ok {
		return engErr
	}
	return NewError(KindInternal, err.Error(), err)
}

// runStage executes one ordered batch of steps (StepsPre, the main
// Steps list, or StepsPost) against plan's order, threading dependsOn
// satisfaction and aggregating metadata into the shared exec. Nested
// Sequence/Parallel containers report their own leaf counts via
// StepResult.Metadata["leafCounts"], added by those tools. It mutates
// exec.Success to false and leaves early on the first hard failure.
func (e *Engine) runStage(recipe *Recipe, steps []Step, plan *Plan, ctx *StepContext, opts Options, exec *RecipeExecution, executor *Executor) {
	index := make(map[string]*Step, len(steps))
	for i := range steps {
		index[steps[i].Name] = &steps[i]
	}

	for _, name := range plan.Order {
		step := index[name]
		if err := e.runHook(recipe.Hooks.beforeStep(), ctx); err != nil {
			exec.Success = false
			exec.FatalError = asEngineError(err)
			return
		}

		depsSatisfied := true
		for _, dep := range step.DependsOn {
			depResult := ctx.Results[dep]
			if depResult == nil || depResult.Status == StatusFailed || depResult.Status == StatusSkipped || depResult.Status == StatusCancelled {
				depsSatisfied = false
				break
			}
		}

		result := executor.Run(step, ctx, depsSatisfied)
		ctx.Results[step.Name] = result
		exec.StepResults = append(exec.StepResults, result)
		tallyLeaves(&exec.Metadata, result)

		if err := e.runHook(recipe.Hooks.afterStep(), ctx); err != nil {
			exec.Success = false
			exec.FatalError = asEngineError(err)
			return
		}
		if opts.OnStepResult != nil {
			opts.OnStepResult(result)
		}

		if result.Status == StatusFailed && !step.ContinueOnError {
			exec.Success = false
			e.emitMessageTemplate(recipe.Hooks.onError(), ctx, "error")
			return
		}
	}
}

// runAutomaticTemplates implements the default Automatic Template
// Processing pass: when no top-level step of the recipe's pre, main, or
// post list is an explicit Template step (children of Sequence/Parallel
// containers are not inspected), every file lexically under the
// recipe's sibling ./templates/ directory is rendered through the same
// naming/frontmatter rules a Template step would apply. A recipe with
// no templates/ directory at all is a silent no-op, not an error.
func (e *Engine) runAutomaticTemplates(recipe *Recipe, ctx *StepContext, exec *RecipeExecution) {
	if recipeHasExplicitTemplateStep(recipe) {
		return
	}
	dir := templatesDir(recipe)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}

	var files []string
	_ = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)

	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			exec.Success = false
			exec.StepResults = append(exec.StepResults, &StepResult{
				Status: StatusFailed,
				Error:  ToolError("TemplateRender", "reading "+path, err),
			})
			return
		}
		result, err := RenderTemplateFile(path, string(raw), TemplateRenderOptions{}, ctx)
		if err != nil {
			exec.Success = false
			exec.StepResults = append(exec.StepResults, &StepResult{Status: StatusFailed, Error: err})
			return
		}
		result.StepName = "templates:" + relTemplatePath(dir, path)
		exec.StepResults = append(exec.StepResults, result)
		tallyLeaves(&exec.Metadata, result)
	}
}

func recipeHasExplicitTemplateStep(recipe *Recipe) bool {
	for _, list := range [][]Step{recipe.StepsPre, recipe.Steps, recipe.StepsPost} {
		for _, s := range list {
			if s.Tool == ToolTemplate {
				return true
			}
		}
	}
	return false
}

func relTemplatePath(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return path
	}
	return rel
}

// rerunDeferred re-executes exactly the steps whose Template-tool
// result deferred writing a file during the collect pass, now with
// real answers in hand.
func (e *Engine) rerunDeferred(recipe *Recipe, ctx *StepContext, collectExec *RecipeExecution, opts Options) *RecipeExecution {
	executor := NewExecutor(e.RenderEngine)
	index := make(map[string]*Step)
	for _, steps := range [][]Step{recipe.StepsPre, recipe.Steps, recipe.StepsPost} {
		for i := range steps {
			index[steps[i].Name] = &steps[i]
		}
	}

	final := &RecipeExecution{Recipe: recipe, Success: true}
	for _, result := range collectExec.StepResults {
		resolved := result
		if deferred, _ := result.Metadata["deferred"].(bool); deferred {
			switch {
			case strings.HasPrefix(result.StepName, "templates:"):
				resolved = rerunDeferredTemplate(result, ctx)
			default:
				if step, ok := index[result.StepName]; ok {
					resolved = executor.Run(step, ctx, result.DependenciesSatisfied)
					ctx.Results[step.Name] = resolved
				}
			}
		}
		final.StepResults = append(final.StepResults, resolved)
		tallyLeaves(&final.Metadata, resolved)
		if resolved.Status == StatusFailed && !indexContinueOnError(index, resolved.StepName) {
			final.Success = false
		}
	}
	final.Metadata.WorkingDir = ctx.ProjectRoot
	final.Provides = e.evalProvides(recipe, ctx)

	if final.Success {
		e.emitMessageTemplate(recipe.OnSuccess, ctx, "info")
	} else {
		e.emitMessageTemplate(recipe.OnError, ctx, "error")
	}
	return final
}

// rerunDeferredTemplate re-renders one Automatic Template Processing
// file that deferred during the collect pass, now that ctx carries
// real AI answers.
func rerunDeferredTemplate(prior *StepResult, ctx *StepContext) *StepResult {
	tr, _ := prior.ToolResult.(map[string]interface{})
	path, _ := tr["templatePath"].(string)
	if path == "" {
		return prior
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return &StepResult{Status: StatusFailed, StepName: prior.StepName, Error: ToolError("TemplateRender", "reading "+path, err)}
	}
	result, err := RenderTemplateFile(path, string(raw), TemplateRenderOptions{}, ctx)
	if err != nil {
		return &StepResult{Status: StatusFailed, StepName: prior.StepName, Error: err}
	}
	result.StepName = prior.StepName
	return result
}

func indexContinueOnError(index map[string]*Step, name string) bool {
	if s, ok := index[name]; ok {
		return s.ContinueOnError
	}
	return false
}

func tallyLeaves(meta *ExecutionMetadata, result *StepResult) {
	if leaves, ok := result.Metadata["leafCounts"].(ExecutionMetadata); ok {
		meta.TotalSteps += leaves.TotalSteps
		meta.CompletedSteps += leaves.CompletedSteps
		meta.FailedSteps += leaves.FailedSteps
		meta.SkippedSteps += leaves.SkippedSteps
		meta.CancelledSteps += leaves.CancelledSteps
		return
	}
	meta.TotalSteps++
	switch result.Status {
	case StatusCompleted:
		meta.CompletedSteps++
	case StatusFailed:
		meta.FailedSteps++
	case StatusSkipped:
		meta.SkippedSteps++
	case StatusCancelled:
		meta.CancelledSteps++
	}
}

func mergeVariables(schema map[string]VariableSpec, cli map[string]interface{}) map[string]interface{} {
	vars := make(map[string]interface{}, len(schema)+len(cli))
	for name, spec := range schema {
		if spec.Default != nil {
			vars[name] = spec.Default
		}
	}
	for k, v := range cli {
		vars[k] = v
	}
	return vars
}

func (e *Engine) emitMessageTemplate(template string, ctx *StepContext, level string) {
	if template == "" || ctx.OnMessage == nil {
		return
	}
	rendered, err := e.RenderEngine.Render(template, "<message>", &tmpl.State{
		ProjectRoot: ctx.ProjectRoot,
		Vars:        ctx.Variables,
	})
	if err != nil {
		// Failures in message rendering are logged but never override
		// the run's outcome.
		ctx.OnMessage("error", "rendering message template: "+err.Error())
		return
	}
	if rendered != "" {
		ctx.OnMessage(level, rendered)
	}
}

func failedExecution(recipe *Recipe, err error) *RecipeExecution {
	return &RecipeExecution{Recipe: recipe, Success: false, FatalError: asEngineError(err)}
}

// templatesDir returns the recipe-relative ./templates/ directory
// used by Automatic Template Processing.
func templatesDir(recipe *Recipe) string {
	if recipe.SourcePath == "" {
		return "templates"
	}
	return filepath.Join(filepath.Dir(recipe.SourcePath), "templates")
}
