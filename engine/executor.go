package engine

import (
	"time"

	"github.com/forgen-run/forgen/utils/retry"
	"github.com/forgen-run/forgen/utils/tmpl"
)

// defaultStepTimeout matches the Shell tool's default; other
// tools typically complete well inside it.
const defaultStepTimeout = 5 * time.Minute

// Executor runs one step at a time against a shared StepContext,
// following a dependency/condition/retry/timeout/export pipeline.
type Executor struct {
	RenderEngine *tmpl.Engine
}

// NewExecutor builds an Executor bound to a template engine, used
// both for `when`-adjacent expression rendering and for `exports`
// entries that are template fragments.
func NewExecutor(renderEngine *tmpl.Engine) *Executor {
	return &Executor{RenderEngine: renderEngine}
}

// Run executes one step to completion (including retries) and
// returns its StepResult. It never returns a Go error for a tool
// failure — failures are represented inside the returned StepResult,
// matching the "must not throw through the top boundary" contract.
func (ex *Executor) Run(step *Step, ctx *StepContext, depsSatisfied bool) *StepResult {
	result := &StepResult{
		StepName:              step.Name,
		ToolType:              step.Tool,
		StartTime:             time.Now(),
		DependenciesSatisfied: depsSatisfied,
	}

	if !depsSatisfied {
		result.Status = StatusSkipped
		result.EndTime = result.StartTime
		return result
	}

	ctx.Step = step

	conditionResult := evalWhen(step.When, ctx)
	result.ConditionResult = &conditionResult
	if !conditionResult {
		result.Status = StatusSkipped
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		return result
	}

	for name, value := range step.Variables {
		ctx.Variables[name] = value
	}

	tool, err := NewTool(step.Tool)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		return result
	}

	if err := tool.Initialize(); err != nil {
		return ex.fail(result, ToolError(string(step.Tool), "initialize failed", err))
	}
	defer tool.Cleanup()

	validation, err := tool.Validate(step, ctx)
	if err != nil {
		return ex.fail(result, NewError(KindValidation, "validate failed", err))
	}
	if !validation.IsValid {
		return ex.fail(result, NewError(KindValidation, joinErrors(validation.Errors), nil))
	}

	timeout := defaultStepTimeout
	if step.TimeoutMS > 0 {
		timeout = time.Duration(step.TimeoutMS) * time.Millisecond
	}

	cfg := retry.StepRetryConfig
	cfg.MaxRetries = step.Retries
	if step.Retries == 0 {
		cfg.MaxRetries = 0
	}

	var execResult *StepResult
	outcome, attempts, retryErr := retry.WithRetryCount(func() (interface{}, error) {
		r, execErr := ex.runWithTimeout(tool, step, ctx, timeout)
		if execErr != nil {
			return r, execErr
		}
		if r.Status == StatusFailed {
			return r, r.Error
		}
		return r, nil
	}, retry.IsTransient, cfg)

	if r, ok := outcome.(*StepResult); ok {
		execResult = r
	}

	if retryErr != nil {
		if execResult == nil {
			execResult = &StepResult{}
		}
		execResult.Error = NewError(KindToolExecution, "step execution failed", retryErr)
		execResult.Status = StatusFailed
	}
	execResult.RetryCount = attempts
	if execResult.RetryCount < 0 {
		execResult.RetryCount = 0
	}

	execResult.StepName = step.Name
	execResult.ToolType = step.Tool
	execResult.StartTime = result.StartTime
	execResult.DependenciesSatisfied = true
	execResult.ConditionResult = &conditionResult
	execResult.EndTime = time.Now()
	execResult.Duration = execResult.EndTime.Sub(execResult.StartTime)

	// continueOnError doesn't change this leaf's recorded status; it
	// only tells the caller (Engine/Sequence/Parallel) not to abort
	// the rest of the run because of it.
	exported := evalExports(step, execResult, ctx.Variables, ctx.ProjectRoot, ex.RenderEngine)
	for k, v := range exported {
		ctx.Variables[k] = v
	}

	return execResult
}

func (ex *Executor) fail(result *StepResult, err error) *StepResult {
	result.Status = StatusFailed
	result.Error = err
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	return result
}

// runWithTimeout executes the tool on its own goroutine and races it
// against timeout, mirroring the subprocess-timeout pattern used
// elsewhere for shelling out.
func (ex *Executor) runWithTimeout(tool Tool, step *Step, ctx *StepContext, timeout time.Duration) (*StepResult, error) {
	type outcome struct {
		result *StepResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := tool.Execute(step, ctx)
		done <- outcome{result: r, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return &StepResult{Status: StatusFailed, Error: o.err}, o.err
		}
		return o.result, nil
	case <-time.After(timeout):
		timeoutErr := NewError(KindTimeout, "step exceeded its timeout", nil)
		return &StepResult{Status: StatusFailed, Error: timeoutErr}, timeoutErr
	}
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e
	}
	if out == "" {
		out = "validation failed"
	}
	return out
}
