package tool

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/forgen-run/forgen/engine"
)

func init() {
	engine.RegisterFactory(engine.ToolParallel, func() engine.Tool { return &ParallelTool{} })
}

// ParallelParams is the Parallel step's tool-specific payload.
type ParallelParams struct {
	Steps []engine.Step `yaml:"steps"`
	Limit int           `yaml:"limit"`
}

// ParallelTool runs its children concurrently, each against its own
// copy of the shared variable bag (the engine is otherwise
// single-threaded cooperative; confining each child's mutation to its
// own copy avoids a concurrent map data race on StepContext.Variables).
// Exports from every child are then merged back into the parent
// context in completion order — last writer wins on key conflicts.
type ParallelTool struct{ Base }

func (t *ParallelTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p ParallelParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if len(p.Steps) == 0 {
		return invalid("parallel requires at least one child step"), nil
	}
	return validOK(), nil
}

type parallelOutcome struct {
	index          int
	completionSeq  int64
	result         *engine.StepResult
	finalVariables map[string]interface{}
}

func (t *ParallelTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p ParallelParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding parallel params", err)
	}

	// Siblings exporting the same key race: last to finish wins, which
	// is surfaced up front rather than silently.
	if ctx.OnMessage != nil {
		exportedBy := map[string]string{}
		for i := range p.Steps {
			for key := range p.Steps[i].Exports {
				if prev, dup := exportedBy[key]; dup {
					ctx.OnMessage("warn", fmt.Sprintf("parallel children %q and %q both export %q; the last to finish wins", prev, p.Steps[i].Name, key))
				} else {
					exportedBy[key] = p.Steps[i].Name
				}
			}
		}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = runtime.NumCPU()
		if limit < 1 {
			limit = 1
		}
	}

	snapshot := make(map[string]interface{}, len(ctx.Variables))
	for k, v := range ctx.Variables {
		snapshot[k] = v
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var seq int64
	outcomes := make([]parallelOutcome, len(p.Steps))

	for i := range p.Steps {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			childVars := make(map[string]interface{}, len(snapshot))
			for k, v := range snapshot {
				childVars[k] = v
			}
			childCtx := &engine.StepContext{
				Step:          ctx.Step,
				Variables:     childVars,
				ProjectRoot:   ctx.ProjectRoot,
				Results:       map[string]*engine.StepResult{},
				RecipeName:    ctx.RecipeName,
				Answers:       ctx.Answers,
				CollectMode:   ctx.CollectMode,
				DryRun:        ctx.DryRun,
				Force:         ctx.Force,
				SkipPrompts:   ctx.SkipPrompts,
				OnMessage:     ctx.OnMessage,
				RenderEngine:  ctx.RenderEngine,
				Collector:     ctx.Collector,
				Engine:        ctx.Engine,
				EnvConfig:     ctx.EnvConfig,
				Communication: ctx.Communication,
			}
			executor := engine.NewExecutor(ctx.RenderEngine)
			result := executor.Run(&p.Steps[i], childCtx, true)

			outcomes[i] = parallelOutcome{
				index:          i,
				completionSeq:  atomic.AddInt64(&seq, 1),
				result:         result,
				finalVariables: childVars,
			}
		}(i)
	}
	wg.Wait()

	// Sort by completion order so last-writer-wins matches actual
	// finish order, not declaration order.
	ordered := append([]parallelOutcome{}, outcomes...)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].completionSeq < ordered[j-1].completionSeq; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	leaves := engine.ExecutionMetadata{}
	results := make([]*engine.StepResult, len(p.Steps))
	status := engine.StatusCompleted

	for _, o := range ordered {
		results[o.index] = o.result
		child := &p.Steps[o.index]
		ctx.Results[child.Name] = o.result
		tallyChild(&leaves, o.result)

		// Merge only keys the child changed, so an untouched key's
		// snapshot value never overwrites a sibling's earlier change.
		// reflect.DeepEqual is used because values may hold
		// uncomparable types (maps, slices) from Query/Patch exports.
		for k, v := range o.finalVariables {
			if prev, had := snapshot[k]; had && reflect.DeepEqual(prev, v) {
				continue
			}
			ctx.Variables[k] = v
		}

		if o.result.Status == engine.StatusFailed && !child.ContinueOnError {
			status = engine.StatusFailed
		}
	}

	return &engine.StepResult{
		Status: status,
		ToolResult: map[string]interface{}{
			"steps": results,
		},
		Metadata: map[string]interface{}{"leafCounts": leaves},
	}, nil
}
