package tool

import (
	"github.com/forgen-run/forgen/engine"
)

func init() {
	engine.RegisterFactory(engine.ToolSequence, func() engine.Tool { return &SequenceTool{} })
}

// SequenceParams is the Sequence step's tool-specific payload.
type SequenceParams struct {
	Steps []engine.Step `yaml:"steps"`
}

// SequenceTool runs its children in declaration order against the
// shared StepContext, so exports from child i are visible to child
// i+1 exactly like top-level steps are to each other.
type SequenceTool struct{ Base }

func (t *SequenceTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p SequenceParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if len(p.Steps) == 0 {
		return invalid("sequence requires at least one child step"), nil
	}
	return validOK(), nil
}

func (t *SequenceTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p SequenceParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding sequence params", err)
	}

	executor := engine.NewExecutor(ctx.RenderEngine)
	leaves := engine.ExecutionMetadata{}
	results := make([]*engine.StepResult, 0, len(p.Steps))
	status := engine.StatusCompleted

	for i := range p.Steps {
		child := &p.Steps[i]
		result := executor.Run(child, ctx, true)
		ctx.Results[child.Name] = result
		results = append(results, result)
		tallyChild(&leaves, result)

		if result.Status == engine.StatusFailed && !child.ContinueOnError {
			status = engine.StatusFailed
			break
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

// tallyChild folds one child StepResult's leaf counts into meta,
// recursing into an already-aggregated nested Sequence/Parallel
// result rather than double-counting its container step.
func tallyChild(meta *engine.ExecutionMetadata, result *engine.StepResult) {
	if result.Metadata != nil {
		if nested, ok := result.Metadata["leafCounts"].(engine.ExecutionMetadata); ok {
			meta.TotalSteps += nested.TotalSteps
			meta.CompletedSteps += nested.CompletedSteps
			meta.FailedSteps += nested.FailedSteps
			meta.SkippedSteps += nested.SkippedSteps
			meta.CancelledSteps += nested.CancelledSteps
			return
		}
	}
	meta.TotalSteps++
	switch result.Status {
	case engine.StatusCompleted:
		meta.CompletedSteps++
	case engine.StatusFailed:
		meta.FailedSteps++
	case engine.StatusSkipped:
		meta.SkippedSteps++
	case engine.StatusCancelled:
		meta.CancelledSteps++
	}
}
