package progress

import (
	"os"
	"testing"
	"time"

	"github.com/forgen-run/forgen/engine"
)

func TestReporterStepResultDoesNotPanicForEachStatus(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	r := New()
	if r.useColor {
		t.Error("NO_COLOR should disable color output")
	}

	r.StartRecipe("scaffold-service")
	for _, status := range []engine.Status{engine.StatusCompleted, engine.StatusFailed, engine.StatusSkipped, engine.StatusCancelled} {
		result := &engine.StepResult{StepName: "write-readme", Status: status}
		if status == engine.StatusFailed {
			result.Error = engine.NewError(engine.KindToolExecution, "boom", nil)
		}
		r.StepResult(result)
	}

	r.FinishRecipe(&engine.RecipeExecution{
		Success:  true,
		Metadata: engine.ExecutionMetadata{TotalSteps: 4, CompletedSteps: 4},
	})
}

func TestFormatDurationSwitchesUnits(t *testing.T) {
	if got := formatDuration(0); got != "0ms" {
		t.Errorf("formatDuration(0) = %q, want 0ms", got)
	}
	if got := formatDuration(1500 * time.Millisecond); got != "1.5s" {
		t.Errorf("formatDuration(1.5s) = %q, want 1.5s", got)
	}
}
