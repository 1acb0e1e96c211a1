// Package progress renders a recipe run's step-by-step progress to the
// terminal as plain ANSI + Unicode box-drawing output rather than a
// full TUI framework.
package progress

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/forgen-run/forgen/engine"
	"golang.org/x/term"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconSkip    = "○"
	iconRunning = "⏳"
)

// Reporter prints a line for each completed step as a recipe runs,
// meant to be driven from engine.Options.OnStepResult.
type Reporter struct {
	useColor bool
	start    time.Time
}

// New builds a Reporter. Colors are suppressed when NO_COLOR is set,
// TERM is "dumb", or stdout isn't a real terminal (output piped to a
// file or another process).
func New() *Reporter {
	useColor := os.Getenv("NO_COLOR") == "" && os.Getenv("TERM") != "dumb" &&
		term.IsTerminal(int(os.Stdout.Fd()))
	return &Reporter{useColor: useColor, start: time.Now()}
}

func (r *Reporter) color(text, code string) string {
	if !r.useColor {
		return text
	}
	return code + text + colorReset
}

// StartRecipe prints the recipe's header line.
func (r *Reporter) StartRecipe(name string) {
	r.start = time.Now()
	title := r.color(fmt.Sprintf(" %s ", name), colorBold)
	fmt.Printf("\n%s\n", title)
	fmt.Println(r.color(strings.Repeat("─", len(name)+2), colorGray))
}

// StepResult prints one line per finished step, called from
// engine.Options.OnStepResult as the run progresses.
func (r *Reporter) StepResult(result *engine.StepResult) {
	icon := r.icon(result.Status)
	name := r.color(result.StepName, colorBlue)
	duration := r.color(formatDuration(result.Duration), colorGray)

	switch result.Status {
	case engine.StatusFailed:
		fmt.Printf("  %s %s %s\n", icon, name, duration)
		if result.Error != nil {
			fmt.Printf("      %s\n", r.color(result.Error.Error(), colorRed))
		}
	case engine.StatusSkipped:
		fmt.Printf("  %s %s %s\n", icon, name, r.color("skipped", colorGray))
	default:
		fmt.Printf("  %s %s %s\n", icon, name, duration)
	}
}

func (r *Reporter) icon(status engine.Status) string {
	switch status {
	case engine.StatusCompleted:
		return r.color(iconSuccess, colorGreen)
	case engine.StatusFailed:
		return r.color(iconError, colorRed)
	case engine.StatusSkipped, engine.StatusCancelled:
		return r.color(iconSkip, colorGray)
	default:
		return r.color(iconRunning, colorYellow)
	}
}

// FinishRecipe prints the run's closing summary line.
func (r *Reporter) FinishRecipe(exec *engine.RecipeExecution) {
	elapsed := formatDuration(time.Since(r.start))
	if exec.Success {
		fmt.Printf("\n%s %d steps completed %s\n\n",
			r.color(iconSuccess, colorGreen), exec.Metadata.CompletedSteps, r.color(elapsed, colorGray))
		return
	}
	fmt.Printf("\n%s %d/%d steps failed %s\n\n",
		r.color(iconError, colorRed), exec.Metadata.FailedSteps, exec.Metadata.TotalSteps, r.color(elapsed, colorGray))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
