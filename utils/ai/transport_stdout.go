package ai

import (
	"context"
	"fmt"
	"io"
)

// StdoutTransport is the default, zero-configuration transport: it
// prints the assembled prompt and defers resolution to whoever is
// driving the CLI — they paste the prompt into an interactive AI
// session, save the JSON answer, and re-run with `--answers <path>`.
type StdoutTransport struct {
	Writer io.Writer
}

func (t *StdoutTransport) Name() string { return "stdout" }

// Resolve writes the prompt and returns a deferred result carrying
// exit code 2, the signal the CLI layer uses to distinguish "recipe
// needs an AI answer" from a genuine failure.
func (t *StdoutTransport) Resolve(ctx context.Context, prompt AssembledPrompt) (Result, error) {
	if _, err := fmt.Fprint(t.Writer, prompt.Markdown); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusDeferred, ExitCode: 2}, nil
}
