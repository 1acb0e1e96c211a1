package tool

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/fileutil"
	"github.com/forgen-run/forgen/utils/tmpl"
)

func init() {
	engine.RegisterFactory(engine.ToolShell, func() engine.Tool { return &ShellTool{} })
}

// maxShellOutput caps captured stdout/stderr at 10 MiB each.
const maxShellOutput = 10 * 1024 * 1024

// ShellParams is the Shell step's tool-specific payload.
type ShellParams struct {
	Command string            `yaml:"command"`
	Cwd     string            `yaml:"cwd"`
	Env     map[string]string `yaml:"env"`
	Stream  bool              `yaml:"stream"`
}

// ShellTool runs a rendered command string in a subshell, with its own
// context timeout so the subprocess is actually killed rather than
// merely abandoned when the step's budget expires.
type ShellTool struct{ Base }

func (t *ShellTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p ShellParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if strings.TrimSpace(p.Command) == "" {
		return invalid("shell requires a command"), nil
	}
	return validOK(), nil
}

func (t *ShellTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p ShellParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding shell params", err)
	}

	command, err := ctx.RenderEngine.Render(p.Command, step.Name+"#command", &tmpl.State{
		ProjectRoot: ctx.ProjectRoot, Vars: ctx.Variables,
	})
	if err != nil {
		return nil, engine.ToolError("Shell", "rendering command", err)
	}

	timeout := 5 * time.Minute
	if step.TimeoutMS > 0 {
		timeout = time.Duration(step.TimeoutMS) * time.Millisecond
	}
	execCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cwd := ctx.ProjectRoot
	if p.Cwd != "" {
		cwd = fileutil.ResolveUnder(ctx.ProjectRoot, p.Cwd)
	}

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = cwd
	// Step-level `environment` applies first so the tool's own `env`
	// map can override individual entries.
	cmd.Env = append(os.Environ(), envPairs(step.Environment)...)
	cmd.Env = append(cmd.Env, envPairs(p.Env)...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = capped(&stdoutBuf, maxShellOutput, ctx.OnMessage, step.Name, p.Stream)
	cmd.Stderr = capped(&stderrBuf, maxShellOutput, nil, step.Name, false)

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if execCtx.Err() == context.DeadlineExceeded {
			return nil, engine.NewError(engine.KindTimeout, "shell command exceeded its timeout", runErr)
		} else {
			return nil, engine.ToolError("Shell", "running command", runErr)
		}
	}

	status := engine.StatusCompleted
	var stepErr error
	if exitCode != 0 {
		status = engine.StatusFailed
		stepErr = engine.ToolError("Shell", "command exited non-zero", runErr)
	}

	return &engine.StepResult{
		Status: status,
		Error:  stepErr,
		Output: stdoutBuf.String(),
		ToolResult: map[string]interface{}{
			"exitCode": exitCode,
			"stdout":   stdoutBuf.String(),
			"stderr":   stderrBuf.String(),
		},
	}, nil
}

func envPairs(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// capped wraps buf so writes beyond limit are silently dropped, and
// optionally streams each write to onMessage (Stream: true).
func capped(buf *bytes.Buffer, limit int, onMessage func(level, text string), stepName string, stream bool) io.Writer {
	return &cappedWriter{buf: buf, limit: limit, onMessage: onMessage, stepName: stepName, stream: stream}
}

type cappedWriter struct {
	buf       *bytes.Buffer
	limit     int
	onMessage func(level, text string)
	stepName  string
	stream    bool
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	if w.stream && w.onMessage != nil {
		w.onMessage("info", strings.TrimRight(string(p), "\n"))
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}
