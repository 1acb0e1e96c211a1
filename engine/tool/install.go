package tool

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forgen-run/forgen/engine"
)

func init() {
	engine.RegisterFactory(engine.ToolInstall, func() engine.Tool { return &InstallTool{} })
}

// InstallParams is the Install step's tool-specific payload.
type InstallParams struct {
	Packages       []string `yaml:"packages"`
	Dev            bool     `yaml:"dev"`
	Optional       bool     `yaml:"optional"`
	PackageManager string   `yaml:"packageManager"`
}

// InstallTool detects a Node package manager from lockfiles and runs
// its install command.
type InstallTool struct{ Base }

func (t *InstallTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p InstallParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if len(p.Packages) == 0 {
		return invalid("install requires at least one package"), nil
	}
	return validOK(), nil
}

func (t *InstallTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p InstallParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding install params", err)
	}

	manager := p.PackageManager
	if manager == "" {
		manager = detectPackageManager(ctx.ProjectRoot)
	}

	args := installArgs(manager, p.Packages, p.Dev)
	if ctx.DryRun {
		return &engine.StepResult{
			Status:     engine.StatusCompleted,
			ToolResult: map[string]interface{}{"packageManager": manager, "command": strings.Join(append([]string{manager}, args...), " "), "dryRun": true},
		}, nil
	}

	cmd := exec.Command(manager, args...)
	cmd.Dir = ctx.ProjectRoot
	out, runErr := cmd.CombinedOutput()

	if runErr != nil && !p.Optional {
		return nil, engine.ToolError("Install", "install failed via "+manager, runErr)
	}

	status := engine.StatusCompleted
	var stepErr error
	if runErr != nil {
		stepErr = engine.ToolError("Install", "install reported failure (optional, continuing)", runErr)
	}

	return &engine.StepResult{
		Status: status,
		Error:  stepErr,
		Output: string(out),
		ToolResult: map[string]interface{}{
			"packageManager": manager,
			"packages":       p.Packages,
			"output":         string(out),
		},
	}, nil
}

func detectPackageManager(root string) string {
	checks := []struct {
		lockfile string
		manager  string
	}{
		{"bun.lockb", "bun"},
		{"pnpm-lock.yaml", "pnpm"},
		{"yarn.lock", "yarn"},
		{"package-lock.json", "npm"},
	}
	for _, c := range checks {
		if _, err := os.Stat(filepath.Join(root, c.lockfile)); err == nil {
			return c.manager
		}
	}
	return "npm"
}

func installArgs(manager string, packages []string, dev bool) []string {
	switch manager {
	case "bun":
		args := append([]string{"add"}, packages...)
		if dev {
			args = append(args, "--dev")
		}
		return args
	case "pnpm":
		args := append([]string{"add"}, packages...)
		if dev {
			args = append(args, "--save-dev")
		}
		return args
	case "yarn":
		args := append([]string{"add"}, packages...)
		if dev {
			args = append(args, "--dev")
		}
		return args
	default: // npm
		args := append([]string{"install"}, packages...)
		if dev {
			args = append(args, "--save-dev")
		}
		return args
	}
}
