package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/engine/progress"
	_ "github.com/forgen-run/forgen/engine/tool" // registers every built-in tool via init()
	"github.com/forgen-run/forgen/utils/ai"
	"github.com/forgen-run/forgen/utils/fileutil"
	"github.com/forgen-run/forgen/utils/tmpl"
	"github.com/spf13/cobra"
)

var (
	varFlags    []string
	workingDir  string
	dryRun      bool
	force       bool
	answersPath string
	skipPrompts bool
)

var processCmd = &cobra.Command{
	Use:   "process <recipe.yaml>",
	Short: "Run a recipe",
	Long:  `Execute a recipe's step graph against a project directory, rendering templates and running its tools in dependency order.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recipePath := args[0]

		stdinData := readStdinIfPiped()
		vars := parseVarsFlags(varFlags, stdinData)
		variables := make(map[string]interface{}, len(vars))
		for k, v := range vars {
			variables[k] = v
		}

		raw, err := os.ReadFile(recipePath)
		if err != nil {
			return fmt.Errorf("reading recipe %s: %w", recipePath, err)
		}
		content := expandPathsInYAML(string(raw))

		root := workingDir
		if root == "" {
			root = filepath.Dir(recipePath)
		}

		renderEngine := tmpl.New()
		collector := ai.NewCollector()
		ai.RegisterTags(renderEngine, collector)

		transport, err := ai.NewTransport(envConfig.Transport, envConfig)
		if err != nil {
			return fmt.Errorf("building AI transport: %w", err)
		}

		eng := engine.New(renderEngine, collector, transport)

		var answers map[string]string
		if answersPath != "" {
			answers, err = loadAnswersFile(answersPath)
			if err != nil {
				return fmt.Errorf("reading answers file %s: %w", answersPath, err)
			}
		}

		reporter := progress.New()
		recipeName := strings.TrimSuffix(filepath.Base(recipePath), filepath.Ext(recipePath))
		if verbose {
			reporter.StartRecipe(recipeName)
		}

		exec := eng.ExecuteRecipe(engine.RecipeSource{
			FilePath: recipePath,
			Content:  content,
			Name:     recipeName,
		}, engine.Options{
			Variables:   variables,
			WorkingDir:  root,
			SkipPrompts: skipPrompts,
			DryRun:      dryRun,
			Force:       force,
			Answers:     answers,
			EnvConfig:   envConfig,
			OnMessage: func(level, text string) {
				if level == "error" {
					fmt.Fprintln(os.Stderr, text)
				} else {
					fmt.Println(text)
				}
			},
			OnStepResult: func(result *engine.StepResult) {
				if verbose {
					reporter.StepResult(result)
				}
			},
		})
		if verbose && !exec.Deferred {
			reporter.FinishRecipe(exec)
		}

		return reportExecution(exec)
	},
}

func reportExecution(exec *engine.RecipeExecution) error {
	if exec.FatalError != nil {
		return exec.FatalError
	}
	if exec.Deferred {
		fmt.Println(exec.Message)
		return nil
	}

	fmt.Printf("\n%d steps: %d completed, %d failed, %d skipped\n",
		exec.Metadata.TotalSteps, exec.Metadata.CompletedSteps, exec.Metadata.FailedSteps, exec.Metadata.SkippedSteps)

	if !exec.Success {
		for _, r := range exec.StepResults {
			if r.Status == engine.StatusFailed && r.Error != nil {
				log.Printf("step %q failed: %v\n", r.StepName, r.Error)
			}
		}
		return fmt.Errorf("recipe run failed")
	}
	return nil
}

// parseVarsFlags turns a list of "key=value" CLI flags into a string
// map. A value of the literal string "STDIN" is replaced with
// stdinData so `--var content=STDIN` can thread piped input into a
// recipe variable. Flags without an "=" are silently skipped; only the
// first "=" splits key from value, so values may contain "=" of their
// own (e.g. a SQL query).
func parseVarsFlags(flags []string, stdinData string) map[string]string {
	out := map[string]string{}
	for _, flag := range flags {
		idx := strings.Index(flag, "=")
		if idx < 0 {
			continue
		}
		key := flag[:idx]
		value := flag[idx+1:]
		if value == "STDIN" {
			value = stdinData
		}
		out[key] = value
	}
	return out
}

// tildePathPattern matches a bare `~` or `~/...` token up to the next
// whitespace, the shape a tilde path takes inside a YAML scalar.
var tildePathPattern = regexp.MustCompile(`~(/\S*)?`)

// expandPathsInYAML tilde-expands every `~`/`~/...` path appearing
// anywhere in a recipe's raw YAML content (variable defaults, step
// parameters) before it's parsed, so recipes can reference paths like
// `~/projects/app` the way a user would type them at a shell.
func expandPathsInYAML(s string) string {
	return tildePathPattern.ReplaceAllStringFunc(s, func(match string) string {
		expanded, err := fileutil.ExpandPath(match)
		if err != nil {
			return match
		}
		return expanded
	})
}

// readStdinIfPiped reads all of stdin when it's a pipe or redirected
// file, returning "" when stdin is an interactive terminal (so a
// recipe run never blocks waiting on a tty that isn't there).
func readStdinIfPiped() string {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return ""
	}
	reader := bufio.NewReader(os.Stdin)
	var b strings.Builder
	for {
		chunk, err := reader.ReadString('\n')
		b.WriteString(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
	}
	return b.String()
}

// loadAnswersFile reads a resolved-answers file for the `--answers`
// flag: a JSON object, or a fallback KEY=VALUE-per-line format for
// hand-edited answer files.
func loadAnswersFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		out := make(map[string]string, len(obj))
		for k, v := range obj {
			if s, ok := v.(string); ok {
				out[k] = s
				continue
			}
			b, _ := json.Marshal(v)
			out[k] = string(b)
		}
		return out, nil
	}

	out := map[string]string{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		out[line[:idx]] = line[idx+1:]
	}
	return out, nil
}

func init() {
	processCmd.Flags().StringArrayVar(&varFlags, "var", nil, "set a recipe variable as key=value (repeatable); value \"STDIN\" is replaced with piped input")
	processCmd.Flags().StringVar(&workingDir, "working-dir", "", "project directory the recipe runs against (default: the recipe file's directory)")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what the recipe would do without writing files")
	processCmd.Flags().BoolVar(&force, "force", false, "overwrite existing files instead of skipping them")
	processCmd.Flags().StringVar(&answersPath, "answers", "", "path to a resolved-answers file from a previous deferred run")
	processCmd.Flags().BoolVar(&skipPrompts, "skip-prompts", false, "never block on interactive Prompt steps; use their defaults")
	rootCmd.AddCommand(processCmd)
}
