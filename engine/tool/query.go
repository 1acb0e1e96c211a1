package tool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/exprenv"
	"github.com/forgen-run/forgen/utils/fileutil"
	"gopkg.in/yaml.v3"
)

func init() {
	engine.RegisterFactory(engine.ToolQuery, func() engine.Tool { return &QueryTool{} })
}

// QueryParams is the Query step's tool-specific payload.
type QueryParams struct {
	File       string   `yaml:"file"`
	Format     string   `yaml:"format"` // json|yaml|toml|env; inferred from extension when empty
	Checks     []string `yaml:"checks"`
	Expression string   `yaml:"expression"`
}

// QueryCheckResult records one dot-path/expression check's outcome.
type QueryCheckResult struct {
	Check  string
	Passed bool
}

// QueryTool parses a structured data file (JSON/YAML/TOML/env) and
// evaluates checks/expression against it, using the same sandboxed
// expression evaluator as the condition language so query results can
// be threaded straight into a step's `exports`.
type QueryTool struct{ Base }

func (t *QueryTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p QueryParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if p.File == "" {
		return invalid("query requires a file"), nil
	}
	return validOK(), nil
}

func (t *QueryTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p QueryParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding query params", err)
	}

	path := fileutil.ResolveUnder(ctx.ProjectRoot, p.File)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.ToolError("Query", "reading "+path, err)
	}

	format := p.Format
	if format == "" {
		format = formatFromExt(path)
	}
	data, err := parseStructured(raw, format)
	if err != nil {
		return nil, engine.ToolError("Query", "parsing "+path+" as "+format, err)
	}

	env := map[string]interface{}{"data": data}
	if m, ok := data.(map[string]interface{}); ok {
		for k, v := range m {
			env[k] = v
		}
	}

	var checkResults []QueryCheckResult
	allPassed := true
	for _, check := range p.Checks {
		passed := exprenv.EvalBool(check, ctx.ProjectRoot, env)
		checkResults = append(checkResults, QueryCheckResult{Check: check, Passed: passed})
		if !passed {
			allPassed = false
		}
	}

	var exprValue interface{}
	if p.Expression != "" {
		exprValue = exprenv.EvalOrUndefined(p.Expression, ctx.ProjectRoot, env)
	}

	return &engine.StepResult{
		Status: engine.StatusCompleted,
		ToolResult: map[string]interface{}{
			"data":       data,
			"checks":     checkResults,
			"allPassed":  allPassed,
			"expression": exprValue,
		},
	}, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".env":
		return "env"
	default:
		return "json"
	}
}

func parseStructured(raw []byte, format string) (interface{}, error) {
	switch format {
	case "json":
		var out interface{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return normalizeMaps(out), nil
	case "yaml":
		var out interface{}
		if err := yaml.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return normalizeMaps(out), nil
	case "toml":
		var out map[string]interface{}
		if err := toml.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	case "env":
		return parseEnv(raw), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// normalizeMaps recursively converts map[interface{}]interface{}
// (as produced by some YAML decodes) and nested slices into plain
// map[string]interface{}, so expr-lang field access works uniformly
// regardless of source format.
func normalizeMaps(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = normalizeMaps(e)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[fmt.Sprintf("%v", k)] = normalizeMaps(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalizeMaps(e)
		}
		return out
	default:
		return val
	}
}

// parseEnv does a minimal KEY=VALUE parse (dotenv-style), skipping
// blank lines and '#' comments and trimming a single layer of quotes.
func parseEnv(raw []byte) map[string]interface{} {
	out := map[string]interface{}{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		value = strings.Trim(value, `"'`)
		out[key] = coerceEnvValue(value)
	}
	return out
}

func coerceEnvValue(s string) interface{} {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
