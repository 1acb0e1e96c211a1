package tool

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/fileutil"
	"gopkg.in/yaml.v3"
)

func init() {
	engine.RegisterFactory(engine.ToolPatch, func() engine.Tool { return &PatchTool{} })
}

// PatchParams is the Patch step's tool-specific payload.
type PatchParams struct {
	File            string                 `yaml:"file"`
	Format          string                 `yaml:"format"`
	Merge           map[string]interface{} `yaml:"merge"`
	CreateIfMissing *bool                  `yaml:"createIfMissing"`
	Indent          int                    `yaml:"indent"`
}

func (p PatchParams) createIfMissing() bool {
	if p.CreateIfMissing == nil {
		return true
	}
	return *p.CreateIfMissing
}

// PatchTool deep-merges structured data into an existing (or, by
// default, newly created) JSON/YAML/TOML file.
type PatchTool struct{ Base }

func (t *PatchTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p PatchParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if p.File == "" {
		return invalid("patch requires a file"), nil
	}
	if len(p.Merge) == 0 {
		return invalid("patch requires a non-empty merge object"), nil
	}
	return validOK(), nil
}

func (t *PatchTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p PatchParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding patch params", err)
	}

	path := fileutil.ResolveUnder(ctx.ProjectRoot, p.File)
	format := p.Format
	if format == "" {
		format = formatFromExt(path)
	}
	if format == "env" {
		return nil, engine.ToolError("Patch", "patch does not support the env format", nil)
	}

	existing := map[string]interface{}{}
	raw, err := os.ReadFile(path)
	created := false
	switch {
	case err == nil:
		parsed, parseErr := parseStructured(raw, format)
		if parseErr != nil {
			return nil, engine.ToolError("Patch", "parsing existing "+path, parseErr)
		}
		if m, ok := parsed.(map[string]interface{}); ok {
			existing = m
		}
	case os.IsNotExist(err):
		if !p.createIfMissing() {
			return nil, engine.ToolError("Patch", path+" does not exist and createIfMissing is false", err)
		}
		created = true
	default:
		return nil, engine.ToolError("Patch", "reading "+path, err)
	}

	merged := deepMerge(existing, p.Merge)

	out, err := serializeStructured(merged, format, p.Indent)
	if err != nil {
		return nil, engine.ToolError("Patch", "serializing merged "+format, err)
	}

	if ctx.DryRun {
		return &engine.StepResult{
			Status:     engine.StatusCompleted,
			ToolResult: map[string]interface{}{"data": merged, "dryRun": true},
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, engine.ToolError("Patch", "creating parent directory for "+path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return nil, engine.ToolError("Patch", "writing "+path, err)
	}

	result := &engine.StepResult{
		Status:     engine.StatusCompleted,
		ToolResult: map[string]interface{}{"data": merged},
	}
	if created {
		result.FilesCreated = []string{path}
	} else {
		result.FilesModified = []string{path}
	}
	return result, nil
}

// deepMerge merges patch into base, recursing into nested maps and
// letting patch's scalars/slices overwrite base's.
func deepMerge(base, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if patchMap, ok := v.(map[string]interface{}); ok {
			if baseMap, ok := out[k].(map[string]interface{}); ok {
				out[k] = deepMerge(baseMap, patchMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func serializeStructured(data map[string]interface{}, format string, indent int) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(data)
	case "toml":
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		if err := enc.Encode(data); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default: // json
		if indent <= 0 {
			indent = 2
		}
		return json.MarshalIndent(data, "", spaces(indent))
	}
}

func spaces(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	return string(out)
}
