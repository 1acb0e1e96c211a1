package engine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/forgen-run/forgen/engine/ops"
	"github.com/forgen-run/forgen/utils/fileutil"
	"github.com/forgen-run/forgen/utils/tmpl"
	"gopkg.in/yaml.v3"
)

// TemplateRenderOptions is the subset of the Template step's payload
// that RenderTemplateFile needs; it lives in the engine package (rather
// than engine/tool, where the Template tool's full params struct
// lives) so both the explicit Template step and Automatic Template
// Processing can call the same renderer without an import cycle.
type TemplateRenderOptions struct {
	OutputDir string
	Overwrite bool
}

// templateFrontmatter is the optional YAML block at the top of a
// rendered template controlling its destination and injection
// behavior.
type templateFrontmatter struct {
	To      string `yaml:"to"`
	Inject  bool   `yaml:"inject"`
	Before  string `yaml:"before"`
	After   string `yaml:"after"`
	AtLine  int    `yaml:"at_line"`
	Prepend bool   `yaml:"prepend"`
	Append  bool   `yaml:"append"`
	SkipIf  string `yaml:"skip_if"`
	Force   bool   `yaml:"force"`
}

// RenderTemplateFile applies the naming and frontmatter rules shared
// by explicit Template steps and Automatic Template Processing to one
// template file's content, then writes (or skips, or defers) its
// destination.
func RenderTemplateFile(sourcePath, raw string, opts TemplateRenderOptions, ctx *StepContext) (*StepResult, error) {
	base := filepath.Base(sourcePath)
	var destName string
	var shouldRender bool

	switch {
	case strings.HasSuffix(base, ".jig.t"), strings.HasSuffix(base, ".jig"):
		shouldRender = true
		destName = strings.TrimSuffix(strings.TrimSuffix(base, ".jig.t"), ".jig")
	case strings.Contains(base, ".t."):
		shouldRender = true
		idx := strings.LastIndex(base, ".t.")
		destName = base[:idx] + base[idx+2:]
	default:
		shouldRender = false
		destName = base
	}

	fm, body := splitFrontmatter(raw)

	var rendered string
	deferred := false
	if shouldRender {
		before := 0
		if ctx.Collector != nil {
			before = len(ctx.Collector.Entries())
		}
		out, err := ctx.RenderEngine.Render(body, sourcePath, &tmpl.State{
			ProjectRoot: ctx.ProjectRoot,
			Vars:        ctx.Variables,
			CollectMode: ctx.CollectMode,
			Answers:     ctx.Answers,
		})
		if err != nil {
			return nil, ToolError("TemplateRender", "rendering template", err)
		}
		rendered = out
		if ctx.CollectMode && ctx.Collector != nil && len(ctx.Collector.Entries()) > before {
			deferred = true
		}
	} else {
		rendered = body
	}

	dest := fm.To
	if dest == "" {
		dest = destName
	}
	if fm.To != "" {
		renderedDest, err := ctx.RenderEngine.Render(fm.To, sourcePath+"#to", &tmpl.State{
			ProjectRoot: ctx.ProjectRoot,
			Vars:        ctx.Variables,
		})
		if err == nil {
			dest = renderedDest
		}
	}
	if opts.OutputDir != "" && !filepath.IsAbs(dest) {
		dest = filepath.Join(opts.OutputDir, dest)
	}
	dest = fileutil.ResolveUnder(ctx.ProjectRoot, dest)

	result := &StepResult{
		ToolResult: map[string]interface{}{
			"templateName": base,
			"templatePath": sourcePath,
			"engine":       "tmpl",
			"variables":    ctx.Variables,
		},
		Metadata: map[string]interface{}{},
	}

	if fm.SkipIf != "" {
		if evalSkipIf(fm.SkipIf, ctx) {
			result.Status = StatusCompleted
			result.Metadata["skipReason"] = "skip_if"
			return result, nil
		}
	}

	if deferred {
		// A Pass-1 render collected new AI entries: the real content
		// isn't known yet, so defer the write to the resolve pass.
		result.Status = StatusCompleted
		result.Metadata["deferred"] = true
		return result, nil
	}

	if ctx.DryRun {
		result.Status = StatusCompleted
		result.Metadata["dryRun"] = true
		result.FilesCreated = []string{dest}
		return result, nil
	}

	force := opts.Overwrite || fm.Force || ctx.Force || os.Getenv("HYPERGEN_OVERWRITE") != ""

	if fm.Inject {
		mode := ops.InjectAppend
		marker := ""
		switch {
		case fm.Before != "":
			mode, marker = ops.InjectBefore, fm.Before
		case fm.After != "":
			mode, marker = ops.InjectAfter, fm.After
		case fm.AtLine > 0:
			mode = ops.InjectAtLine
		case fm.Prepend:
			mode = ops.InjectPrepend
		case fm.Append:
			mode = ops.InjectAppend
		}
		injectResult, err := ops.Inject(dest, rendered, ops.InjectOptions{
			Mode: mode, Marker: marker, Line: fm.AtLine,
		})
		if err != nil {
			return nil, ToolError("Inject", "injecting content", err)
		}
		result.Status = StatusCompleted
		if injectResult.Modified {
			result.FilesModified = []string{dest}
		}
		return result, nil
	}

	addResult, err := ops.Add(dest, []byte(rendered), ops.AddOptions{Force: force, Overwrite: force})
	if err != nil {
		return nil, ToolError("FileWrite", "writing destination file", err)
	}
	result.Status = StatusCompleted
	if addResult.Skipped {
		result.Metadata["skipReason"] = addResult.Reason
		return result, nil
	}
	result.FilesCreated = []string{dest}
	return result, nil
}

func splitFrontmatter(raw string) (templateFrontmatter, string) {
	trimmed := strings.TrimLeft(raw, "\n")
	if !strings.HasPrefix(trimmed, "---") {
		return templateFrontmatter{}, raw
	}
	rest := strings.TrimPrefix(trimmed, "---")
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return templateFrontmatter{}, raw
	}
	yamlBlock := rest[:idx]
	body := rest[idx+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	var fm templateFrontmatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return templateFrontmatter{}, raw
	}
	return fm, body
}

func evalSkipIf(expression string, ctx *StepContext) bool {
	rendered, err := ctx.RenderEngine.Render("{{ "+expression+" }}", "skip_if", &tmpl.State{
		ProjectRoot: ctx.ProjectRoot,
		Vars:        ctx.Variables,
	})
	if err != nil {
		return false
	}
	return strings.TrimSpace(rendered) == "true"
}
