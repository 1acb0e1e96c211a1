package tool

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/forgen-run/forgen/engine"
	"github.com/forgen-run/forgen/utils/fileutil"
	"github.com/gobwas/glob"
)

func init() {
	engine.RegisterFactory(engine.ToolTemplate, func() engine.Tool { return &TemplateTool{} })
}

// TemplateParams is the Template step's tool-specific payload.
type TemplateParams struct {
	Template  string   `yaml:"template"`
	OutputDir string   `yaml:"outputDir"`
	Overwrite bool     `yaml:"overwrite"`
	Exclude   []string `yaml:"exclude"`
}

// TemplateTool renders a template file to its destination, following
// the naming and frontmatter rules of the automatic template
// processing pipeline (engine.RenderTemplateFile). A step whose
// `template` names a directory renders every file under it, minus
// `exclude` glob matches.
type TemplateTool struct{ Base }

func (t *TemplateTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p TemplateParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if p.Template == "" {
		return invalid("template requires a template path"), nil
	}
	return validOK(), nil
}

func (t *TemplateTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p TemplateParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding template params", err)
	}

	templatePath := fileutil.ResolveUnder(ctx.ProjectRoot, p.Template)
	info, err := os.Stat(templatePath)
	if err != nil {
		return nil, engine.ToolError("TemplateRender", "reading template path", err)
	}
	if info.IsDir() {
		return t.executeDir(templatePath, p, ctx)
	}

	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, engine.ToolError("TemplateRender", "reading template file", err)
	}

	return engine.RenderTemplateFile(templatePath, string(raw), engine.TemplateRenderOptions{
		OutputDir: p.OutputDir,
		Overwrite: p.Overwrite,
	}, ctx)
}

// executeDir renders every file under dir lexically, skipping exclude
// matches, and folds the per-file results into one StepResult.
func (t *TemplateTool) executeDir(dir string, p TemplateParams, ctx *engine.StepContext) (*engine.StepResult, error) {
	excludes := make([]glob.Glob, 0, len(p.Exclude))
	for _, pattern := range p.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, engine.NewError(engine.KindConfig, "compiling exclude glob "+pattern, err)
		}
		excludes = append(excludes, g)
	}

	var files []string
	err := filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		for _, g := range excludes {
			if g.Match(rel) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, engine.ToolError("TemplateRender", "walking template directory", err)
	}
	sort.Strings(files)

	combined := &engine.StepResult{
		Status:   engine.StatusCompleted,
		Metadata: map[string]interface{}{},
	}
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, engine.ToolError("TemplateRender", "reading "+path, err)
		}
		result, err := engine.RenderTemplateFile(path, string(raw), engine.TemplateRenderOptions{
			OutputDir: p.OutputDir,
			Overwrite: p.Overwrite,
		}, ctx)
		if err != nil {
			return nil, err
		}
		combined.FilesCreated = append(combined.FilesCreated, result.FilesCreated...)
		combined.FilesModified = append(combined.FilesModified, result.FilesModified...)
		if deferred, _ := result.Metadata["deferred"].(bool); deferred {
			combined.Metadata["deferred"] = true
		}
	}
	combined.ToolResult = map[string]interface{}{
		"templateName": filepath.Base(dir),
		"templatePath": dir,
		"engine":       "tmpl",
		"variables":    ctx.Variables,
	}
	return combined, nil
}
