package tool

import (
	"fmt"
	"regexp"

	"github.com/forgen-run/forgen/engine"
)

func init() {
	engine.RegisterFactory(engine.ToolAction, func() engine.Tool { return &ActionTool{} })
}

// ActionParam describes one declared parameter of a registered action.
type ActionParam struct {
	Name     string
	Type     string // string|number|boolean|enum|array|object|file|directory
	Required bool
	Default  interface{}
	Pattern  string
	Enum     []string
}

// ActionContext is what a registered action receives: declared
// variables, the project root, the dry-run/force flags, a logger, and
// the run-scoped Communication channel (send/receive/shared data).
type ActionContext struct {
	Variables     map[string]interface{}
	ProjectRoot   string
	DryRun        bool
	Force         bool
	Log           func(level, text string)
	Communication *engine.Communication
}

// ActionResult is what a registered action returns.
type ActionResult struct {
	Success       bool
	Message       string
	FilesCreated  []string
	FilesModified []string
	FilesDeleted  []string
	Data          map[string]interface{}
}

// ActionFunc is a registered action's implementation.
type ActionFunc func(ctx ActionContext, params map[string]interface{}) (ActionResult, error)

// ActionDescriptor names an action's metadata, used by Validate to
// coerce and check declared parameters before Execute runs.
type ActionDescriptor struct {
	Name        string
	Description string
	Parameters  []ActionParam
	Category    string
	Tags        []string
	Run         ActionFunc
}

var actionRegistry = map[string]ActionDescriptor{}

// RegisterAction adds an action to the open, name-keyed registry.
func RegisterAction(d ActionDescriptor) {
	actionRegistry[d.Name] = d
}

// ActionParams is the Action step's tool-specific payload.
type ActionParams struct {
	Action     string                 `yaml:"action"`
	Parameters map[string]interface{} `yaml:"parameters"`
	DryRun     bool                   `yaml:"dryRun"`
	Force      bool                   `yaml:"force"`
}

// ActionTool invokes a registered action by name.
type ActionTool struct{ Base }

func (t *ActionTool) Validate(step *engine.Step, ctx *engine.StepContext) (engine.ValidationResult, error) {
	var p ActionParams
	if err := step.DecodeParams(&p); err != nil {
		return invalid(err.Error()), nil
	}
	if p.Action == "" {
		return invalid("action requires an action name"), nil
	}
	descriptor, ok := actionRegistry[p.Action]
	if !ok {
		return invalid(fmt.Sprintf("action %q is not registered", p.Action)), nil
	}
	var errs []string
	for _, param := range descriptor.Parameters {
		value, present := p.Parameters[param.Name]
		if !present {
			if param.Required {
				errs = append(errs, fmt.Sprintf("missing required parameter %q", param.Name))
			}
			continue
		}
		if err := checkParamValue(param, value); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return engine.ValidationResult{IsValid: false, Errors: errs}, nil
	}
	return validOK(), nil
}

// checkParamValue validates one given parameter value against its
// declared type, enum, and pattern.
func checkParamValue(param ActionParam, value interface{}) error {
	switch param.Type {
	case "string", "enum", "file", "directory":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("parameter %q must be a string, got %T", param.Name, value)
		}
		if len(param.Enum) > 0 {
			found := false
			for _, allowed := range param.Enum {
				if allowed == s {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("parameter %q must be one of %v, got %q", param.Name, param.Enum, s)
			}
		}
		if param.Pattern != "" {
			re, err := regexp.Compile(param.Pattern)
			if err != nil {
				return fmt.Errorf("parameter %q has an invalid pattern: %v", param.Name, err)
			}
			if !re.MatchString(s) {
				return fmt.Errorf("parameter %q value %q does not match %s", param.Name, s, param.Pattern)
			}
		}
	case "number":
		switch value.(type) {
		case int, int64, float64:
		default:
			return fmt.Errorf("parameter %q must be a number, got %T", param.Name, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("parameter %q must be a boolean, got %T", param.Name, value)
		}
	case "array":
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("parameter %q must be an array, got %T", param.Name, value)
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("parameter %q must be an object, got %T", param.Name, value)
		}
	}
	return nil
}

func (t *ActionTool) Execute(step *engine.Step, ctx *engine.StepContext) (*engine.StepResult, error) {
	var p ActionParams
	if err := step.DecodeParams(&p); err != nil {
		return nil, engine.NewError(engine.KindConfig, "decoding action params", err)
	}
	descriptor, ok := actionRegistry[p.Action]
	if !ok {
		return nil, engine.ToolError("Action", fmt.Sprintf("action %q is not registered", p.Action), nil)
	}

	params := coerceParams(descriptor.Parameters, p.Parameters)
	result, err := descriptor.Run(ActionContext{
		Variables:     ctx.Variables,
		ProjectRoot:   ctx.ProjectRoot,
		DryRun:        p.DryRun || ctx.DryRun,
		Force:         p.Force || ctx.Force,
		Log:           ctx.OnMessage,
		Communication: ctx.Communication,
	}, params)
	if err != nil {
		return nil, engine.ToolError("Action", "action "+p.Action+" failed", err)
	}

	status := engine.StatusCompleted
	if !result.Success && !step.ContinueOnError {
		status = engine.StatusFailed
	}

	stepResult := &engine.StepResult{
		Status:        status,
		FilesCreated:  result.FilesCreated,
		FilesModified: result.FilesModified,
		FilesDeleted:  result.FilesDeleted,
		Output:        result.Message,
		ToolResult: map[string]interface{}{
			"success": result.Success, "message": result.Message, "data": result.Data,
		},
	}
	if !result.Success {
		stepResult.Error = engine.ToolError("Action", result.Message, nil)
	}
	return stepResult, nil
}

func coerceParams(declared []ActionParam, given map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(given))
	for k, v := range given {
		out[k] = v
	}
	for _, param := range declared {
		if _, present := out[param.Name]; !present && param.Default != nil {
			out[param.Name] = param.Default
		}
	}
	return out
}
