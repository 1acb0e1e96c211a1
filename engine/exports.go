package engine

import (
	"strings"

	"github.com/forgen-run/forgen/utils/exprenv"
	"github.com/forgen-run/forgen/utils/tmpl"
)

// evalExports computes a step's `exports` map against
// {result, step, status, ...variables}. A thrown error yields
// undefined (omitted) for that key only; other exports still run.
func evalExports(step *Step, result *StepResult, vars map[string]interface{}, projectRoot string, renderEngine *tmpl.Engine) map[string]interface{} {
	if len(step.Exports) == 0 {
		return nil
	}

	env := make(map[string]interface{}, len(vars)+3)
	for k, v := range vars {
		env[k] = v
	}
	var toolResult interface{} = result.ToolResult
	if toolResult == nil {
		toolResult = map[string]interface{}{}
	}
	env["result"] = toolResult
	env["step"] = step.Name
	env["status"] = string(result.Status)

	out := make(map[string]interface{}, len(step.Exports))
	for name, expression := range step.Exports {
		if exprenv.IsTemplateExpression(expression) {
			rendered, err := renderEngine.Render(expression, step.Name+"#exports."+name, &tmpl.State{
				ProjectRoot: projectRoot,
				Vars:        env,
			})
			if err != nil {
				continue
			}
			out[name] = strings.TrimSpace(rendered)
			continue
		}
		value := exprenv.EvalOrUndefined(expression, projectRoot, env)
		if value != nil {
			out[name] = value
		}
	}
	return out
}
