package engine

import "github.com/forgen-run/forgen/utils/exprenv"

// evalWhen evaluates a step's `when`/`skip_if` expression against the
// context's variables. An empty expression means "always run". Any
// parse or runtime error coerces to false, matching the condition
// sandbox's no-throw-at-step-boundary contract.
func evalWhen(expression string, ctx *StepContext) bool {
	if expression == "" {
		return true
	}
	return exprenv.EvalBool(expression, ctx.ProjectRoot, ctx.Variables)
}
