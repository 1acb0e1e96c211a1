package tmpl

import (
	"strings"

	"github.com/expr-lang/expr"
)

func evalInEnv(expression string, env map[string]interface{}) (interface{}, error) {
	return expr.Eval(expression, env)
}

// isUndefinedVarErr reports whether err looks like expr's "unknown
// name" compile error, which the two-pass protocol must tolerate: a
// Pass-2 render referencing a Pass-1-only variable renders empty
// instead of failing.
func isUndefinedVarErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unknown name") || strings.Contains(msg, "undefined")
}
