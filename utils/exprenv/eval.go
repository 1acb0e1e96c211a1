// Package exprenv builds the sandboxed expression environment shared
// by the condition language (when/skip_if/exports) and the template
// engine's {{ expr }} interpolation. Both evaluate the same
// side-effect-free subset of expressions over a variable bag, backed
// by github.com/expr-lang/expr instead of a hand-rolled interpreter.
package exprenv

import (
	"os"
	"path/filepath"

	"github.com/expr-lang/expr"
)

// Env builds the evaluation environment for a given project root and
// variable bag, adding the fileExists/dirExists helper functions.
func Env(projectRoot string, vars map[string]interface{}) map[string]interface{} {
	env := make(map[string]interface{}, len(vars)+2)
	for k, v := range vars {
		env[k] = v
	}
	env["fileExists"] = func(path string) bool {
		return exists(projectRoot, path, false)
	}
	env["dirExists"] = func(path string) bool {
		return exists(projectRoot, path, true)
	}
	return env
}

func exists(root, path string, wantDir bool) bool {
	if path == "" {
		return false
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, path)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return false
	}
	return info.IsDir() == wantDir
}

// Eval compiles and runs expression against vars, resolving
// fileExists/dirExists relative to projectRoot.
func Eval(expression, projectRoot string, vars map[string]interface{}) (interface{}, error) {
	return expr.Eval(expression, Env(projectRoot, vars))
}

// EvalBool evaluates expression and coerces the result to bool. Any
// compile or runtime error, or a non-boolean result, yields false —
// the condition language never panics or throws at a step boundary.
func EvalBool(expression, projectRoot string, vars map[string]interface{}) bool {
	result, err := Eval(expression, projectRoot, vars)
	if err != nil {
		return false
	}
	b, ok := result.(bool)
	return ok && b
}

// EvalOrUndefined evaluates expression for use in `exports`, where a
// thrown error must yield an undefined result (nil) rather than abort
// the step.
func EvalOrUndefined(expression, projectRoot string, vars map[string]interface{}) interface{} {
	result, err := Eval(expression, projectRoot, vars)
	if err != nil {
		return nil
	}
	return result
}

// IsTemplateExpression reports whether s should be routed through the
// template engine (it contains "{{" or "@") rather than evaluated
// directly as a condition/export expression.
func IsTemplateExpression(s string) bool {
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '{' && s[i+1] == '{' {
			return true
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '@' {
			return true
		}
	}
	return false
}
