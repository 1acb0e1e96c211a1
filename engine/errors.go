package engine

import "fmt"

// Kind is the error taxonomy every fatal failure in the engine is
// classified under. It is a taxonomy, not a Go type hierarchy — every
// Error carries one Kind plus a subclass-style Code for
// ToolExecutionError-like cases (e.g. "Shell", "TemplateRender").
type Kind string

const (
	KindConfig         Kind = "ConfigError"
	KindDependency     Kind = "DependencyError"
	KindValidation     Kind = "ValidationError"
	KindToolExecution  Kind = "ToolExecutionError"
	KindAiTransport    Kind = "AiTransportError"
	KindTimeout        Kind = "Timeout"
	KindCancelled      Kind = "Cancelled"
	KindInternal       Kind = "Internal"
)

// Error is the engine's uniform error shape. Cause is unwrapped by
// errors.Is/errors.As via Unwrap.
type Error struct {
	Kind       Kind
	Code       string // subclass within Kind, e.g. "Shell" under ToolExecutionError
	Message    string
	Cause      error
	Context    map[string]interface{}
	Suggestion string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error, optionally wrapping cause.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ToolError builds a ToolExecutionError subclassed by code (the tool
// discriminant or a finer-grained operation name).
func ToolError(code, message string, cause error) *Error {
	return &Error{Kind: KindToolExecution, Code: code, Message: message, Cause: cause}
}

// WithSuggestion returns a copy of e with Suggestion set, used to
// attach the one-line remediation hint surfaced to the user on fatal
// failure.
func (e *Error) WithSuggestion(s string) *Error {
	c := *e
	c.Suggestion = s
	return &c
}

// WithContext attaches a context map, shallow-merged over any
// existing context.
func (e *Error) WithContext(ctx map[string]interface{}) *Error {
	c := *e
	merged := make(map[string]interface{}, len(c.Context)+len(ctx))
	for k, v := range c.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	c.Context = merged
	return &c
}
