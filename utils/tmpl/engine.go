package tmpl

import (
	"fmt"
	"strings"

	"github.com/forgen-run/forgen/utils/exprenv"
)

// State is the mutable render-time context threaded through a single
// Render call. It doubles as the two-pass AI protocol's ambient
// "state" object: Vars holds template variables (and, in Pass 1, the
// `state[key]` placeholders AI tags assign so unrelated template code
// can keep referencing the key), CollectMode selects Pass 1 vs Pass 2,
// and Answers holds the Pass-2 answer map.
type State struct {
	ProjectRoot string
	Vars        map[string]interface{}
	CollectMode bool
	Answers     map[string]string
}

// Get reads a variable, returning nil if unset — template rendering
// must never fail just because a variable is missing.
func (s *State) Get(name string) interface{} {
	if s.Vars == nil {
		return nil
	}
	return s.Vars[name]
}

// Set assigns a variable, used by AI tags to make answers/examples
// visible to subsequent `{{ key }}` references in the same template.
func (s *State) Set(name string, value interface{}) {
	if s.Vars == nil {
		s.Vars = map[string]interface{}{}
	}
	s.Vars[name] = value
}

// TagExtension implements one `@name(...) … @end` tag. It receives
// its own raw argument text and unrendered children — an extension
// that needs normal rendering of its children calls eng.RenderNodes
// itself, which is what lets AI tags skip rendering `@prompt`/`@output`
// children during Pass 2 without the core engine knowing anything
// about the AI protocol.
type TagExtension interface {
	Eval(tag TagNode, state *State, eng *Engine) (string, error)
}

// TagExtensionFunc adapts a plain function to TagExtension.
type TagExtensionFunc func(tag TagNode, state *State, eng *Engine) (string, error)

func (f TagExtensionFunc) Eval(tag TagNode, state *State, eng *Engine) (string, error) {
	return f(tag, state, eng)
}

// Engine renders parsed templates against a State, dispatching block
// tags to registered extensions and interpolations through the
// sandboxed expression evaluator.
type Engine struct {
	tags      map[string]TagExtension
	functions map[string]interface{}
}

// New creates an Engine with no tags registered beyond none; callers
// register AI tags (and any other extension) via RegisterTag.
func New() *Engine {
	return &Engine{
		tags:      map[string]TagExtension{},
		functions: map[string]interface{}{},
	}
}

// RegisterTag adds or replaces the extension handling @name blocks.
func (e *Engine) RegisterTag(name string, ext TagExtension) {
	e.tags[name] = ext
}

// RegisterFunction adds a callable to the global function registry,
// made available inside every `{{ expr }}` interpolation.
func (e *Engine) RegisterFunction(name string, fn interface{}) {
	e.functions[name] = fn
}

// Render parses src (if not already cached by the caller) and renders
// it against state. sourceFile is used for AI block provenance and
// error messages.
func (e *Engine) Render(src, sourceFile string, state *State) (string, error) {
	doc, err := Parse(src, sourceFile)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", sourceFile, err)
	}
	return e.RenderDocument(doc, state)
}

// RenderDocument renders an already-parsed Document.
func (e *Engine) RenderDocument(doc *Document, state *State) (string, error) {
	return e.RenderNodes(doc.Nodes, state)
}

// RenderNodes renders a node slice — exported so tag extensions can
// render their own children when they want normal (non-collecting)
// behavior.
func (e *Engine) RenderNodes(nodes []Node, state *State) (string, error) {
	var out strings.Builder
	for _, n := range nodes {
		switch node := n.(type) {
		case TextNode:
			out.WriteString(node.Value)
		case InterpNode:
			val, err := e.evalInterp(node.Expr, state)
			if err != nil {
				return "", err
			}
			out.WriteString(val)
		case TagNode:
			ext, ok := e.tags[node.Name]
			if !ok {
				return "", fmt.Errorf("unknown tag @%s in %s", node.Name, node.Source)
			}
			rendered, err := ext.Eval(node, state, e)
			if err != nil {
				return "", err
			}
			out.WriteString(rendered)
		default:
			return "", fmt.Errorf("unsupported node type %T", n)
		}
	}
	return out.String(), nil
}

func (e *Engine) evalInterp(expression string, state *State) (string, error) {
	env := exprenv.Env(state.ProjectRoot, state.Vars)
	for name, fn := range e.functions {
		env[name] = fn
	}
	result, err := evalInEnv(expression, env)
	if err != nil {
		// A missing variable must render as empty, not fail the whole
		// template; any other evaluation error is surfaced.
		if isUndefinedVarErr(err) {
			return "", nil
		}
		return "", fmt.Errorf("evaluating {{ %s }}: %w", expression, err)
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", result), nil
}
