package tmpl

import (
	"fmt"
	"regexp"
	"strings"
)

var tagStartRe = regexp.MustCompile(`^@([a-zA-Z_][a-zA-Z0-9_]*)\(`)
var tagEndRe = regexp.MustCompile(`^@end\b`)

// Parse parses raw template source into a Document. sourceFile is
// stamped onto every TagNode for AI block provenance
// (AiBlockEntry.sourceFile).
func Parse(src, sourceFile string) (*Document, error) {
	p := &parser{src: src, sourceFile: sourceFile}
	nodes, err := p.parseNodes(true)
	if err != nil {
		return nil, err
	}
	return &Document{Nodes: nodes}, nil
}

type parser struct {
	src        string
	pos        int
	sourceFile string
}

// parseNodes consumes nodes until EOF (topLevel) or a matching @end.
func (p *parser) parseNodes(topLevel bool) ([]Node, error) {
	var nodes []Node
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			nodes = append(nodes, TextNode{Value: text.String()})
			text.Reset()
		}
	}

	for p.pos < len(p.src) {
		rest := p.src[p.pos:]

		if !topLevel && tagEndRe.MatchString(rest) {
			flush()
			p.pos += len("@end")
			return nodes, nil
		}

		if strings.HasPrefix(rest, "{{") {
			flush()
			node, err := p.parseInterp()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
			continue
		}

		if m := tagStartRe.FindStringSubmatch(rest); m != nil {
			flush()
			node, err := p.parseTag(m[1])
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
			continue
		}

		text.WriteByte(p.src[p.pos])
		p.pos++
	}

	flush()
	if !topLevel {
		return nil, fmt.Errorf("unterminated tag block: missing @end")
	}
	return nodes, nil
}

func (p *parser) parseInterp() (Node, error) {
	end := strings.Index(p.src[p.pos:], "}}")
	if end < 0 {
		return nil, fmt.Errorf("unterminated interpolation starting at offset %d", p.pos)
	}
	expr := strings.TrimSpace(p.src[p.pos+2 : p.pos+end])
	p.pos += end + 2
	return InterpNode{Expr: expr}, nil
}

func (p *parser) parseTag(name string) (Node, error) {
	// Skip "@name("
	openIdx := strings.Index(p.src[p.pos:], "(")
	if openIdx < 0 {
		return nil, fmt.Errorf("malformed tag @%s: missing '('", name)
	}
	argStart := p.pos + openIdx + 1
	closeIdx, err := findMatchingParen(p.src, argStart)
	if err != nil {
		return nil, fmt.Errorf("malformed tag @%s: %w", name, err)
	}
	rawArgs := p.src[argStart:closeIdx]
	p.pos = closeIdx + 1

	// A block tag is followed (after optional whitespace/newline) by
	// its body and a matching @end. Every tag in this language is a
	// block tag: `@tag(...) … @end`.
	children, err := p.parseNodes(false)
	if err != nil {
		return nil, fmt.Errorf("in @%s: %w", name, err)
	}

	return TagNode{Name: name, RawArgs: rawArgs, Children: children, Source: p.sourceFile}, nil
}

// findMatchingParen returns the index of the ')' matching the '('
// implicitly opened just before start, honoring nested
// parens/brackets (e.g. an object-literal argument) and quoted
// strings via an explicit bracket stack.
func findMatchingParen(src string, start int) (int, error) {
	stack := []byte{'('}
	var quote byte
	for i := start; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '{' || c == '[':
			stack = append(stack, c)
		case c == ')' || c == '}' || c == ']':
			if len(stack) == 0 {
				return 0, fmt.Errorf("unbalanced brackets in argument list")
			}
			top := stack[len(stack)-1]
			if !matchesBracket(top, c) {
				return 0, fmt.Errorf("mismatched bracket %q in argument list", c)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated argument list")
}

func matchesBracket(open, close byte) bool {
	switch open {
	case '(':
		return close == ')'
	case '{':
		return close == '}'
	case '[':
		return close == ']'
	}
	return false
}
