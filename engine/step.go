package engine

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// stepHeader mirrors Step's common fields for a first decode pass;
// kept as a separate type (not Step itself) so UnmarshalYAML can
// populate Step's unexported node field without infinite recursion.
type stepHeader struct {
	Name            string                 `yaml:"name"`
	Description     string                 `yaml:"description,omitempty"`
	Tool            ToolKind               `yaml:"tool"`
	When            string                 `yaml:"when,omitempty"`
	DependsOn       []string               `yaml:"dependsOn,omitempty"`
	Parallel        bool                   `yaml:"parallel,omitempty"`
	ContinueOnError bool                   `yaml:"continueOnError,omitempty"`
	TimeoutMS       int                    `yaml:"timeout,omitempty"`
	Retries         int                    `yaml:"retries,omitempty"`
	Variables       map[string]interface{} `yaml:"variables,omitempty"`
	Environment     map[string]string      `yaml:"environment,omitempty"`
	Exports         map[string]string      `yaml:"exports,omitempty"`
}

var headerKeys = map[string]bool{
	"name": true, "description": true, "tool": true, "when": true,
	"dependsOn": true, "parallel": true, "continueOnError": true,
	"timeout": true, "retries": true, "variables": true,
	"environment": true, "exports": true,
}

// UnmarshalYAML decodes a Step's common header with yaml's normal
// struct decoding, then captures every remaining key as the tool's
// raw payload — both as a generic map (Params, for tools that are
// happy with loosely-typed access) and as the original *yaml.Node
// (so a tool can Decode its own strict struct out of exactly its own
// fields without re-marshaling through interface{}).
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("step must be a mapping, got %v", node.Kind)
	}

	var hdr stepHeader
	if err := node.Decode(&hdr); err != nil {
		return fmt.Errorf("decoding step header: %w", err)
	}

	var all map[string]interface{}
	if err := node.Decode(&all); err != nil {
		return fmt.Errorf("decoding step payload: %w", err)
	}
	params := make(map[string]interface{}, len(all))
	for k, v := range all {
		if !headerKeys[k] {
			params[k] = v
		}
	}

	s.Name = hdr.Name
	s.Description = hdr.Description
	s.Tool = hdr.Tool
	s.When = hdr.When
	s.DependsOn = hdr.DependsOn
	s.Parallel = hdr.Parallel
	s.ContinueOnError = hdr.ContinueOnError
	s.TimeoutMS = hdr.TimeoutMS
	s.Retries = hdr.Retries
	s.Variables = hdr.Variables
	s.Environment = hdr.Environment
	s.Exports = hdr.Exports
	s.Params = params
	s.node = node

	return nil
}

// DecodeParams re-decodes the step's tool-specific fields into out
// (a pointer to a typed params struct), using the original YAML node
// so nested structures (e.g. Sequence's `steps: []Step`) decode with
// full fidelity rather than via map[string]interface{} round-tripping.
func (s *Step) DecodeParams(out interface{}) error {
	node, ok := s.node.(*yaml.Node)
	if !ok || node == nil {
		return fmt.Errorf("step %q has no backing YAML node", s.Name)
	}
	return node.Decode(out)
}
