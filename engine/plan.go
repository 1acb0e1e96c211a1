package engine

import "fmt"

// Plan is the execution order the engine computed for a recipe's
// top-level steps: a topological ordering of the dependsOn graph.
type Plan struct {
	Order []string // step names, in execution order
}

// BuildPlan validates that step names are unique, that every
// dependsOn edge names a real step, that the graph is acyclic, and
// returns a topological ordering. Identical graphs always produce the
// same ordering (stable, by first-seen/declaration order).
func BuildPlan(steps []Step) (*Plan, error) {
	index := make(map[string]*Step, len(steps))
	order := make([]string, 0, len(steps))
	for i := range steps {
		name := steps[i].Name
		if name == "" {
			return nil, NewError(KindConfig, "step is missing a name", nil)
		}
		if _, dup := index[name]; dup {
			return nil, NewError(KindConfig, fmt.Sprintf("duplicate step name %q", name), nil)
		}
		index[name] = &steps[i]
		order = append(order, name)
	}
	for _, name := range order {
		for _, dep := range index[name].DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, NewError(KindDependency, fmt.Sprintf("step %q depends on unknown step %q", name, dep), nil)
			}
		}
	}

	visited := make(map[string]bool, len(steps))
	inStack := make(map[string]bool, len(steps))
	var sorted []string

	var visit func(name string) error
	visit = func(name string) error {
		if inStack[name] {
			return NewError(KindConfig, fmt.Sprintf("circular dependency detected involving step %q", name), nil)
		}
		if visited[name] {
			return nil
		}
		inStack[name] = true
		for _, dep := range index[name].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		inStack[name] = false
		visited[name] = true
		sorted = append(sorted, name)
		return nil
	}

	for _, name := range order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return &Plan{Order: sorted}, nil
}
