package engine

import "testing"

func TestBuildPlanTopologicallyOrdersDependsOn(t *testing.T) {
	steps := []Step{
		{Name: "deploy", DependsOn: []string{"build", "test"}},
		{Name: "build"},
		{Name: "test", DependsOn: []string{"build"}},
	}
	plan, err := BuildPlan(steps)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	pos := map[string]int{}
	for i, name := range plan.Order {
		pos[name] = i
	}
	if pos["build"] > pos["test"] || pos["test"] > pos["deploy"] {
		t.Errorf("order = %v, want build before test before deploy", plan.Order)
	}
}

func TestBuildPlanIsDeterministicAcrossRuns(t *testing.T) {
	steps := []Step{
		{Name: "c", DependsOn: []string{"a"}},
		{Name: "a"},
		{Name: "b", DependsOn: []string{"a"}},
	}
	plan1, err := BuildPlan(steps)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	plan2, err := BuildPlan(steps)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if len(plan1.Order) != len(plan2.Order) {
		t.Fatalf("orders differ in length: %v vs %v", plan1.Order, plan2.Order)
	}
	for i := range plan1.Order {
		if plan1.Order[i] != plan2.Order[i] {
			t.Errorf("orders differ at %d: %v vs %v", i, plan1.Order, plan2.Order)
		}
	}
}

func TestBuildPlanRejectsCycle(t *testing.T) {
	steps := []Step{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	}
	if _, err := BuildPlan(steps); err == nil {
		t.Error("expected a cycle to be rejected")
	} else if engErr, ok := err.(*Error); !ok || engErr.Kind != KindConfig {
		t.Errorf("error = %v, want *Error{Kind: ConfigError}", err)
	}
}

func TestBuildPlanRejectsDuplicateStepNames(t *testing.T) {
	steps := []Step{{Name: "dup"}, {Name: "dup"}}
	if _, err := BuildPlan(steps); err == nil {
		t.Error("expected duplicate step names to be rejected")
	}
}

func TestBuildPlanRejectsUnknownDependency(t *testing.T) {
	steps := []Step{{Name: "a", DependsOn: []string{"ghost"}}}
	if _, err := BuildPlan(steps); err == nil {
		t.Error("expected an edge to an unknown step to be rejected")
	} else if engErr, ok := err.(*Error); !ok || engErr.Kind != KindDependency {
		t.Errorf("error = %v, want *Error{Kind: DependencyError}", err)
	}
}
