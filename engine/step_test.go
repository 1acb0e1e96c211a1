package engine

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestStepUnmarshalSplitsHeaderAndParams(t *testing.T) {
	src := `
name: write-readme
tool: template
when: "fileExists('package.json')"
dependsOn: [scaffold]
retries: 2
template: readme.md.jig
outputDir: docs
`
	var s Step
	if err := yaml.Unmarshal([]byte(src), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if s.Name != "write-readme" || s.Tool != ToolTemplate || s.Retries != 2 {
		t.Fatalf("got %+v", s)
	}
	if len(s.DependsOn) != 1 || s.DependsOn[0] != "scaffold" {
		t.Errorf("DependsOn = %v", s.DependsOn)
	}
	if s.Params["template"] != "readme.md.jig" {
		t.Errorf("Params[template] = %v", s.Params["template"])
	}
	if _, leaked := s.Params["retries"]; leaked {
		t.Error("Params should not contain header fields")
	}

	var typed struct {
		Template  string `yaml:"template"`
		OutputDir string `yaml:"outputDir"`
	}
	if err := s.DecodeParams(&typed); err != nil {
		t.Fatalf("DecodeParams() error = %v", err)
	}
	if typed.Template != "readme.md.jig" || typed.OutputDir != "docs" {
		t.Errorf("typed = %+v", typed)
	}
}
