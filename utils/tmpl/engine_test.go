package tmpl

import "testing"

func TestRenderInterpolation(t *testing.T) {
	eng := New()
	state := &State{ProjectRoot: ".", Vars: map[string]interface{}{"name": "world"}}

	out, err := eng.Render("Hello {{ name }}!", "to.txt.jig", state)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "Hello world!" {
		t.Errorf("Render() = %q, want %q", out, "Hello world!")
	}
}

func TestRenderMissingVariableIsEmpty(t *testing.T) {
	eng := New()
	state := &State{ProjectRoot: ".", Vars: map[string]interface{}{}}

	out, err := eng.Render("value=[{{ missing }}]", "t.jig", state)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "value=[]" {
		t.Errorf("Render() = %q, want %q", out, "value=[]")
	}
}

func TestRenderCustomTag(t *testing.T) {
	eng := New()
	eng.RegisterTag("shout", TagExtensionFunc(func(tag TagNode, state *State, eng *Engine) (string, error) {
		inner, err := eng.RenderNodes(tag.Children, state)
		if err != nil {
			return "", err
		}
		upper := ""
		for _, r := range inner {
			if r >= 'a' && r <= 'z' {
				r -= 32
			}
			upper += string(r)
		}
		return upper, nil
	}))

	state := &State{ProjectRoot: "."}
	out, err := eng.Render("@shout() hi there @end", "t.jig", state)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != " HI THERE " {
		t.Errorf("Render() = %q, want %q", out, " HI THERE ")
	}
}

func TestRenderUnknownTagErrors(t *testing.T) {
	eng := New()
	state := &State{}
	if _, err := eng.Render("@bogus() x @end", "t.jig", state); err == nil {
		t.Error("expected an error for an unregistered tag")
	}
}

func TestParseObjectLiteralArgs(t *testing.T) {
	args, err := ParseArgs("{ key: 'body', typeHint: 'json' }")
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if v, _ := args.Get("key"); v != "body" {
		t.Errorf("key = %q, want %q", v, "body")
	}
	if v, _ := args.Get("typeHint"); v != "json" {
		t.Errorf("typeHint = %q, want %q", v, "json")
	}
}

func TestParseBareStringArgs(t *testing.T) {
	args, err := ParseArgs("'body'")
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if !args.IsBare || args.String != "body" {
		t.Errorf("got %+v, want bare string 'body'", args)
	}
}
