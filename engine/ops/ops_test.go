package ops

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddCreatesFileAndParents(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "nested", "dir", "file.txt")

	result, err := Add(dest, []byte("content"), AddOptions{})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !result.Written || result.Skipped {
		t.Errorf("result = %+v, want written", result)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading created file: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("content = %q", data)
	}
}

func TestAddSkipsExistingWithoutForce(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "file.txt")
	if err := os.WriteFile(dest, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Add(dest, []byte("replacement"), AddOptions{})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !result.Skipped || result.Reason != "exists" {
		t.Errorf("result = %+v, want skipped with reason exists", result)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "original" {
		t.Errorf("existing file was modified: %q", data)
	}

	result, err = Add(dest, []byte("replacement"), AddOptions{Force: true})
	if err != nil {
		t.Fatalf("Add() with force error = %v", err)
	}
	if !result.Written {
		t.Errorf("result = %+v, want written with force", result)
	}
	data, _ = os.ReadFile(dest)
	if string(data) != "replacement" {
		t.Errorf("forced write content = %q", data)
	}
}

func TestInjectAfterMarkerIsIdempotent(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "routes.txt")
	if err := os.WriteFile(dest, []byte("# routes\nhome\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := InjectOptions{Mode: InjectAfter, Marker: "# routes\n"}
	result, err := Inject(dest, "about\n", opts)
	if err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if !result.Modified {
		t.Error("first injection should modify the file")
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "# routes\nabout\nhome\n" {
		t.Errorf("content after inject = %q", data)
	}

	result, err = Inject(dest, "about\n", opts)
	if err != nil {
		t.Fatalf("second Inject() error = %v", err)
	}
	if result.Modified {
		t.Error("second injection of the same content should be a no-op")
	}
	data, _ = os.ReadFile(dest)
	if string(data) != "# routes\nabout\nhome\n" {
		t.Errorf("content after repeated inject = %q", data)
	}
}

func TestInjectBeforeMissingMarkerErrors(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "file.txt")
	if err := os.WriteFile(dest, []byte("body\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Inject(dest, "x\n", InjectOptions{Mode: InjectBefore, Marker: "no-such-marker"})
	if err == nil {
		t.Error("expected an error for a missing marker")
	}
}

func TestInjectAtLineInsertsAtOneBasedLine(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "file.txt")
	if err := os.WriteFile(dest, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Inject(dest, "inserted", InjectOptions{Mode: InjectAtLine, Line: 2})
	if err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if !result.Modified {
		t.Error("expected modification")
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "one\ninserted\ntwo\nthree\n" {
		t.Errorf("content = %q", data)
	}
}

func TestInjectPrependAndAppend(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "file.txt")
	if err := os.WriteFile(dest, []byte("middle\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Inject(dest, "top\n", InjectOptions{Mode: InjectPrepend}); err != nil {
		t.Fatalf("prepend error = %v", err)
	}
	if _, err := Inject(dest, "bottom\n", InjectOptions{Mode: InjectAppend}); err != nil {
		t.Fatalf("append error = %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "top\nmiddle\nbottom\n" {
		t.Errorf("content = %q", data)
	}
}
