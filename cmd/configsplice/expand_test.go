package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/grokify/configsplice/pkg/confparse"
	"github.com/grokify/configsplice/pkg/splice"
)

func testResult() *confparse.Result {
	return &confparse.Result{
		Lines: []confparse.Line{
			{Text: "Listen 80", Pos: splice.Position{Name: "main.conf", Line: 1, Depth: 1}},
			{Text: "ServerName a", Pos: splice.Position{Name: "Splice vhosts (main.conf:2)", Line: 1, Depth: 2}},
		},
		Stats: splice.Stats{Injected: 1, Exhausted: 1, MaxDepth: 2},
	}
}

func TestRenderText(t *testing.T) {
	out, err := renderResult(testResult(), "text", false)
	if err != nil {
		t.Fatalf("renderResult failed: %v", err)
	}
	if out != "Listen 80\nServerName a\n" {
		t.Errorf("output = %q", out)
	}

	out, err = renderResult(testResult(), "text", true)
	if err != nil {
		t.Fatalf("renderResult failed: %v", err)
	}
	want := "main.conf:1: Listen 80\nSplice vhosts (main.conf:2):1: ServerName a\n"
	if out != want {
		t.Errorf("annotated output = %q, want %q", out, want)
	}
}

func TestRenderStructured(t *testing.T) {
	out, err := renderResult(testResult(), "json", false)
	if err != nil {
		t.Fatalf("renderResult failed: %v", err)
	}
	var fromJSON confparse.Result
	if err := json.Unmarshal([]byte(out), &fromJSON); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(fromJSON.Lines) != 2 || fromJSON.Stats.MaxDepth != 2 {
		t.Errorf("decoded = %+v", fromJSON)
	}

	out, err = renderResult(testResult(), "yaml", false)
	if err != nil {
		t.Fatalf("renderResult failed: %v", err)
	}
	if !strings.Contains(out, "max_depth: 2") {
		t.Errorf("yaml output missing stats:\n%s", out)
	}
	var fromYAML confparse.Result
	if err := yaml.Unmarshal([]byte(out), &fromYAML); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if fromYAML.Lines[1].Pos.Name != "Splice vhosts (main.conf:2)" {
		t.Errorf("decoded = %+v", fromYAML)
	}
}

func TestExpandFormat(t *testing.T) {
	tests := []struct {
		format, output, want string
		wantErr              bool
	}{
		{format: "", output: "", want: "text"},
		{format: "", output: "out.json", want: "json"},
		{format: "", output: "out.yml", want: "yaml"},
		{format: "", output: "out.conf", want: "text"},
		{format: "YAML", output: "out.json", want: "yaml"},
		{format: "xml", wantErr: true},
	}

	defer func(f, o string) { outputFormat, outputPath = f, o }(outputFormat, outputPath)

	for _, tt := range tests {
		outputFormat, outputPath = tt.format, tt.output
		got, err := expandFormat()
		if (err != nil) != tt.wantErr {
			t.Errorf("expandFormat(%q, %q) error = %v", tt.format, tt.output, err)
			continue
		}
		if got != tt.want {
			t.Errorf("expandFormat(%q, %q) = %q, want %q", tt.format, tt.output, got, tt.want)
		}
	}
}

func TestUnderRoot(t *testing.T) {
	root := t.TempDir()

	if !underRoot(filepath.Join(root, "a", "rows.ndjson"), root) {
		t.Error("file below root not detected")
	}
	if underRoot(filepath.Join(filepath.Dir(root), "other"), root) {
		t.Error("sibling reported as below root")
	}
	if underRoot(filepath.Join(root, "x"), "") {
		t.Error("empty root should match nothing")
	}
}
