package parser

import (
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func TestNew(t *testing.T) {
	p := New()
	if p == nil {
		t.Fatal("New() returned nil")
	}
	if p.parser == nil {
		t.Error("parser field is nil")
	}
	p.Close()
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"main.c", LangC},
		{"include/header.h", LangC},
		{"main.cpp", LangCPP},
		{"header.hpp", LangCPP},
		{"MAIN.C", LangC},
		{"Header.HPP", LangCPP},

		// Not part of a source set
		{"main.cc", LangUnknown},
		{"main.cxx", LangUnknown},
		{"main.go", LangUnknown},
		{"topology.json", LangUnknown},
		{"Makefile", LangUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := DetectLanguage(tt.path)
			if got != tt.want {
				t.Errorf("DetectLanguage(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetTreeSitterLanguage(t *testing.T) {
	for _, lang := range []Language{LangC, LangCPP} {
		t.Run(string(lang), func(t *testing.T) {
			tsLang, err := GetTreeSitterLanguage(lang)
			if err != nil {
				t.Errorf("GetTreeSitterLanguage(%v) returned error: %v", lang, err)
			}
			if tsLang == nil {
				t.Errorf("GetTreeSitterLanguage(%v) returned nil", lang)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := GetTreeSitterLanguage(LangUnknown)
		if err == nil {
			t.Error("GetTreeSitterLanguage(LangUnknown) should return error")
		}
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		source string
		lang   Language
	}{
		{
			name:   "c function",
			source: "int main(void) {\n\treturn 0;\n}\n",
			lang:   LangC,
		},
		{
			name:   "cpp method",
			source: "class A {\npublic:\n  int get() { return 1; }\n};\n",
			lang:   LangCPP,
		},
	}

	p := New()
	defer p.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Parse([]byte(tt.source), tt.lang, "test.file")
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if result.Tree == nil {
				t.Fatal("result.Tree is nil")
			}
			if result.Language != tt.lang {
				t.Errorf("result.Language = %v, want %v", result.Language, tt.lang)
			}
			if result.Path != "test.file" {
				t.Errorf("result.Path = %v, want test.file", result.Path)
			}
			if result.Tree.RootNode().ChildCount() == 0 {
				t.Error("root node has no children")
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	tmpDir := t.TempDir()
	cFile := filepath.Join(tmpDir, "enclave.c")
	if err := os.WriteFile(cFile, []byte("void tick(void) {}\n"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	p := New()
	defer p.Close()

	result, err := p.ParseFile(cFile)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if result.Language != LangC {
		t.Errorf("result.Language = %v, want %v", result.Language, LangC)
	}

	if _, err := p.ParseFile(filepath.Join(tmpDir, "missing.c")); err == nil {
		t.Error("ParseFile() on missing file should return error")
	}

	txt := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ParseFile(txt); err == nil {
		t.Error("ParseFile() on unsupported extension should return error")
	}
}

func TestGetFunctions(t *testing.T) {
	source := `#include <stdio.h>

#pragma cle begin ORANGE
int get_a(void) {
    return 1;
}
#pragma cle end ORANGE

static char *make_name(int n)
{
    return NULL;
}

int (*pick(int k))(void) { return 0; }

void prototype_only(void);
`
	p := New()
	defer p.Close()

	result, err := p.Parse([]byte(source), LangC, "f.c")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	fns := GetFunctions(result)
	if len(fns) != 3 {
		t.Fatalf("GetFunctions() returned %d functions, want 3: %+v", len(fns), fns)
	}

	want := []struct {
		name      string
		startLine uint32
		endLine   uint32
	}{
		{"get_a", 4, 6},
		{"make_name", 9, 12},
		{"pick", 14, 14},
	}
	for i, w := range want {
		if fns[i].Name != w.name {
			t.Errorf("fns[%d].Name = %q, want %q", i, fns[i].Name, w.name)
		}
		if fns[i].StartLine() != w.startLine {
			t.Errorf("fns[%d].StartLine() = %d, want %d", i, fns[i].StartLine(), w.startLine)
		}
		if fns[i].EndLine() != w.endLine {
			t.Errorf("fns[%d].EndLine() = %d, want %d", i, fns[i].EndLine(), w.endLine)
		}
	}
	if fns[0].Start.Column != 0 {
		t.Errorf("fns[0].Start.Column = %d, want 0", fns[0].Start.Column)
	}
}

func TestGetFunctionsCPP(t *testing.T) {
	source := `namespace n {
int Counter::next() { return ++v; }
}
`
	p := New()
	defer p.Close()

	result, err := p.Parse([]byte(source), LangCPP, "c.cpp")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	fns := GetFunctions(result)
	if len(fns) != 1 {
		t.Fatalf("GetFunctions() returned %d functions, want 1", len(fns))
	}
	if fns[0].Name != "Counter::next" {
		t.Errorf("Name = %q, want Counter::next", fns[0].Name)
	}
}

func TestGetGlobalDeclarations(t *testing.T) {
	source := `#pragma cle begin PURPLE
double secret = 4.2;
#pragma cle end PURPLE
static int counter;
int *ptr, arr[4];
int helper(int);

int main(void) {
    int local = 0;
    return local;
}
`
	p := New()
	defer p.Close()

	result, err := p.Parse([]byte(source), LangC, "g.c")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	decls := GetGlobalDeclarations(result)
	var names []string
	for _, d := range decls {
		names = append(names, d.Name)
	}
	want := []string{"secret", "counter", "ptr", "arr"}
	if len(names) != len(want) {
		t.Fatalf("GetGlobalDeclarations() names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if decls[0].Start.Row != 1 {
		t.Errorf("secret Start.Row = %d, want 1", decls[0].Start.Row)
	}
}

func TestWalk(t *testing.T) {
	p := New()
	defer p.Close()

	result, err := p.Parse([]byte("int a(void) { return 1; }\nint b(void) { return 2; }\n"), LangC, "w.c")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	count := 0
	Walk(result.Tree.RootNode(), result.Source, func(node *sitter.Node, source []byte) bool {
		if node.Type() == "function_definition" {
			count++
			return false
		}
		return true
	})
	if count != 2 {
		t.Errorf("Walk visited %d function definitions, want 2", count)
	}

	Walk(nil, nil, func(*sitter.Node, []byte) bool {
		t.Error("visitor called for nil node")
		return true
	})
}

func TestFindNodesByType(t *testing.T) {
	p := New()
	defer p.Close()

	result, err := p.Parse([]byte("int x;\nint y;\nvoid f(void) {}\n"), LangC, "n.c")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	decls := FindNodesByType(result.Tree.RootNode(), result.Source, "declaration")
	if len(decls) != 2 {
		t.Errorf("FindNodesByType(declaration) = %d, want 2", len(decls))
	}
	if got := GetNodeText(decls[0], result.Source); got != "int x;" {
		t.Errorf("GetNodeText() = %q, want %q", got, "int x;")
	}
}

func TestGetNodeText(t *testing.T) {
	if got := GetNodeText(nil, []byte("abc")); got != "" {
		t.Errorf("GetNodeText(nil) = %q, want empty", got)
	}

	p := New()
	defer p.Close()
	result, err := p.Parse([]byte("int x;"), LangC, "t.c")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	// Source shorter than the node's byte range.
	if got := GetNodeText(result.Tree.RootNode(), []byte("in")); got != "" {
		t.Errorf("GetNodeText() with short source = %q, want empty", got)
	}
}
