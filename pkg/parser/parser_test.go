package parser

import (
	"context"
	"errors"
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
		{"Main.java", LangJava},
		{"src/main/java/App.JAVA", LangJava},
		{"Program.cs", LangCSharp},
		{"script.py", LangPython},
		{"types.pyi", LangPython},
		{"app.ts", LangTypeScript},
		{"mod.mts", LangTypeScript},
		{"component.tsx", LangTSX},
		{"component.jsx", LangTSX},
		{"script.js", LangJavaScript},
		{"module.mjs", LangJavaScript},
		{"common.cjs", LangJavaScript},
		{"main.go", LangUnknown},
		{"README.md", LangUnknown},
		{"Makefile", LangUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := DetectLanguage(tt.path); got != tt.want {
				t.Errorf("DetectLanguage(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetTreeSitterLanguage(t *testing.T) {
	for _, lang := range []Language{LangJava, LangCSharp, LangPython, LangTypeScript, LangTSX, LangJavaScript} {
		if l, err := GetTreeSitterLanguage(lang); err != nil || l == nil {
			t.Errorf("GetTreeSitterLanguage(%s) = %v, %v", lang, l, err)
		}
	}
	if _, err := GetTreeSitterLanguage(LangUnknown); err == nil {
		t.Error("expected error for unknown language")
	}
}

func TestParse(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte("public class Main { void run() {} }\n")
	result, err := p.Parse(context.Background(), src, LangJava, "Main.java")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	defer result.Close()

	if result.Language != LangJava {
		t.Errorf("Language = %v, want %v", result.Language, LangJava)
	}
	if result.Path != "Main.java" {
		t.Errorf("Path = %q", result.Path)
	}
	if root := result.Tree.RootNode(); root.Type() != "program" {
		t.Errorf("root type = %q, want program", root.Type())
	}
}

func TestParse_SyntaxError(t *testing.T) {
	p := New()
	defer p.Close()

	_, err := p.Parse(context.Background(), []byte("public class {"), LangJava, "Broken.java")
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("Parse() error = %v, want ErrSyntax", err)
	}
}

func TestParse_UnsupportedLanguage(t *testing.T) {
	p := New()
	defer p.Close()

	if _, err := p.Parse(context.Background(), []byte("x"), LangUnknown, "x.txt"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParse_ReusesParserAcrossLanguages(t *testing.T) {
	p := New()
	defer p.Close()

	inputs := []struct {
		lang Language
		src  string
	}{
		{LangPython, "class A:\n    pass\n"},
		{LangJava, "class B {}\n"},
		{LangTypeScript, "class C { x: number = 1; }\n"},
	}
	for _, in := range inputs {
		result, err := p.Parse(context.Background(), []byte(in.src), in.lang, "f")
		if err != nil {
			t.Fatalf("%s: %v", in.lang, err)
		}
		result.Close()
	}
}

func TestWalkTyped(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte("class A:\n    def f(self):\n        return g(1)\n")
	result, err := p.Parse(context.Background(), src, LangPython, "a.py")
	if err != nil {
		t.Fatal(err)
	}
	defer result.Close()

	var calls, functions int
	WalkTyped(result.Tree.RootNode(), result.Source, func(node *sitter.Node, nodeType string, source []byte) bool {
		switch nodeType {
		case "call":
			calls++
			if got := GetNodeText(node.ChildByFieldName("function"), source); got != "g" {
				t.Errorf("call target = %q, want g", got)
			}
		case "function_definition":
			functions++
		}
		return true
	})
	if calls != 1 || functions != 1 {
		t.Errorf("calls=%d functions=%d, want 1 and 1", calls, functions)
	}

	// Returning false prunes the subtree.
	var seen int
	WalkTyped(result.Tree.RootNode(), result.Source, func(_ *sitter.Node, nodeType string, _ []byte) bool {
		if nodeType == "call" {
			seen++
		}
		return nodeType != "class_definition"
	})
	if seen != 0 {
		t.Errorf("pruned walk saw %d calls", seen)
	}

	WalkTyped(nil, nil, func(*sitter.Node, string, []byte) bool {
		t.Error("visitor called for nil node")
		return true
	})
}

func TestGetNodeText(t *testing.T) {
	if got := GetNodeText(nil, []byte("x")); got != "" {
		t.Errorf("GetNodeText(nil) = %q", got)
	}
}

func TestCleanTypeName(t *testing.T) {
	tests := map[string]string{
		"List<String>":           "List",
		"java.util.Map<K, V>":    "Map",
		"Foo[]":                  "Foo",
		"models.Base":            "Base",
		" Entity ":               "Entity",
		"Dictionary<string,int>": "Dictionary",
		"":                       "",
	}
	for in, want := range tests {
		if got := CleanTypeName(in); got != want {
			t.Errorf("CleanTypeName(%q) = %q, want %q", in, got, want)
		}
	}
}
