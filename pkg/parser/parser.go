// Package parser wraps tree-sitter for the object-oriented languages whose
// class structure can be summarized.
package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrSyntax is returned when the source does not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// Language represents a supported programming language.
type Language string

const (
	LangJava       Language = "java"
	LangCSharp     Language = "csharp"
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
	LangUnknown    Language = "unknown"
)

// Parser wraps tree-sitter. A Parser is not safe for concurrent use; create
// one per goroutine.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed AST and metadata.
type ParseResult struct {
	Tree     *sitter.Tree
	Language Language
	Source   []byte
	Path     string
}

// New creates a new parser instance.
func New() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

// Parse parses source with the given language. A tree containing error
// nodes is reported as ErrSyntax.
func (p *Parser) Parse(ctx context.Context, source []byte, lang Language, path string) (*ParseResult, error) {
	tsLang, err := GetTreeSitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	if tree.RootNode().HasError() {
		tree.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrSyntax)
	}

	return &ParseResult{
		Tree:     tree,
		Language: lang,
		Source:   source,
		Path:     path,
	}, nil
}

// Close releases the tree.
func (r *ParseResult) Close() {
	if r.Tree != nil {
		r.Tree.Close()
	}
}

// GetTreeSitterLanguage returns the tree-sitter language for a Language enum.
func GetTreeSitterLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangJava:
		return java.GetLanguage(), nil
	case LangCSharp:
		return csharp.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

// DetectLanguage determines the language from a file path.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".java":
		return LangJava
	case ".cs":
		return LangCSharp
	case ".py", ".pyi":
		return LangPython
	case ".ts", ".mts", ".cts":
		return LangTypeScript
	case ".tsx", ".jsx":
		return LangTSX
	case ".js", ".mjs", ".cjs":
		return LangJavaScript
	default:
		return LangUnknown
	}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// TypedNodeVisitor visits AST nodes with pre-cached node type to avoid CGO overhead.
type TypedNodeVisitor func(node *sitter.Node, nodeType string, source []byte) bool

// WalkTyped traverses the AST depth-first. Returning false skips the node's children.
func WalkTyped(node *sitter.Node, source []byte, visitor TypedNodeVisitor) {
	if node == nil {
		return
	}

	nodeType := node.Type()
	if !visitor(node, nodeType, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		WalkTyped(node.Child(i), source, visitor)
	}
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// ChildOfType returns the first direct child with the given type.
func ChildOfType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := range int(node.ChildCount()) {
		if child := node.Child(i); child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// SameNode reports whether a and b span the same bytes with the same type.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
