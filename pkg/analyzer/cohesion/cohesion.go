// Package cohesion computes class-level structural metrics from source text.
package cohesion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/panbanda/refmine/pkg/models"
	"github.com/panbanda/refmine/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

// Analyzer computes CK (Chidamber-Kemerer) style metrics for a file's primary class.
// An Analyzer owns a tree-sitter parser and is not safe for concurrent use.
type Analyzer struct {
	parser      *parser.Parser
	maxFileSize int64
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMaxFileSize sets the maximum file size to analyze (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(a *Analyzer) {
		a.maxFileSize = maxSize
	}
}

// New creates a new structural metrics analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		parser: parser.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Supported reports whether path is in a language with class summaries.
func Supported(path string) bool {
	return parser.DetectLanguage(path) != parser.LangUnknown
}

// Compute returns the structural metrics of the primary class in text.
// tree supplies DIT and NOC; pass nil when no cross-file view exists.
//
// Empty text, unsupported languages and oversized files yield the default
// result with a nil error. Parse failures and files without a class yield the
// default result and an error wrapping ErrUnparseable.
func (a *Analyzer) Compute(ctx context.Context, filePath string, text []byte, tree *InheritanceTree) (Result, error) {
	lang := parser.DetectLanguage(filePath)
	if lang == parser.LangUnknown || len(bytes.TrimSpace(text)) == 0 {
		return DefaultResult(), nil
	}
	if a.maxFileSize > 0 && int64(len(text)) > a.maxFileSize {
		return DefaultResult(), nil
	}

	result, err := a.parser.Parse(ctx, text, lang, filePath)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return DefaultResult(), err
		}
		return DefaultResult(), fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	defer result.Close()

	cls := primaryClass(parser.GetClasses(result), filePath)
	if cls == nil {
		return DefaultResult(), fmt.Errorf("%w: %s: no class declaration", ErrUnparseable, filePath)
	}

	res := Result{
		Class:       cls.Name,
		Language:    string(lang),
		Unsupported: unsupportedFields(tree != nil),
	}
	res.Metrics = classMetrics(cls, result)
	res.Metrics.ELOC = effectiveLines(text)
	if tree != nil {
		res.Metrics.DIT = tree.DIT(cls.Name)
		res.Metrics.NOC = tree.NOC(cls.Name)
	}
	return res, nil
}

// primaryClass picks the top-level class named after the file, else the
// first top-level class.
func primaryClass(classes []parser.ClassNode, filePath string) *parser.ClassNode {
	base := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	var first *parser.ClassNode
	for i := range classes {
		c := &classes[i]
		if !c.TopLevel {
			continue
		}
		if c.Name == base {
			return c
		}
		if first == nil {
			first = c
		}
	}
	return first
}

func classMetrics(cls *parser.ClassNode, result *parser.ParseResult) models.StructuralMetrics {
	var m models.StructuralMetrics
	var methods []parser.MethodNode

	calls := 0
	for _, method := range cls.Methods {
		if method.Constructor {
			continue
		}
		calls += countCallSites(method.Body, result)
		methods = append(methods, method)
		m.NOM++
		if method.Public {
			m.NOPM++
		}
		if method.Static {
			m.NOSM++
		}
		m.WMC += calculateNodeComplexity(method.Node)
	}

	for _, f := range cls.Fields {
		m.NOF++
		if f.Static {
			m.NOSF++
		}
		if f.Public {
			m.NOPF++
		}
	}

	m.RFC = m.NOM + calls
	m.CBO = len(coupledClasses(cls, result))
	m.HsLCOM = calculateHSLCOM(methods, cls.FieldNames(), result)
	return m
}

// effectiveLines counts non-blank lines.
func effectiveLines(text []byte) int {
	n := 0
	for _, line := range bytes.Split(text, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

func callNodeType(lang parser.Language) string {
	switch lang {
	case parser.LangJava:
		return "method_invocation"
	case parser.LangCSharp:
		return "invocation_expression"
	case parser.LangPython:
		return "call"
	default:
		return "call_expression"
	}
}

// countCallSites counts invocations inside a method body.
func countCallSites(body *sitter.Node, result *parser.ParseResult) int {
	callType := callNodeType(result.Language)
	count := 0
	parser.WalkTyped(body, result.Source, func(_ *sitter.Node, nodeType string, _ []byte) bool {
		if nodeType == callType {
			count++
		}
		return true
	})
	return count
}

// coupledClasses finds the distinct type names a class references.
func coupledClasses(cls *parser.ClassNode, result *parser.ParseResult) map[string]bool {
	coupled := make(map[string]bool)
	add := func(name string) {
		name = parser.CleanTypeName(name)
		if name != "" && name != cls.Name && len(name) > 1 && !isPrimitiveType(name) {
			coupled[name] = true
		}
	}
	for _, p := range cls.Superclasses {
		add(p)
	}
	for _, p := range cls.Interfaces {
		add(p)
	}

	parser.WalkTyped(cls.Node, result.Source, func(node *sitter.Node, nodeType string, src []byte) bool {
		switch result.Language {
		case parser.LangJava, parser.LangTypeScript, parser.LangTSX:
			if nodeType == "type_identifier" {
				add(parser.GetNodeText(node, src))
			}
		case parser.LangCSharp:
			if nodeType == "identifier" && isCSharpTypePosition(node) {
				add(parser.GetNodeText(node, src))
			}
		case parser.LangPython:
			if nodeType == "type" {
				parser.WalkTyped(node, src, func(n *sitter.Node, t string, s []byte) bool {
					if t == "identifier" {
						add(parser.GetNodeText(n, s))
					}
					return true
				})
				return false
			}
			if nodeType == "call" {
				if fn := node.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
					if name := parser.GetNodeText(fn, src); isCapitalized(name) {
						add(name)
					}
				}
			}
		}
		if nodeType == "new_expression" {
			if ctor := node.ChildByFieldName("constructor"); ctor != nil {
				add(parser.GetNodeText(ctor, src))
			}
		}
		return true
	})
	return coupled
}

var csharpTypeContainers = map[string]bool{
	"type_argument_list": true,
	"base_list":          true,
	"array_type":         true,
	"nullable_type":      true,
	"generic_name":       true,
	"pointer_type":       true,
}

func isCSharpTypePosition(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	if csharpTypeContainers[parent.Type()] {
		return true
	}
	return parser.SameNode(parent.ChildByFieldName("type"), node)
}

func isCapitalized(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

// primitiveTypes is a pre-allocated set of primitive type names.
var primitiveTypes = map[string]bool{
	"int": true, "float": true, "double": true, "decimal": true,
	"bool": true, "boolean": true, "Boolean": true,
	"string": true, "String": true, "str": true,
	"void": true, "None": true, "null": true, "undefined": true,
	"byte": true, "char": true, "short": true, "long": true,
	"any": true, "unknown": true, "never": true, "object": true, "Object": true,
	"number": true, "Number": true, "var": true, "dynamic": true,
	"true": true, "false": true,
	"self": true, "this": true, "super": true,
	"Integer": true, "Long": true, "Double": true, "Float": true, "Character": true,
}

func isPrimitiveType(name string) bool {
	return primitiveTypes[name]
}

// decisionTypes are the node types that add a path through a method.
var decisionTypes = map[string]bool{
	"if_statement":           true,
	"elif_clause":            true,
	"for_statement":          true,
	"enhanced_for_statement": true,
	"for_in_statement":       true,
	"foreach_statement":      true,
	"while_statement":        true,
	"do_statement":           true,
	"switch_label":           true,
	"switch_section":         true,
	"switch_case":            true,
	"case_clause":            true,
	"catch_clause":           true,
	"except_clause":          true,
	"conditional_expression": true,
	"ternary_expression":     true,
	"&&":                     true,
	"||":                     true,
	"??":                     true,
	"and":                    true,
	"or":                     true,
}

// calculateNodeComplexity calculates cyclomatic complexity for a node.
func calculateNodeComplexity(node *sitter.Node) int {
	complexity := 1
	parser.WalkTyped(node, nil, func(_ *sitter.Node, nodeType string, _ []byte) bool {
		if decisionTypes[nodeType] {
			complexity++
		}
		return true
	})
	return complexity
}

// calculateHSLCOM computes the Henderson-Sellers lack of cohesion:
// (mean methods-per-field - m) / (1 - m). It is 0 with fewer than two
// methods or no fields.
func calculateHSLCOM(methods []parser.MethodNode, fields []string, result *parser.ParseResult) float64 {
	m := len(methods)
	if m < 2 || len(fields) == 0 {
		return 0
	}

	fieldSet := make(map[string]bool, len(fields))
	for _, f := range fields {
		fieldSet[f] = true
	}

	accessors := make(map[string]int, len(fieldSet))
	for _, method := range methods {
		for f := range fieldsUsedBy(method.Body, fieldSet, result) {
			accessors[f]++
		}
	}

	var sum int
	for f := range fieldSet {
		sum += accessors[f]
	}
	mean := float64(sum) / float64(len(fieldSet))
	return (mean - float64(m)) / (1 - float64(m))
}

// fieldsUsedBy finds the class fields a method body touches.
func fieldsUsedBy(body *sitter.Node, fields map[string]bool, result *parser.ParseResult) map[string]bool {
	used := make(map[string]bool)
	parser.WalkTyped(body, result.Source, func(node *sitter.Node, nodeType string, src []byte) bool {
		switch result.Language {
		case parser.LangPython:
			if nodeType == "attribute" {
				obj := node.ChildByFieldName("object")
				attr := node.ChildByFieldName("attribute")
				if obj != nil && attr != nil && parser.GetNodeText(obj, src) == "self" {
					if name := parser.GetNodeText(attr, src); fields[name] {
						used[name] = true
					}
				}
			}
		case parser.LangJava, parser.LangCSharp:
			if nodeType == "identifier" {
				if name := parser.GetNodeText(node, src); fields[name] {
					used[name] = true
				}
			}
		default:
			if nodeType == "member_expression" {
				obj := node.ChildByFieldName("object")
				prop := node.ChildByFieldName("property")
				if obj != nil && prop != nil && obj.Type() == "this" {
					if name := parser.GetNodeText(prop, src); fields[name] {
						used[name] = true
					}
				}
			}
		}
		return true
	})
	return used
}

// Close releases resources.
func (a *Analyzer) Close() {
	if a.parser != nil {
		a.parser.Close()
	}
}
