package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ClassNode is the summary of one class declaration.
type ClassNode struct {
	Name string
	Kind string
	// TopLevel is false for classes declared inside another class.
	TopLevel     bool
	StartLine    uint32
	EndLine      uint32
	Superclasses []string
	Interfaces   []string
	Methods      []MethodNode
	Fields       []FieldNode
	Node         *sitter.Node
}

// MethodNode is a method or constructor of a class.
type MethodNode struct {
	Name        string
	Constructor bool
	Public      bool
	Static      bool
	Node        *sitter.Node
	Body        *sitter.Node
}

// FieldNode is one field declaration, which may declare several names.
type FieldNode struct {
	Names  []string
	Public bool
	Static bool
}

// FieldNames returns every declared field name in declaration order.
func (c *ClassNode) FieldNames() []string {
	var names []string
	for _, f := range c.Fields {
		names = append(names, f.Names...)
	}
	return names
}

// GetClasses extracts every class declaration, outer classes first.
func GetClasses(result *ParseResult) []ClassNode {
	var classes []ClassNode
	collectClasses(result.Tree.RootNode(), result, false, &classes)
	return classes
}

func collectClasses(node *sitter.Node, result *ParseResult, nested bool, out *[]ClassNode) {
	for i := range int(node.NamedChildCount()) {
		child := node.NamedChild(i)
		if isClassNode(child.Type(), result.Language) {
			cls := extractClass(child, result, !nested)
			if cls.Name != "" {
				*out = append(*out, cls)
			}
			collectClasses(child, result, true, out)
			continue
		}
		collectClasses(child, result, nested, out)
	}
}

// isClassNode checks if a node type declares a class-like type.
func isClassNode(nodeType string, lang Language) bool {
	switch lang {
	case LangJava:
		return nodeType == "class_declaration" || nodeType == "interface_declaration" ||
			nodeType == "enum_declaration" || nodeType == "record_declaration"
	case LangCSharp:
		return nodeType == "class_declaration" || nodeType == "interface_declaration" ||
			nodeType == "struct_declaration" || nodeType == "record_declaration"
	case LangPython:
		return nodeType == "class_definition"
	case LangTypeScript, LangTSX, LangJavaScript:
		return nodeType == "class_declaration" || nodeType == "abstract_class_declaration" ||
			nodeType == "class"
	default:
		return false
	}
}

func extractClass(node *sitter.Node, result *ParseResult, topLevel bool) ClassNode {
	src := result.Source
	cls := ClassNode{
		Kind:      node.Type(),
		TopLevel:  topLevel,
		StartLine: node.StartPoint().Row + 1,
		EndLine:   node.EndPoint().Row + 1,
		Node:      node,
	}
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		cls.Name = GetNodeText(nameNode, src)
	}
	cls.Superclasses, cls.Interfaces = extractParents(node, result)

	body := node.ChildByFieldName("body")
	if body == nil {
		return cls
	}

	switch result.Language {
	case LangPython:
		extractPythonMembers(&cls, body, src)
	default:
		interfaceMembers := cls.Kind == "interface_declaration"
		extractMembers(&cls, body, result, interfaceMembers)
	}
	return cls
}

func extractMembers(cls *ClassNode, body *sitter.Node, result *ParseResult, interfaceMembers bool) {
	src := result.Source
	for i := range int(body.NamedChildCount()) {
		member := body.NamedChild(i)
		mods := modifierSet(member, src)
		switch member.Type() {
		case "enum_body_declarations":
			extractMembers(cls, member, result, interfaceMembers)

		case "method_declaration", "method_definition", "method_signature", "abstract_method_signature":
			m := MethodNode{
				Name:   GetNodeText(member.ChildByFieldName("name"), src),
				Static: mods["static"],
				Node:   member,
				Body:   member.ChildByFieldName("body"),
			}
			m.Public = isPublic(result.Language, m.Name, mods, interfaceMembers)
			if result.Language != LangJava && result.Language != LangCSharp && m.Name == "constructor" {
				m.Constructor = true
			}
			cls.Methods = append(cls.Methods, m)

		case "constructor_declaration", "compact_constructor_declaration":
			cls.Methods = append(cls.Methods, MethodNode{
				Name:        GetNodeText(member.ChildByFieldName("name"), src),
				Constructor: true,
				Public:      mods["public"],
				Node:        member,
				Body:        member.ChildByFieldName("body"),
			})

		case "field_declaration", "public_field_definition", "field_definition":
			names := fieldNames(member, src)
			if len(names) == 0 {
				continue
			}
			cls.Fields = append(cls.Fields, FieldNode{
				Names:  names,
				Public: isPublic(result.Language, names[0], mods, interfaceMembers),
				Static: mods["static"] || (interfaceMembers && result.Language == LangJava),
			})
		}
	}
}

func extractPythonMembers(cls *ClassNode, body *sitter.Node, src []byte) {
	classAttrs := make(map[string]bool)
	for i := range int(body.NamedChildCount()) {
		member := body.NamedChild(i)
		def := member
		var decorators []string
		if member.Type() == "decorated_definition" {
			for j := range int(member.NamedChildCount()) {
				if d := member.NamedChild(j); d.Type() == "decorator" {
					decorators = append(decorators, strings.TrimSpace(strings.TrimPrefix(GetNodeText(d, src), "@")))
				}
			}
			def = member.ChildByFieldName("definition")
			if def == nil {
				continue
			}
		}

		switch def.Type() {
		case "function_definition":
			name := GetNodeText(def.ChildByFieldName("name"), src)
			static := false
			for _, d := range decorators {
				if d == "staticmethod" || d == "classmethod" {
					static = true
				}
			}
			cls.Methods = append(cls.Methods, MethodNode{
				Name:        name,
				Constructor: name == "__init__",
				Public:      pythonPublic(name),
				Static:      static,
				Node:        def,
				Body:        def.ChildByFieldName("body"),
			})

		case "expression_statement":
			assign := ChildOfType(def, "assignment")
			if assign == nil {
				continue
			}
			left := assign.ChildByFieldName("left")
			if left == nil || left.Type() != "identifier" {
				continue
			}
			name := GetNodeText(left, src)
			classAttrs[name] = true
			cls.Fields = append(cls.Fields, FieldNode{
				Names:  []string{name},
				Public: pythonPublic(name),
				Static: true,
			})
		}
	}

	// Instance attributes are the self.x assignments made inside methods.
	seen := make(map[string]bool)
	for _, m := range cls.Methods {
		WalkTyped(m.Body, src, func(n *sitter.Node, nodeType string, s []byte) bool {
			if nodeType == "class_definition" || nodeType == "function_definition" {
				return false
			}
			if nodeType != "assignment" && nodeType != "augmented_assignment" {
				return true
			}
			left := n.ChildByFieldName("left")
			if name, ok := selfAttribute(left, s); ok && !classAttrs[name] && !seen[name] {
				seen[name] = true
				cls.Fields = append(cls.Fields, FieldNode{
					Names:  []string{name},
					Public: pythonPublic(name),
				})
			}
			return true
		})
	}
}

// selfAttribute returns x for a self.x node.
func selfAttribute(node *sitter.Node, src []byte) (string, bool) {
	if node == nil || node.Type() != "attribute" {
		return "", false
	}
	obj := node.ChildByFieldName("object")
	attr := node.ChildByFieldName("attribute")
	if obj == nil || attr == nil || GetNodeText(obj, src) != "self" {
		return "", false
	}
	return GetNodeText(attr, src), true
}

func pythonPublic(name string) bool {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return true
	}
	return !strings.HasPrefix(name, "_")
}

func isPublic(lang Language, name string, mods map[string]bool, interfaceMember bool) bool {
	switch lang {
	case LangJava:
		return mods["public"] || (interfaceMember && !mods["private"])
	case LangCSharp:
		return mods["public"] || (interfaceMember && !mods["private"])
	case LangTypeScript, LangTSX, LangJavaScript:
		return !mods["private"] && !mods["protected"] && !strings.HasPrefix(name, "#")
	default:
		return pythonPublic(name)
	}
}

// modifierSet collects modifier keywords attached directly to a declaration.
func modifierSet(node *sitter.Node, src []byte) map[string]bool {
	mods := make(map[string]bool)
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		switch child.Type() {
		case "modifiers", "modifier", "accessibility_modifier":
			if child.ChildCount() == 0 {
				mods[GetNodeText(child, src)] = true
				continue
			}
			WalkTyped(child, src, func(n *sitter.Node, _ string, s []byte) bool {
				if n.ChildCount() == 0 {
					mods[GetNodeText(n, s)] = true
				}
				return true
			})
		case "static", "public", "private", "protected", "readonly", "abstract":
			mods[child.Type()] = true
		}
	}
	return mods
}

func fieldNames(node *sitter.Node, src []byte) []string {
	var names []string
	switch node.Type() {
	case "public_field_definition":
		if n := node.ChildByFieldName("name"); n != nil {
			names = append(names, GetNodeText(n, src))
		}
	case "field_definition":
		if n := node.ChildByFieldName("property"); n != nil {
			names = append(names, GetNodeText(n, src))
		}
	default:
		declarators := node
		if decl := ChildOfType(node, "variable_declaration"); decl != nil {
			declarators = decl
		}
		for i := range int(declarators.NamedChildCount()) {
			d := declarators.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			name := d.ChildByFieldName("name")
			if name == nil {
				name = ChildOfType(d, "identifier")
			}
			if name != nil {
				names = append(names, GetNodeText(name, src))
			}
		}
	}
	return names
}

// extractParents returns the direct superclasses and implemented interfaces.
func extractParents(node *sitter.Node, result *ParseResult) (supers, ifaces []string) {
	src := result.Source
	switch result.Language {
	case LangJava:
		if sc := node.ChildByFieldName("superclass"); sc != nil {
			supers = append(supers, typeNames(sc, src)...)
		}
		if in := node.ChildByFieldName("interfaces"); in != nil {
			ifaces = append(ifaces, typeNames(in, src)...)
		}
		if ext := ChildOfType(node, "extends_interfaces"); ext != nil {
			ifaces = append(ifaces, typeNames(ext, src)...)
		}

	case LangCSharp:
		bases := node.ChildByFieldName("bases")
		if bases == nil {
			bases = ChildOfType(node, "base_list")
		}
		if bases == nil {
			break
		}
		for i := range int(bases.NamedChildCount()) {
			name := CleanTypeName(GetNodeText(bases.NamedChild(i), src))
			if name == "" {
				continue
			}
			// Only the first base of a class can be a class; I-prefixed names are interfaces.
			if i == 0 && node.Type() == "class_declaration" && !looksLikeInterface(name) {
				supers = append(supers, name)
			} else {
				ifaces = append(ifaces, name)
			}
		}

	case LangPython:
		args := node.ChildByFieldName("superclasses")
		if args == nil {
			break
		}
		for i := range int(args.NamedChildCount()) {
			arg := args.NamedChild(i)
			if arg.Type() != "identifier" && arg.Type() != "attribute" {
				continue
			}
			if name := CleanTypeName(GetNodeText(arg, src)); name != "" && name != "object" {
				supers = append(supers, name)
			}
		}

	case LangTypeScript, LangTSX, LangJavaScript:
		heritage := ChildOfType(node, "class_heritage")
		if heritage == nil {
			break
		}
		clauses := false
		for i := range int(heritage.NamedChildCount()) {
			clause := heritage.NamedChild(i)
			switch clause.Type() {
			case "extends_clause":
				clauses = true
				if v := clause.ChildByFieldName("value"); v != nil {
					supers = append(supers, CleanTypeName(GetNodeText(v, src)))
				} else if clause.NamedChildCount() > 0 {
					supers = append(supers, CleanTypeName(GetNodeText(clause.NamedChild(0), src)))
				}
			case "implements_clause":
				clauses = true
				ifaces = append(ifaces, typeNames(clause, src)...)
			}
		}
		if !clauses && heritage.NamedChildCount() > 0 {
			supers = append(supers, CleanTypeName(GetNodeText(heritage.NamedChild(0), src)))
		}
	}
	return supers, ifaces
}

// typeNames returns the outermost type names under node.
func typeNames(node *sitter.Node, src []byte) []string {
	var names []string
	WalkTyped(node, src, func(n *sitter.Node, nodeType string, s []byte) bool {
		switch nodeType {
		case "type_identifier", "scoped_type_identifier", "generic_type", "identifier", "nested_identifier":
			if name := CleanTypeName(GetNodeText(n, s)); name != "" {
				names = append(names, name)
			}
			return false
		}
		return true
	})
	return names
}

func looksLikeInterface(name string) bool {
	return len(name) > 1 && name[0] == 'I' && name[1] >= 'A' && name[1] <= 'Z'
}

// CleanTypeName strips generic arguments and qualification: java.util.List<String> -> List.
func CleanTypeName(name string) string {
	if i := strings.IndexAny(name, "<[("); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
