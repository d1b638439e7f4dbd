package cohesion

import (
	"context"
	"slices"

	"github.com/panbanda/refmine/pkg/parser"
)

// InheritanceTree is the superclass graph of every parseable file in a tree.
type InheritanceTree struct {
	// classToParents maps class name to its direct superclass names
	classToParents map[string][]string
	// classToChildren maps class name to its direct subclass names
	classToChildren map[string][]string
}

// NewInheritanceTree returns an empty tree.
func NewInheritanceTree() *InheritanceTree {
	return &InheritanceTree{
		classToParents:  make(map[string][]string),
		classToChildren: make(map[string][]string),
	}
}

// Add records that class extends the given superclasses.
func (tree *InheritanceTree) Add(class string, parents ...string) {
	if class == "" {
		return
	}
	for _, parent := range parents {
		if parent == "" || parent == class || slices.Contains(tree.classToParents[class], parent) {
			continue
		}
		tree.classToParents[class] = append(tree.classToParents[class], parent)
		if !slices.Contains(tree.classToChildren[parent], class) {
			tree.classToChildren[parent] = append(tree.classToChildren[parent], class)
		}
	}
}

// DIT is the number of classes on the longest path from class to a root,
// counting the class itself. A class without superclasses has DIT 1.
func (tree *InheritanceTree) DIT(class string) int {
	return tree.calculateDepth(class, make(map[string]bool)) + 1
}

// calculateDepth recursively calculates inheritance depth, handling cycles.
func (tree *InheritanceTree) calculateDepth(class string, visited map[string]bool) int {
	if visited[class] {
		return 0
	}
	visited[class] = true
	defer delete(visited, class)

	parents := tree.classToParents[class]
	if len(parents) == 0 {
		return 0
	}

	maxParentDepth := 0
	for _, parent := range parents {
		maxParentDepth = max(maxParentDepth, tree.calculateDepth(parent, visited))
	}
	return maxParentDepth + 1
}

// NOC is the count of immediate subclasses.
func (tree *InheritanceTree) NOC(class string) int {
	return len(tree.classToChildren[class])
}

// BuildInheritance parses every supported path and collects superclass
// edges. Files that cannot be read or parsed are skipped.
func (a *Analyzer) BuildInheritance(ctx context.Context, paths []string, read func(path string) ([]byte, error)) (*InheritanceTree, error) {
	tree := NewInheritanceTree()
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lang := parser.DetectLanguage(p)
		if lang == parser.LangUnknown {
			continue
		}
		content, err := read(p)
		if err != nil {
			continue
		}
		if a.maxFileSize > 0 && int64(len(content)) > a.maxFileSize {
			continue
		}

		result, err := a.parser.Parse(ctx, content, lang, p)
		if err != nil {
			continue
		}
		for _, cls := range parser.GetClasses(result) {
			parents := make([]string, 0, len(cls.Superclasses))
			for _, s := range cls.Superclasses {
				parents = append(parents, parser.CleanTypeName(s))
			}
			tree.Add(cls.Name, parents...)
		}
		result.Close()
	}
	return tree, nil
}
