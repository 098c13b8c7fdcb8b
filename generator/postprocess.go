package generator

import (
	"strings"

	"aether_architect/uitree"
)

// Summarize describes a settled tree: its title, size and depth. The title
// is the content of the first h1 in document order, falling back to the
// first h2.
func Summarize(tree *uitree.Node) Summary {
	var s Summary
	var h2 string
	uitree.Walk(tree, func(n *uitree.Node, depth int) bool {
		s.Nodes++
		s.Depth = max(s.Depth, depth+1)
		text := strings.TrimSpace(n.Text())
		switch {
		case n.Kind == "h1" && s.Title == "":
			s.Title = text
		case n.Kind == "h2" && h2 == "":
			h2 = text
		}
		return true
	})
	if s.Title == "" {
		s.Title = h2
	}
	return s
}
