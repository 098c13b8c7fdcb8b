// Package uitree holds the interface tree model together with the streaming
// builder, traversal helpers, structural mutations and edit history that
// operate on it.
package uitree

import "maps"

// Node is one element of a generated interface.
type Node struct {
	ID          string            `json:"id"`
	Kind        string            `json:"type"`
	StyleTokens string            `json:"styles"`
	Content     *string           `json:"content,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Children    []*Node           `json:"children,omitempty"`
}

// Clone returns a deep copy of n. The copy shares no storage with n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		ID:          n.ID,
		Kind:        n.Kind,
		StyleTokens: n.StyleTokens,
		Content:     cloneString(n.Content),
		Attributes:  maps.Clone(n.Attributes),
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// Text returns the content payload or "" when the node has none.
func (n *Node) Text() string {
	if n == nil || n.Content == nil {
		return ""
	}
	return *n.Content
}

// String is a convenience for building optional content values.
func String(s string) *string { return &s }

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
