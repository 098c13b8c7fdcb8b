package uitree

import (
	"fmt"
	"maps"
)

// Position says where a moved node lands relative to its target.
type Position string

const (
	Inside Position = "inside"
	Before Position = "before"
	After  Position = "after"
)

// ParsePosition validates a position received from a transport.
func ParsePosition(s string) (Position, error) {
	switch p := Position(s); p {
	case Inside, Before, After:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPosition, s)
}

// Fields is a partial node update. Nil fields are left untouched.
type Fields struct {
	Kind        *string           `json:"type,omitempty"`
	StyleTokens *string           `json:"styles,omitempty"`
	Content     *string           `json:"content,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Empty reports whether f names no field at all.
func (f Fields) Empty() bool {
	return f.Kind == nil && f.StyleTokens == nil && f.Content == nil && f.Attributes == nil
}

func (f Fields) apply(n *Node) {
	if f.Kind != nil {
		n.Kind = *f.Kind
	}
	if f.StyleTokens != nil {
		n.StyleTokens = *f.StyleTokens
	}
	if f.Content != nil {
		n.Content = cloneString(f.Content)
	}
	if f.Attributes != nil {
		n.Attributes = maps.Clone(f.Attributes)
	}
}

// Patch returns a copy of tree with f applied to the node carrying id. When
// no such node exists the copy is returned unchanged. tree is never
// modified.
func Patch(tree *Node, id string, f Fields) *Node {
	out := tree.Clone()
	if target := Find(out, id); target != nil {
		f.apply(target)
	}
	return out
}

// Move relocates the subtree rooted at draggedID next to or inside targetID
// and returns the resulting tree. Whenever the move is not allowed it
// returns tree itself, so callers detect a rejection by pointer identity:
//   - dragged and target are the same node, or dragged is the root
//   - dragged is absent, or target is absent once dragged is detached
//   - target lies inside the dragged subtree
//   - a before/after move targets the root
//
// tree is never modified.
func Move(tree *Node, draggedID, targetID string, pos Position) *Node {
	if tree == nil || draggedID == targetID || draggedID == tree.ID {
		return tree
	}
	if pos != Inside && pos != Before && pos != After {
		return tree
	}

	out := tree.Clone()
	dragged, oldParent := findWithParent(out, nil, draggedID)
	if dragged == nil || oldParent == nil {
		return tree
	}
	if IsDescendant(dragged, targetID) {
		return tree
	}
	oldParent.Children = detach(oldParent.Children, dragged)

	target := Find(out, targetID)
	if target == nil {
		return tree
	}
	if pos == Inside {
		target.Children = append(target.Children, dragged)
		return out
	}

	parent := FindParent(out, targetID)
	if parent == nil {
		return tree
	}
	i := IndexOf(parent, targetID)
	if pos == After {
		i++
	}
	parent.Children = insertAt(parent.Children, i, dragged)
	return out
}

func findWithParent(n, parent *Node, id string) (*Node, *Node) {
	if n.ID == id {
		return n, parent
	}
	for _, c := range n.Children {
		if found, p := findWithParent(c, n, id); found != nil {
			return found, p
		}
	}
	return nil, nil
}

// detach removes child from children by identity.
func detach(children []*Node, child *Node) []*Node {
	out := make([]*Node, 0, len(children))
	for _, c := range children {
		if c != child {
			out = append(out, c)
		}
	}
	return out
}

func insertAt(children []*Node, i int, n *Node) []*Node {
	out := make([]*Node, 0, len(children)+1)
	out = append(out, children[:i]...)
	out = append(out, n)
	return append(out, children[i:]...)
}
