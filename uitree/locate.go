package uitree

// Find returns the first node with the given id in a depth-first pre-order
// walk of tree, or nil. When ids are duplicated, later copies are never
// reached.
func Find(tree *Node, id string) *Node {
	if tree == nil {
		return nil
	}
	if tree.ID == id {
		return tree
	}
	for _, c := range tree.Children {
		if found := Find(c, id); found != nil {
			return found
		}
	}
	return nil
}

// FindParent returns the parent of the node with the given id. It returns
// nil when id is the root or absent.
func FindParent(tree *Node, id string) *Node {
	if tree == nil {
		return nil
	}
	for _, c := range tree.Children {
		if c.ID == id {
			return tree
		}
		if found := FindParent(c, id); found != nil {
			return found
		}
	}
	return nil
}

// IsDescendant reports whether id lies within ancestor's subtree, ancestor
// itself included.
func IsDescendant(ancestor *Node, id string) bool {
	return Find(ancestor, id) != nil
}

// IndexOf returns the position of the child with the given id, or -1.
func IndexOf(parent *Node, id string) int {
	if parent == nil {
		return -1
	}
	for i, c := range parent.Children {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Walk visits every node in pre-order with its depth (the root is 0).
// Returning false from fn skips the node's children.
func Walk(tree *Node, fn func(n *Node, depth int) bool) {
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	if tree != nil {
		walk(tree, 0)
	}
}

// Count returns the number of nodes in tree.
func Count(tree *Node) int {
	n := 0
	Walk(tree, func(*Node, int) bool {
		n++
		return true
	})
	return n
}
