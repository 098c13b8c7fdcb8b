package uitree

import (
	"strings"
)

// Builder folds a stream of NDJSON fragments into a tree. It keeps the
// unterminated tail of the input and every accepted descriptor, and rebuilds
// the whole tree from the descriptor list after each accepted record, so
// children that arrive before their parent attach once the parent shows up.
//
// A Builder serves exactly one generation pass and is not safe for
// concurrent use.
type Builder struct {
	buf      string
	descs    []Descriptor
	index    map[string]int
	last     *Node
	accepted int
	skipped  int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// Reset discards the buffer, the accumulated descriptors and the last tree.
func (b *Builder) Reset() {
	*b = Builder{index: make(map[string]int)}
}

// Ingest consumes one fragment. When at least one record was accepted and
// the resulting tree has a root, it returns a snapshot of that tree.
func (b *Builder) Ingest(fragment string) (*Node, bool) {
	b.buf += fragment
	lines := strings.Split(b.buf, "\n")
	b.buf = lines[len(lines)-1]

	derived := false
	for _, line := range lines[:len(lines)-1] {
		if b.acceptLine(line) {
			derived = true
		}
	}
	if !derived {
		return nil, false
	}
	return b.last.Clone(), true
}

// Finish gives the buffered remainder one last decode attempt and returns
// the settled tree. It fails with ErrEmptyGeneration when no tree was ever
// derived during the pass.
func (b *Builder) Finish() (*Node, error) {
	rest := b.buf
	b.buf = ""
	b.acceptLine(rest)
	if b.last == nil {
		return nil, ErrEmptyGeneration
	}
	return b.last.Clone(), nil
}

// Snapshot returns a copy of the most recently derived tree, or nil.
func (b *Builder) Snapshot() *Node {
	return b.last.Clone()
}

// Descriptors returns a copy of the accumulated descriptor list.
func (b *Builder) Descriptors() []Descriptor {
	out := make([]Descriptor, len(b.descs))
	copy(out, b.descs)
	return out
}

// Accepted is the number of records folded in, overwrites included.
func (b *Builder) Accepted() int { return b.accepted }

// Skipped is the number of non-blank lines that were dropped.
func (b *Builder) Skipped() int { return b.skipped }

// acceptLine reports whether line was accepted and produced a rooted tree.
func (b *Builder) acceptLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "```") {
		return false
	}
	d, err := DecodeDescriptor([]byte(line))
	if err != nil {
		b.skipped++
		return false
	}
	return b.add(d)
}

// add records d and rebuilds. A record with a known id replaces the earlier
// one at its original position: last write wins. The last rooted tree is
// kept when a rebuild finds no root.
func (b *Builder) add(d Descriptor) bool {
	if i, ok := b.index[d.ID]; ok {
		b.descs[i] = d
	} else {
		b.index[d.ID] = len(b.descs)
		b.descs = append(b.descs, d)
	}
	b.accepted++
	root := Derive(b.descs)
	if root == nil {
		return false
	}
	b.last = root
	return true
}

// Derive materializes a tree from descriptors in list order. Each node is
// appended to its parent's children in the order the descriptors appear;
// nodes whose parent is unknown stay unattached. When several descriptors
// claim the root, the last one wins. Derive returns nil when there is no
// root candidate. Repeated ids are resolved in favour of the last
// descriptor carrying them.
//
// Only nodes reachable from the root are part of the result, so parent
// cycles among unattached descriptors never surface.
func Derive(descs []Descriptor) *Node {
	nodes := make(map[string]*Node, len(descs))
	owner := make(map[string]int, len(descs))
	for i, d := range descs {
		nodes[d.ID] = d.node()
		owner[d.ID] = i
	}
	var root *Node
	for i, d := range descs {
		if owner[d.ID] != i {
			continue
		}
		n := nodes[d.ID]
		if d.IsRoot() {
			root = n
			continue
		}
		if d.ParentID == d.ID {
			continue
		}
		if parent, ok := nodes[d.ParentID]; ok {
			parent.Children = append(parent.Children, n)
		}
	}
	return root
}
