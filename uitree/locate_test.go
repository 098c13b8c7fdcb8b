package uitree

import "testing"

func TestFind(t *testing.T) {
	tree := sampleTree()
	for _, id := range []string{"1", "2", "4", "6", "7"} {
		if n := Find(tree, id); n == nil || n.ID != id {
			t.Errorf("Find(%q) = %v", id, n)
		}
	}
	if n := Find(tree, "missing"); n != nil {
		t.Errorf("Find(missing) = %v, want nil", n)
	}
	if n := Find(nil, "1"); n != nil {
		t.Errorf("Find(nil) = %v, want nil", n)
	}
}

func TestFindFirstMatchWins(t *testing.T) {
	tree := &Node{ID: "r", Children: []*Node{
		{ID: "a", Kind: "first", Children: []*Node{{ID: "d", Kind: "deep"}}},
		{ID: "d", Kind: "shallow"},
	}}
	if k := Find(tree, "d").Kind; k != "deep" {
		t.Errorf("Find picked %q, want the pre-order first match", k)
	}
}

func TestFindParent(t *testing.T) {
	tree := sampleTree()
	tests := map[string]string{"2": "1", "3": "1", "4": "3", "6": "5"}
	for id, want := range tests {
		if p := FindParent(tree, id); p == nil || p.ID != want {
			t.Errorf("FindParent(%q) = %v, want %q", id, p, want)
		}
	}
	for _, id := range []string{"1", "missing"} {
		if p := FindParent(tree, id); p != nil {
			t.Errorf("FindParent(%q) = %q, want nil", id, p.ID)
		}
	}
}

func TestIsDescendant(t *testing.T) {
	tree := sampleTree()
	section := Find(tree, "3")
	for id, want := range map[string]bool{"3": true, "4": true, "6": true, "2": false, "1": false} {
		if got := IsDescendant(section, id); got != want {
			t.Errorf("IsDescendant(3, %q) = %v, want %v", id, got, want)
		}
	}
}

func TestWalkAndCount(t *testing.T) {
	tree := sampleTree()
	if n := Count(tree); n != 7 {
		t.Errorf("Count = %d, want 7", n)
	}
	var order []string
	maxDepth := 0
	Walk(tree, func(n *Node, depth int) bool {
		order = append(order, n.ID)
		maxDepth = max(maxDepth, depth)
		return n.ID != "5"
	})
	if got := len(order); got != 6 {
		t.Errorf("visited %v, want 6 nodes with 5's children pruned", order)
	}
	if maxDepth != 2 {
		t.Errorf("max depth = %d, want 2", maxDepth)
	}
	if IndexOf(tree, "7") != 2 || IndexOf(tree, "6") != -1 {
		t.Errorf("IndexOf mismatch")
	}
}
