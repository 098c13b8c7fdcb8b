package uitree

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		h, y      float64
		container bool
		want      Zone
	}{
		{100, 0, true, ZoneBefore},
		{100, 19.9, false, ZoneBefore},
		{100, 20, true, ZoneInside},
		{100, 50, true, ZoneInside},
		{100, 50, false, ZoneNone},
		{100, 80, true, ZoneInside},
		{100, 80.1, false, ZoneAfter},
		{100, 100, true, ZoneAfter},
		{0, 0, true, ZoneNone},
		{-5, 1, true, ZoneNone},
	}
	for _, tc := range tests {
		if got := Classify(tc.h, tc.y, tc.container); got != tc.want {
			t.Errorf("Classify(%v, %v, %v) = %q, want %q", tc.h, tc.y, tc.container, got, tc.want)
		}
	}
}

func TestClassifyNode(t *testing.T) {
	if got := ClassifyNode(&Node{Kind: "section"}, 40, 20); got != ZoneInside {
		t.Errorf("section middle = %q, want inside", got)
	}
	if got := ClassifyNode(&Node{Kind: "img"}, 40, 20); got != ZoneNone {
		t.Errorf("img middle = %q, want none", got)
	}
	if got := ClassifyNode(nil, 40, 1); got != ZoneNone {
		t.Errorf("nil node = %q, want none", got)
	}
}

func TestZonePosition(t *testing.T) {
	tests := map[Zone]Position{ZoneBefore: Before, ZoneAfter: After, ZoneInside: Inside}
	for z, want := range tests {
		if got, ok := z.Position(); !ok || got != want {
			t.Errorf("%q.Position() = %q, %v", z, got, ok)
		}
	}
	if _, ok := ZoneNone.Position(); ok {
		t.Error("ZoneNone is droppable")
	}
}
