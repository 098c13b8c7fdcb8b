package uitree

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
)

// Descriptor is the flat, wire-shaped record streamed by the generator: one
// node plus a reference to its intended parent. An empty ParentID marks a
// root candidate.
type Descriptor struct {
	ID          string
	ParentID    string
	Kind        string
	StyleTokens string
	Content     *string
	Attributes  map[string]string
}

// IsRoot reports whether d claims the root position.
func (d Descriptor) IsRoot() bool { return d.ParentID == "" }

var (
	errMissingID   = errors.New("descriptor has no id")
	errMissingKind = errors.New("descriptor has no type")
)

// wireDescriptor accepts both the generator's field names and the longer
// aliases used by hand-written fixtures.
type wireDescriptor struct {
	ID          string                     `json:"id"`
	ParentID    *string                    `json:"parentId"`
	Kind        string                     `json:"type"`
	KindAlias   string                     `json:"kind"`
	Styles      string                     `json:"styles"`
	StyleTokens string                     `json:"styleTokens"`
	Content     *string                    `json:"content"`
	Attributes  map[string]json.RawMessage `json:"attributes"`
}

// DecodeDescriptor parses one NDJSON line. Records without an id or a kind
// are rejected. Attribute values that are objects or arrays are dropped.
func DecodeDescriptor(line []byte) (Descriptor, error) {
	var w wireDescriptor
	if err := json.Unmarshal(line, &w); err != nil {
		return Descriptor{}, err
	}
	d := Descriptor{
		ID:          w.ID,
		Kind:        w.Kind,
		StyleTokens: w.Styles,
		Content:     w.Content,
	}
	if d.Kind == "" {
		d.Kind = w.KindAlias
	}
	if d.StyleTokens == "" {
		d.StyleTokens = w.StyleTokens
	}
	if w.ParentID != nil && *w.ParentID != "null" {
		d.ParentID = *w.ParentID
	}
	if d.ID == "" {
		return Descriptor{}, errMissingID
	}
	if d.Kind == "" {
		return Descriptor{}, errMissingKind
	}
	for k, raw := range w.Attributes {
		v, err := attributeValue(raw)
		if err != nil {
			// Nested values have no attribute form; the node is kept without them.
			continue
		}
		if d.Attributes == nil {
			d.Attributes = make(map[string]string, len(w.Attributes))
		}
		d.Attributes[k] = v
	}
	return d, nil
}

// attributeValue keeps strings as-is and renders scalars (numbers, booleans)
// the way they appear on the wire. Nested values are refused.
func attributeValue(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported value %s", raw)
	}
}

// MarshalJSON writes the generator wire format, with a null parentId for the
// root.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	var parent *string
	if d.ParentID != "" {
		parent = &d.ParentID
	}
	return json.Marshal(struct {
		ID         string            `json:"id"`
		ParentID   *string           `json:"parentId"`
		Kind       string            `json:"type"`
		Styles     string            `json:"styles"`
		Content    *string           `json:"content,omitempty"`
		Attributes map[string]string `json:"attributes,omitempty"`
	}{d.ID, parent, d.Kind, d.StyleTokens, d.Content, d.Attributes})
}

// Flatten walks tree in pre-order and returns one descriptor per node, root
// first. Feeding the result back through a Builder rebuilds the same tree.
func Flatten(tree *Node) []Descriptor {
	var out []Descriptor
	var walk func(n *Node, parent string)
	walk = func(n *Node, parent string) {
		out = append(out, Descriptor{
			ID:          n.ID,
			ParentID:    parent,
			Kind:        n.Kind,
			StyleTokens: n.StyleTokens,
			Content:     cloneString(n.Content),
			Attributes:  maps.Clone(n.Attributes),
		})
		for _, c := range n.Children {
			walk(c, n.ID)
		}
	}
	if tree != nil {
		walk(tree, "")
	}
	return out
}

func (d Descriptor) node() *Node {
	return &Node{
		ID:          d.ID,
		Kind:        d.Kind,
		StyleTokens: d.StyleTokens,
		Content:     cloneString(d.Content),
		Attributes:  maps.Clone(d.Attributes),
	}
}
