package uitree

// Zone is the drop intent computed while a drag hovers over a node.
type Zone string

const (
	ZoneNone   Zone = "none"
	ZoneBefore Zone = "before"
	ZoneAfter  Zone = "after"
	ZoneInside Zone = "inside"
)

// Edge bands: the top and bottom fifth of a node mean sibling placement.
const (
	beforeBand = 0.2
	afterBand  = 0.8
)

var containerKinds = map[string]bool{
	"div":     true,
	"section": true,
	"header":  true,
	"footer":  true,
	"ul":      true,
	"nav":     true,
	"card":    true,
	"form":    true,
	"main":    true,
	"aside":   true,
}

// IsContainerKind reports whether nodes of this kind accept dropped children.
func IsContainerKind(kind string) bool { return containerKinds[kind] }

// Classify maps a pointer's vertical offset within a node of the given
// rendered height to a drop zone.
func Classify(height, offsetY float64, container bool) Zone {
	if height <= 0 {
		return ZoneNone
	}
	switch {
	case offsetY < height*beforeBand:
		return ZoneBefore
	case offsetY > height*afterBand:
		return ZoneAfter
	case container:
		return ZoneInside
	default:
		return ZoneNone
	}
}

// ClassifyNode is Classify with the container check taken from n's kind.
func ClassifyNode(n *Node, height, offsetY float64) Zone {
	if n == nil {
		return ZoneNone
	}
	return Classify(height, offsetY, IsContainerKind(n.Kind))
}

// Position converts a zone into a move position. ok is false for ZoneNone.
func (z Zone) Position() (pos Position, ok bool) {
	switch z {
	case ZoneBefore:
		return Before, true
	case ZoneAfter:
		return After, true
	case ZoneInside:
		return Inside, true
	}
	return "", false
}
