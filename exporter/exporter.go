// Package exporter turns a settled tree into the external formats handed to
// users: nested JSON, re-ingestable NDJSON, static HTML markup and a
// Markdown outline (raw or rendered).
package exporter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"aether_architect/uitree"
)

// Format names an export representation.
type Format string

const (
	JSON    Format = "json"
	NDJSON  Format = "ndjson"
	HTML    Format = "html"
	Outline Format = "outline"
	Readme  Format = "readme"
)

var (
	// ErrUnknownFormat indicates an export format outside Formats().
	ErrUnknownFormat = errors.New("unknown export format")

	// ErrNoTree indicates an export was requested without a tree.
	ErrNoTree = errors.New("nothing to export")
)

// Formats lists the supported formats.
func Formats() []Format { return []Format{JSON, NDJSON, HTML, Outline, Readme} }

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case NDJSON:
		return "application/x-ndjson"
	case HTML, Readme:
		return "text/html; charset=utf-8"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Export renders tree in format f.
func Export(tree *uitree.Node, f Format) (string, error) {
	if tree == nil {
		return "", ErrNoTree
	}
	switch f {
	case JSON:
		data, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case NDJSON:
		return toNDJSON(tree)
	case HTML:
		return toHTML(tree), nil
	case Outline:
		return toOutline(tree), nil
	case Readme:
		return mdToHTML(toOutline(tree))
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

func toNDJSON(tree *uitree.Node) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, d := range uitree.Flatten(tree) {
		if err := enc.Encode(d); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// toOutline lists the tree as nested Markdown bullets under the page title.
func toOutline(tree *uitree.Node) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title(tree))
	b.WriteString("\n\n")
	uitree.Walk(tree, func(n *uitree.Node, depth int) bool {
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&b, "- **%s** `%s`", n.Kind, n.ID)
		if text := strings.TrimSpace(n.Text()); text != "" {
			b.WriteString(": ")
			b.WriteString(escapeMarkdown(text))
		}
		if n.StyleTokens != "" {
			fmt.Fprintf(&b, " (`%s`)", n.StyleTokens)
		}
		b.WriteByte('\n')
		return true
	})
	return b.String()
}

func title(tree *uitree.Node) string {
	for _, kind := range []string{"h1", "h2"} {
		var found string
		uitree.Walk(tree, func(n *uitree.Node, _ int) bool {
			if found == "" && n.Kind == kind {
				found = strings.TrimSpace(n.Text())
			}
			return found == ""
		})
		if found != "" {
			return escapeMarkdown(found)
		}
	}
	return "Generated interface"
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`, "<", `\<`, "#", `\#`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(strings.Join(strings.Fields(s), " "))
}

func mdToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
