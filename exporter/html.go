package exporter

import (
	"html"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"aether_architect/uitree"
)

// Kinds rendered as themselves. Anything else becomes a div, "card"
// included.
var htmlKinds = map[string]bool{
	"div": true, "section": true, "header": true, "footer": true, "nav": true,
	"main": true, "aside": true, "form": true, "button": true, "a": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "p": true, "span": true,
	"ul": true, "ol": true, "li": true, "label": true, "img": true, "input": true,
	"textarea": true, "select": true, "option": true, "hr": true, "br": true,
}

var voidKinds = map[string]bool{"img": true, "input": true, "hr": true, "br": true}

// markupPolicy keeps the elements above with presentational, form and ARIA
// attributes, and drops scripts, event handlers and unsafe URLs.
var markupPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	for kind := range htmlKinds {
		p.AllowElements(kind)
	}
	p.AllowAttrs("class", "id", "role", "title", "lang", "dir").Globally()
	p.AllowAttrs("aria-label", "aria-live", "aria-describedby", "aria-hidden").Globally()
	p.AllowAttrs("type", "name", "placeholder", "value", "required", "disabled", "for", "min", "max").Globally()
	p.AllowAttrs("href", "target").OnElements("a")
	p.AllowAttrs("src", "alt", "width", "height").OnElements("img")
	p.AllowStandardURLs()
	p.AllowDataURIImages()
	return p
}()

func toHTML(tree *uitree.Node) string {
	var b strings.Builder
	writeNode(&b, tree)
	return markupPolicy.Sanitize(b.String())
}

func writeNode(b *strings.Builder, n *uitree.Node) {
	tag := n.Kind
	if !htmlKinds[tag] {
		tag = "div"
	}
	b.WriteByte('<')
	b.WriteString(tag)
	writeAttr(b, "id", n.ID)
	if n.StyleTokens != "" {
		writeAttr(b, "class", n.StyleTokens)
	}
	keys := make([]string, 0, len(n.Attributes))
	for k := range n.Attributes {
		if k != "id" && k != "class" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeAttr(b, k, n.Attributes[k])
	}
	if voidKinds[tag] {
		b.WriteString(">")
		return
	}
	b.WriteByte('>')
	b.WriteString(html.EscapeString(n.Text()))
	for _, c := range n.Children {
		writeNode(b, c)
	}
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
}

func writeAttr(b *strings.Builder, key, value string) {
	b.WriteByte(' ')
	b.WriteString(html.EscapeString(key))
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(value))
	b.WriteByte('"')
}
