package uitree

import (
	"fmt"
	"slices"
	"strings"
)

var textTransforms = []string{"uppercase", "lowercase", "capitalize", "normal-case"}

// SetTextTransform swaps whatever text-transform token styles carries for
// transform, leaving every other token in place.
func SetTextTransform(styles, transform string) (string, error) {
	if !isTextTransform(transform) {
		return "", fmt.Errorf("unknown text transform %q", transform)
	}
	var kept []string
	for _, tok := range strings.Fields(styles) {
		if !isTextTransform(tok) {
			kept = append(kept, tok)
		}
	}
	return strings.Join(append(kept, transform), " "), nil
}

// TextTransform returns the text-transform token in styles, defaulting to
// "normal-case".
func TextTransform(styles string) string {
	for _, tok := range strings.Fields(styles) {
		if isTextTransform(tok) && tok != "normal-case" {
			return tok
		}
	}
	return "normal-case"
}

func isTextTransform(tok string) bool { return slices.Contains(textTransforms, tok) }
