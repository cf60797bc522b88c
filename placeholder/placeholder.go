// Package placeholder protects non-translatable spans across a translation
// round trip. Translation providers reorder and reword freely, so literal URLs
// are swapped for positional XML markers before the provider call and swapped
// back after. The markers survive translation when the provider is asked to
// leave <x> tags alone.
package placeholder

import (
	"fmt"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

func marker(index int) string {
	return fmt.Sprintf(`<x id="%d"></x>`, index)
}

// Protect replaces every URL-shaped substring with a positional marker and
// returns the masked text plus the protected spans in source order.
func Protect(text string) (string, []string) {
	spans := urlPattern.FindAllString(text, -1)
	for i, span := range spans {
		text = strings.Replace(text, span, marker(i), 1)
	}
	return text, spans
}

// Restore replaces each marker with its original span, in index order.
// Restore(Protect(t)) == t for any t with non-overlapping URL spans.
// Text that already contains a literal marker alongside a URL is not
// round-trip safe; Restore rewrites whichever occurrence comes first.
func Restore(text string, spans []string) string {
	for i, span := range spans {
		text = strings.Replace(text, marker(i), span, 1)
	}
	return text
}
