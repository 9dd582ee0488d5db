package textpipe

import (
	"regexp"
	"strings"
)

var arrowGlyphs = []string{"↗", "↘", "↑", "↓", "→", "←", "‼"}
var arrowWord = regexp.MustCompile(`(?i)\barrow\b`)

var finalWhitespace = regexp.MustCompile(`\s+`)

// applyGenericNormalize is stage 12: whitespace collapse and terminal
// punctuation, plus the arrow-glyph-leakage guard every earlier stage is
// expected to uphold on its own — this stage is the final backstop.
func applyGenericNormalize(text string, _ Config) (string, bool) {
	original := text

	text = finalWhitespace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	for _, glyph := range arrowGlyphs {
		text = strings.ReplaceAll(text, glyph, "")
	}
	text = arrowWord.ReplaceAllString(text, "")
	text = finalWhitespace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if text != "" {
		last := text[len(text)-1]
		if !strings.ContainsRune(".!?", rune(last)) {
			text += "."
		}
	}

	return text, text != original
}
